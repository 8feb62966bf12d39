package bytehandler

import (
	"io"

	"github.com/ulikunitz/xz"
)

// XZ 用 xz 压缩页面负载
type XZ struct{}

func (XZ) Serialize(w io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}

func (XZ) Deserialize(r io.Reader) (io.Reader, error) {
	return xz.NewReader(r)
}
