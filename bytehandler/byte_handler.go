package bytehandler

import "io"

// ByteHandler 对页面负载做对称的字节变换（压缩、加密）
// Serialize 包装写入端，Deserialize 包装读取端，两个方向必须互逆
type ByteHandler interface {
	Serialize(w io.Writer) (io.WriteCloser, error)
	Deserialize(r io.Reader) (io.Reader, error)
}

// Pipeline 按顺序串联多个 handler
// 写入时数据先经过第一个 handler，读取时按相反顺序还原
type Pipeline struct {
	handlers []ByteHandler
}

func NewPipeline(handlers ...ByteHandler) *Pipeline {
	return &Pipeline{handlers: handlers}
}

func (p *Pipeline) Serialize(w io.Writer) (io.WriteCloser, error) {
	// 从最靠近目标的 handler 开始包装，使第一个 handler 最先作用于输入
	cur := io.Writer(w)
	closers := make([]io.Closer, 0, len(p.handlers))
	for i := len(p.handlers) - 1; i >= 0; i-- {
		wc, err := p.handlers[i].Serialize(cur)
		if err != nil {
			return nil, err
		}
		cur = wc
		closers = append(closers, wc)
	}
	// closers 中最后加入的是最外层，关闭时由外向内
	for i, j := 0, len(closers)-1; i < j; i, j = i+1, j-1 {
		closers[i], closers[j] = closers[j], closers[i]
	}
	return &chainWriter{Writer: cur, closers: closers}, nil
}

func (p *Pipeline) Deserialize(r io.Reader) (io.Reader, error) {
	cur := r
	for i := len(p.handlers) - 1; i >= 0; i-- {
		next, err := p.handlers[i].Deserialize(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

type chainWriter struct {
	io.Writer
	closers []io.Closer
}

func (cw *chainWriter) Close() error {
	for _, c := range cw.closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Identity 不做任何变换
type Identity struct{}

func (Identity) Serialize(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (Identity) Deserialize(r io.Reader) (io.Reader, error) {
	return r, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
