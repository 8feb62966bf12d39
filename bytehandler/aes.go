package bytehandler

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"
)

// AES 用 AES-CTR 加密页面负载
// 每次写入生成随机 IV 并写在密文之前，读取时先取出 IV
type AES struct {
	key []byte
}

// NewAES 创建加密 handler，key 长度必须是 16、24 或 32 字节
func NewAES(key []byte) (*AES, error) {
	if _, err := aes.NewCipher(key); err != nil {
		return nil, err
	}
	return &AES{key: key}, nil
}

func (a *AES) Serialize(w io.Writer) (io.WriteCloser, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	if _, err := w.Write(iv); err != nil {
		return nil, err
	}
	return nopWriteCloser{&cipher.StreamWriter{S: cipher.NewCTR(block, iv), W: w}}, nil
}

func (a *AES) Deserialize(r io.Reader) (io.Reader, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(r, iv); err != nil {
		return nil, err
	}
	return &cipher.StreamReader{S: cipher.NewCTR(block, iv), R: r}, nil
}
