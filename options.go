package pagestore_go

import "pagestore-go/page"

// Options 存储引擎实例的配置项
type Options struct {
	// 数据目录
	DirPath string

	// 写缓冲的刷盘阈值，字节
	FlushSize int

	// 是否对页面负载做 xz 压缩
	Compression bool

	// AES 加密密钥，长度 16/24/32；为空则不加密
	EncryptionKey []byte

	// 序列化目标：数据文件或事务意图日志
	SerializationType page.SerializationType
}

var DefaultOptions = Options{
	FlushSize:         FlushSize,
	Compression:       false,
	SerializationType: page.Data,
}

func checkOptions(options *Options) error {
	if options.DirPath == "" {
		return ErrDirPathEmpty
	}
	if options.FlushSize <= 0 {
		return ErrFlushSizeInvalid
	}
	return nil
}
