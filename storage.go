package pagestore_go

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"pagestore-go/bytehandler"
	"pagestore-go/data"
	"pagestore-go/fio"
	"pagestore-go/index"
	"pagestore-go/page"
)

const (
	// FirstBeacon 每个文件头部的保留区大小，存放两份本次会话的第一个 uber 页面
	FirstBeacon = 512
	// OtherBeacon 每条磁盘条目的长度前缀大小
	OtherBeacon = 4

	// DataFileName 数据文件名
	DataFileName = "pages.data"
	// RevisionsFileName 修订索引文件名
	RevisionsFileName = "revisions.idx"
)

// Storage 多版本页面存储引擎实例
// 持有数据文件和修订索引文件，以及共享的读取端与写入端
type Storage struct {
	options    Options
	resourceID uuid.UUID

	dataFile      *fio.AsyncFile
	revisionsFile *fio.AsyncFile
	cache         *index.RevisionCache
	persister     page.PagePersister
	handler       bytehandler.ByteHandler

	reader *Reader
	writer *Writer

	closed bool
}

// Open 打开存储引擎实例
func Open(options Options) (*Storage, error) {
	// 对用户传入的配置项进行校验
	if err := checkOptions(&options); err != nil {
		return nil, err
	}
	// 判断数据目录是否存在，如果不存在的话，则创建这个目录
	if _, err := os.Stat(options.DirPath); os.IsNotExist(err) {
		if err := os.MkdirAll(options.DirPath, os.ModePerm); err != nil {
			return nil, err
		}
	}

	dataFile, err := fio.NewAsyncFile(filepath.Join(options.DirPath, DataFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: open data file: %v", ErrStorageIO, err)
	}
	revisionsFile, err := fio.NewAsyncFile(filepath.Join(options.DirPath, RevisionsFileName))
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("%w: open revisions file: %v", ErrStorageIO, err)
	}

	handler, err := buildByteHandler(options)
	if err != nil {
		dataFile.Close()
		revisionsFile.Close()
		return nil, err
	}

	s := &Storage{
		options:       options,
		resourceID:    uuid.New(),
		dataFile:      dataFile,
		revisionsFile: revisionsFile,
		cache:         index.NewRevisionCache(),
		handler:       handler,
	}
	s.reader = newReader(dataFile, revisionsFile, s.cache, s.persister, handler, options.SerializationType)
	s.writer = newWriter(dataFile, revisionsFile, options.SerializationType, s.persister,
		s.cache, options.FlushSize, s.reader)

	return s, nil
}

// buildByteHandler 按配置组装字节变换链
func buildByteHandler(options Options) (bytehandler.ByteHandler, error) {
	var handlers []bytehandler.ByteHandler
	if options.Compression {
		handlers = append(handlers, bytehandler.XZ{})
	}
	if len(options.EncryptionKey) > 0 {
		aesHandler, err := bytehandler.NewAES(options.EncryptionKey)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, aesHandler)
	}
	if len(handlers) == 0 {
		return bytehandler.Identity{}, nil
	}
	return bytehandler.NewPipeline(handlers...), nil
}

// ResourceID 本次打开的资源标识
func (s *Storage) ResourceID() uuid.UUID {
	return s.resourceID
}

// Reader 共享的只读访问端
func (s *Storage) Reader() *Reader {
	return s.reader
}

// Writer 本资源唯一的写入端
func (s *Storage) Writer() *Writer {
	return s.writer
}

// NewTrx 创建一个写事务
func (s *Storage) NewTrx(revision uint32) *Trx {
	return &Trx{storage: s, revision: revision, buffer: data.NewBuffer(1000)}
}

// Close 关闭存储引擎实例
func (s *Storage) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writer.Close(); err != nil {
		log.Printf("Failed to close writer: %v", err)
		return err
	}
	return nil
}
