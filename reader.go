package pagestore_go

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"pagestore-go/bytehandler"
	"pagestore-go/data"
	"pagestore-go/fio"
	"pagestore-go/index"
	"pagestore-go/page"
)

// 缓存未命中时等待修订位置信息的上限
const revisionDataTimeout = 5 * time.Second

// hashBytes 全局哈希函数，对序列化后的页面字节计算内容哈希
func hashBytes(b []byte) []byte {
	h := blake3.Sum256(b)
	return h[:]
}

// Reader 只读访问已提交的页面
// 与写入器共享偏移缓存、哈希函数和字节变换链
type Reader struct {
	dataFile          *fio.AsyncFile
	revisionsFile     *fio.AsyncFile
	cache             *index.RevisionCache
	persister         page.PagePersister
	handler           bytehandler.ByteHandler
	serializationType page.SerializationType

	closeOnce sync.Once
	closeErr  error
}

func newReader(dataFile, revisionsFile *fio.AsyncFile, cache *index.RevisionCache,
	persister page.PagePersister, handler bytehandler.ByteHandler,
	serializationType page.SerializationType) *Reader {
	return &Reader{
		dataFile:          dataFile,
		revisionsFile:     revisionsFile,
		cache:             cache,
		persister:         persister,
		handler:           handler,
		serializationType: serializationType,
	}
}

// ReadPage 按页面引用中记录的偏移读取并还原页面
func (r *Reader) ReadPage(ref *page.PageReference) (page.Page, error) {
	key := ref.Key
	if r.serializationType == page.TransactionIntentLog {
		key = ref.PersistentLogKey
	}
	if key < 0 {
		return nil, ErrPageKeyUnset
	}
	return r.readPageAt(key)
}

func (r *Reader) readPageAt(offset int64) (page.Page, error) {
	// 先读长度前缀，再读负载
	lenBuf := make([]byte, OtherBeacon)
	if _, err := r.dataFile.Read(lenBuf, offset).Join(); err != nil {
		return nil, fmt.Errorf("%w: read length prefix: %v", ErrStorageIO, err)
	}
	dataLength := binary.NativeEndian.Uint32(lenBuf)

	payload := make([]byte, dataLength)
	if _, err := r.dataFile.Read(payload, offset+OtherBeacon).Join(); err != nil {
		return nil, fmt.Errorf("%w: read payload: %v", ErrStorageIO, err)
	}

	// 逆向经过字节变换链
	src, err := r.handler.Deserialize(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: deserialize payload: %v", ErrStorageIO, err)
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: deserialize payload: %v", ErrStorageIO, err)
	}

	return r.persister.DeserializePage(raw, r.serializationType)
}

// ReadRevisionRoot 读取修订版本 revision 的根页面
func (r *Reader) ReadRevisionRoot(revision uint32) (*page.RevisionRootPage, error) {
	fileData, err := r.RevisionFileData(revision)
	if err != nil {
		return nil, err
	}
	p, err := r.readPageAt(fileData.Offset)
	if err != nil {
		return nil, err
	}
	root, ok := p.(*page.RevisionRootPage)
	if !ok {
		return nil, fmt.Errorf("%w: page at offset %d is not a revision root", ErrIllegalState, fileData.Offset)
	}
	return root, nil
}

// ReadUberPage 读取数据文件 beacon 区中最近提交的 uber 页面
func (r *Reader) ReadUberPage() (*page.UberPage, error) {
	p, err := r.readPageAt(0)
	if err != nil {
		return nil, err
	}
	uber, ok := p.(*page.UberPage)
	if !ok {
		return nil, fmt.Errorf("%w: beacon region does not hold an uber page", ErrIllegalState)
	}
	return uber, nil
}

// RevisionFileData 查询修订版本的位置信息，缓存未命中时从修订索引文件补齐
func (r *Reader) RevisionFileData(revision uint32) (index.RevisionFileData, error) {
	fileData, err := r.cache.GetOrLoad(revision, revisionDataTimeout, func() (index.RevisionFileData, error) {
		return r.loadRevisionFileData(revision)
	})
	if err != nil {
		return index.RevisionFileData{}, fmt.Errorf("%w: revision %d: %v", ErrIllegalState, revision, err)
	}
	return fileData, nil
}

// loadRevisionFileData 修订版本 r 的记录位于 FirstBeacon + 16*r
func (r *Reader) loadRevisionFileData(revision uint32) (index.RevisionFileData, error) {
	buf := make([]byte, data.RevisionRecordSize)
	recordOffset := int64(FirstBeacon) + int64(revision)*data.RevisionRecordSize
	if _, err := r.revisionsFile.Read(buf, recordOffset).Join(); err != nil {
		return index.RevisionFileData{}, err
	}
	rec, err := data.DecodeRevisionRecord(buf)
	if err != nil {
		return index.RevisionFileData{}, err
	}
	return index.RevisionFileData{Offset: rec.Offset, Timestamp: time.UnixMilli(rec.Timestamp)}, nil
}

// Close 关闭两个文件句柄，可重复调用
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		if err := r.dataFile.Close(); err != nil {
			r.closeErr = err
		}
		if err := r.revisionsFile.Close(); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
	})
	return r.closeErr
}
