package pagestore_go

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"pagestore-go/data"
	"pagestore-go/fio"
	"pagestore-go/index"
	"pagestore-go/page"
)

const (
	// UberPageByteAlign uber 页面的对齐模数
	UberPageByteAlign = 100
	// RevisionRootPageByteAlign 修订根页面的对齐，必须是 2 的幂
	RevisionRootPageByteAlign = 256
	// PageFragmentByteAlign 其余 DATA 页面的对齐，必须是 2 的幂
	PageFragmentByteAlign = 8
	// FlushSize 写缓冲的刷盘阈值
	FlushSize = 64_000
)

// PageTrx 写入器消费的事务接口
// 刷盘之后由事务提供一个全新的缓冲区实例
type PageTrx interface {
	page.ReadTrx

	// NewBufferedBytesInstance 换上一个新的缓冲区并返回
	// 旧缓冲区的底层存储可能仍被在途的异步写借用，绝不能复用
	NewBufferedBytesInstance() *data.Buffer
}

// uberMode 标记当前写入是否处于 uber 页面提交序列中
type uberMode byte

const (
	uberNone uberMode = iota
	// uberFirst 本次会话的第一份 uber 页面，触发修订索引文件的双 beacon 写
	uberFirst
	uberSecond
)

// Writer 追加式页面写入器
// 每个资源同一时刻只能有一个写入器实例，各方法不可重入
type Writer struct {
	dataFile          *fio.AsyncFile
	revisionsFile     *fio.AsyncFile
	serializationType page.SerializationType
	persister         page.PagePersister
	cache             *index.RevisionCache
	reader            *Reader
	flushSize         int

	// 序列化单个页面的临时缓冲，跨 write 调用复用
	scratch *data.Buffer

	closeOnce sync.Once
	closeErr  error
}

func newWriter(dataFile, revisionsFile *fio.AsyncFile, serializationType page.SerializationType,
	persister page.PagePersister, cache *index.RevisionCache, flushSize int, reader *Reader) *Writer {
	return &Writer{
		dataFile:          dataFile,
		revisionsFile:     revisionsFile,
		serializationType: serializationType,
		persister:         persister,
		cache:             cache,
		reader:            reader,
		flushSize:         flushSize,
		scratch:           data.NewBuffer(1000),
	}
}

// Write 序列化 ref 指向的页面并追加到写缓冲，必要时刷盘
// 返回自身以便链式调用
func (w *Writer) Write(trx PageTrx, ref *page.PageReference, buffered *data.Buffer) (*Writer, error) {
	offset, err := w.nextOffset(buffered)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	return w.writePageReference(trx, ref, buffered, offset, uberNone)
}

// nextOffset 下一个负载在数据文件中的绝对起始偏移
// 文件为空时跳过 beacon 保留区并对齐到页面碎片边界
func (w *Writer) nextOffset(buffered *data.Buffer) (int64, error) {
	fileSize, err := w.dataFile.Size().Join()
	if err != nil {
		return 0, err
	}
	if fileSize == 0 {
		offset := int64(FirstBeacon)
		offset += PageFragmentByteAlign - (offset & (PageFragmentByteAlign - 1))
		return offset + int64(buffered.WritePosition()), nil
	}
	return fileSize + int64(buffered.WritePosition()), nil
}

func (w *Writer) writePageReference(trx PageTrx, ref *page.PageReference,
	buffered *data.Buffer, offset int64, mode uberMode) (*Writer, error) {
	err := pool.submit(func() error {
		return w.writePage(trx, ref, buffered, offset, mode)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) writePage(trx PageTrx, ref *page.PageReference,
	buffered *data.Buffer, offset int64, mode uberMode) error {
	p := ref.Page
	if p == nil {
		return ErrNilPage
	}

	// 序列化页面，再经过字节变换链得到最终负载
	w.scratch.Clear()
	if err := w.persister.SerializePage(trx, w.scratch, p, w.serializationType); err != nil {
		return fmt.Errorf("%w: serialize page: %v", ErrStorageIO, err)
	}

	var transformed bytes.Buffer
	sink, err := w.reader.handler.Serialize(&transformed)
	if err != nil {
		return fmt.Errorf("%w: byte handler: %v", ErrStorageIO, err)
	}
	if _, err := sink.Write(w.scratch.Bytes()); err != nil {
		return fmt.Errorf("%w: byte handler: %v", ErrStorageIO, err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("%w: byte handler: %v", ErrStorageIO, err)
	}
	serialized := transformed.Bytes()
	w.scratch.Clear()

	// 计算对齐填充
	// uber 页面在负载之后补齐，其余页面在负载之前补齐
	offsetToAdd := 0
	if w.serializationType == page.Data {
		switch {
		case p.Kind() == page.KindUber:
			offsetToAdd = UberPageByteAlign - ((len(serialized) + OtherBeacon) % UberPageByteAlign)
		case p.Kind() == page.KindRevisionRoot && offset%RevisionRootPageByteAlign != 0:
			offsetToAdd = int(RevisionRootPageByteAlign - (offset & (RevisionRootPageByteAlign - 1)))
			offset += int64(offsetToAdd)
		case offset%PageFragmentByteAlign != 0:
			offsetToAdd = int(PageFragmentByteAlign - (offset & (PageFragmentByteAlign - 1)))
			offset += int64(offsetToAdd)
		}
	}

	if p.Kind() != page.KindUber && offsetToAdd > 0 {
		buffered.SetWritePosition(buffered.WritePosition() + offsetToAdd)
	}

	buffered.WriteUint32(uint32(len(serialized)))
	buffered.Write(serialized)

	if p.Kind() == page.KindUber && offsetToAdd > 0 {
		buffered.Write(make([]byte, offsetToAdd))
	}

	if buffered.WritePosition() > w.flushSize {
		if buffered, err = w.flushBuffer(trx, buffered); err != nil {
			return err
		}
	}

	// 记录页面坐标
	switch w.serializationType {
	case page.Data:
		ref.Key = offset
	case page.TransactionIntentLog:
		ref.PersistentLogKey = offset
	}

	// 键值页面使用自报哈希，其余页面对序列化字节做哈希
	if kv, ok := p.(*page.KeyValueLeafPage); ok {
		ref.Hash = kv.HashCode()
	} else {
		ref.Hash = hashBytes(serialized)
	}

	if w.serializationType == page.Data {
		if root, ok := p.(*page.RevisionRootPage); ok {
			if err := w.appendRevisionRecord(root, offset); err != nil {
				return err
			}
		} else if p.Kind() == page.KindUber && mode == uberFirst {
			if err := w.writeUberBeacons(serialized); err != nil {
				return err
			}
		}
	}

	return nil
}

// appendRevisionRecord 为已提交的修订根追加 16 字节 (offset, timestamp) 记录
// 并填充偏移缓存；修订 0 要跳过文件头部保留的双 uber 区
func (w *Writer) appendRevisionRecord(root *page.RevisionRootPage, offset int64) error {
	record := data.EncodeRevisionRecord(&data.RevisionRecord{Offset: offset, Timestamp: root.Timestamp})

	fileSize, err := w.revisionsFile.Size().Join()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageIO, err)
	}
	recordOffset := fileSize
	if root.Revision == 0 {
		recordOffset = fileSize + FirstBeacon
	}
	if _, err := w.revisionsFile.Write(record, recordOffset).Join(); err != nil {
		return fmt.Errorf("%w: write revision record: %v", ErrStorageIO, err)
	}

	w.cache.Put(root.Revision, index.RevisionFileData{
		Offset:    offset,
		Timestamp: time.UnixMilli(root.Timestamp),
	})
	return nil
}

// writeUberBeacons 把序列化的 uber 页面写进修订索引文件头部的两个半区并落盘
func (w *Writer) writeUberBeacons(serialized []byte) error {
	firstHalf := make([]byte, FirstBeacon/2)
	copy(firstHalf, serialized)
	if _, err := w.revisionsFile.Write(firstHalf, 0).Join(); err != nil {
		return fmt.Errorf("%w: write first uber beacon: %v", ErrStorageIO, err)
	}

	secondHalf := make([]byte, FirstBeacon/2)
	copy(secondHalf, serialized)
	if _, err := w.revisionsFile.Write(secondHalf, FirstBeacon/2).Join(); err != nil {
		return fmt.Errorf("%w: write second uber beacon: %v", ErrStorageIO, err)
	}

	if _, err := w.revisionsFile.DataSync().Join(); err != nil {
		return fmt.Errorf("%w: sync revisions file: %v", ErrStorageIO, err)
	}
	return nil
}

// WriteUberPageReference 提交序列：uber 页面写两份，缓冲内容落到数据文件
// beacon 区并持久化，最后给事务换上新缓冲区
func (w *Writer) WriteUberPageReference(trx PageTrx, ref *page.PageReference, buffered *data.Buffer) (*Writer, error) {
	var err error
	if buffered.WritePosition() > 0 {
		if buffered, err = w.flushBuffer(trx, buffered); err != nil {
			return nil, err
		}
	}

	if _, err = w.writePageReference(trx, ref, buffered, 0, uberFirst); err != nil {
		return nil, err
	}
	if _, err = w.writePageReference(trx, ref, buffered, FirstBeacon/2, uberSecond); err != nil {
		return nil, err
	}

	if _, err = w.dataFile.Write(buffered.Bytes(), 0).Join(); err != nil {
		return nil, fmt.Errorf("%w: write beacon region: %v", ErrStorageIO, err)
	}
	if _, err = w.dataFile.DataSync().Join(); err != nil {
		return nil, fmt.Errorf("%w: sync data file: %v", ErrStorageIO, err)
	}

	trx.NewBufferedBytesInstance()
	buffered.Clear()

	return w, nil
}

// flushBuffer 把缓冲内容追加到数据文件末尾，并从事务取一个新缓冲区
// 旧缓冲区的存储被在途写借用，调用方必须改用返回的实例
func (w *Writer) flushBuffer(trx PageTrx, buffered *data.Buffer) (*data.Buffer, error) {
	fileSize, err := w.dataFile.Size().Join()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageIO, err)
	}

	var offset int64
	if fileSize == 0 {
		offset = FirstBeacon
		offset += PageFragmentByteAlign - (offset & (PageFragmentByteAlign - 1))
	} else {
		offset = fileSize
	}

	if _, err := w.dataFile.Write(buffered.Bytes(), offset).Join(); err != nil {
		return nil, fmt.Errorf("%w: flush buffer: %v", ErrStorageIO, err)
	}
	buffered.Clear()
	return trx.NewBufferedBytesInstance(), nil
}

// Truncate 把资源清空：两个文件都截断到 0
func (w *Writer) Truncate() (*Writer, error) {
	if _, err := w.dataFile.Truncate(0).Join(); err != nil {
		return nil, fmt.Errorf("%w: truncate data file: %v", ErrStorageIO, err)
	}
	if _, err := w.revisionsFile.Truncate(0).Join(); err != nil {
		return nil, fmt.Errorf("%w: truncate revisions file: %v", ErrStorageIO, err)
	}
	return w, nil
}

// TruncateTo 回滚到修订版本 revision：
// 读出该修订根页面的长度前缀，把数据文件截断到它的末尾
func (w *Writer) TruncateTo(_ PageTrx, revision uint32) (*Writer, error) {
	fileData, err := w.reader.RevisionFileData(revision)
	if err != nil {
		return nil, err
	}

	lenBuf := make([]byte, OtherBeacon)
	if _, err := w.dataFile.Read(lenBuf, fileData.Offset).Join(); err != nil {
		return nil, fmt.Errorf("%w: read length prefix: %v", ErrIllegalState, err)
	}
	dataLength := binary.NativeEndian.Uint32(lenBuf)

	if _, err := w.dataFile.Truncate(fileData.Offset + OtherBeacon + int64(dataLength)).Join(); err != nil {
		return nil, fmt.Errorf("%w: truncate data file: %v", ErrIllegalState, err)
	}
	return w, nil
}

// ReadPage 读操作全部转发给 reader
func (w *Writer) ReadPage(ref *page.PageReference) (page.Page, error) {
	return w.reader.ReadPage(ref)
}

func (w *Writer) ReadRevisionRoot(revision uint32) (*page.RevisionRootPage, error) {
	return w.reader.ReadRevisionRoot(revision)
}

func (w *Writer) ReadUberPage() (*page.UberPage, error) {
	return w.reader.ReadUberPage()
}

func (w *Writer) RevisionFileData(revision uint32) (index.RevisionFileData, error) {
	return w.reader.RevisionFileData(revision)
}

// Close 持久化两个文件并关闭 reader，可重复调用
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		if _, err := w.dataFile.DataSync().Join(); err != nil {
			w.closeErr = fmt.Errorf("%w: sync data file: %v", ErrStorageIO, err)
		}
		if _, err := w.revisionsFile.DataSync().Join(); err != nil && w.closeErr == nil {
			w.closeErr = fmt.Errorf("%w: sync revisions file: %v", ErrStorageIO, err)
		}
		if err := w.reader.Close(); err != nil && w.closeErr == nil {
			w.closeErr = err
		}
	})
	return w.closeErr
}
