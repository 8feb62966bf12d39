package pagestore_go

import "pagestore-go/data"

// Trx 写事务，持有当前批次的写缓冲
// 同一个事务不可并发使用
type Trx struct {
	storage  *Storage
	revision uint32
	buffer   *data.Buffer
}

// RevisionNumber 本事务工作的修订版本号
func (t *Trx) RevisionNumber() uint32 {
	return t.revision
}

// Buffer 当前写缓冲
func (t *Trx) Buffer() *data.Buffer {
	return t.buffer
}

// NewBufferedBytesInstance 换上一个全新的缓冲区并返回
// 旧缓冲区不再被事务引用，它的底层存储可能仍被在途的异步写持有
func (t *Trx) NewBufferedBytesInstance() *data.Buffer {
	t.buffer = data.NewBuffer(1000)
	return t.buffer
}
