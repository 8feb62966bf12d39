package fio

import (
	"errors"
	"os"
	"sync"
)

// DataFilePerm 数据文件的默认权限
const DataFilePerm = 0644

var ErrFileClosed = errors.New("async file already closed")

// Future 一次异步文件操作的结果，Join 阻塞直到完成
type Future struct {
	done chan struct{}
	val  int64
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(val int64, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Join 等待操作完成，返回操作相关的数值（读写字节数、文件大小）和错误
func (f *Future) Join() (int64, error) {
	<-f.done
	return f.val, f.err
}

type opKind byte

const (
	opRead opKind = iota
	opWrite
	opSize
	opSync
	opTruncate
)

type request struct {
	kind opKind
	buf  []byte
	off  int64
	fut  *Future
}

// AsyncFile 基于提交队列的异步文件句柄
// 所有操作投递到一个提交队列，由单独的 goroutine 按提交顺序执行，
// 因此同一个文件上的操作是全序的
type AsyncFile struct {
	fd          *os.File
	submissions chan request

	mu      sync.Mutex
	closed  bool
	drained chan struct{}
}

// NewAsyncFile 打开（或创建）一个文件并启动它的提交循环
func NewAsyncFile(path string) (*AsyncFile, error) {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, DataFilePerm)
	if err != nil {
		return nil, err
	}
	af := &AsyncFile{
		fd:          fd,
		submissions: make(chan request, 64),
		drained:     make(chan struct{}),
	}
	go af.loop()
	return af, nil
}

func (af *AsyncFile) loop() {
	defer close(af.drained)
	for req := range af.submissions {
		switch req.kind {
		case opRead:
			n, err := af.fd.ReadAt(req.buf, req.off)
			req.fut.complete(int64(n), err)
		case opWrite:
			n, err := af.fd.WriteAt(req.buf, req.off)
			req.fut.complete(int64(n), err)
		case opSize:
			info, err := af.fd.Stat()
			if err != nil {
				req.fut.complete(0, err)
			} else {
				req.fut.complete(info.Size(), nil)
			}
		case opSync:
			req.fut.complete(0, af.fd.Sync())
		case opTruncate:
			req.fut.complete(0, af.fd.Truncate(req.off))
		}
	}
}

func (af *AsyncFile) submit(req request) *Future {
	req.fut = newFuture()
	af.mu.Lock()
	if af.closed {
		af.mu.Unlock()
		req.fut.complete(0, ErrFileClosed)
		return req.fut
	}
	af.submissions <- req
	af.mu.Unlock()
	return req.fut
}

// Read 从 off 处读取 len(buf) 字节
func (af *AsyncFile) Read(buf []byte, off int64) *Future {
	return af.submit(request{kind: opRead, buf: buf, off: off})
}

// Write 在 off 处写入 buf
// 调用方在 Join 返回前不得修改 buf 的底层存储
func (af *AsyncFile) Write(buf []byte, off int64) *Future {
	return af.submit(request{kind: opWrite, buf: buf, off: off})
}

// Size 当前文件长度
func (af *AsyncFile) Size() *Future {
	return af.submit(request{kind: opSize})
}

// DataSync 把此前所有写入刷到稳定存储
func (af *AsyncFile) DataSync() *Future {
	return af.submit(request{kind: opSync})
}

// Truncate 把文件截断到 n 字节
func (af *AsyncFile) Truncate(n int64) *Future {
	return af.submit(request{kind: opTruncate, off: n})
}

// Close 停止提交循环并关闭文件，可重复调用
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if af.closed {
		af.mu.Unlock()
		return nil
	}
	af.closed = true
	close(af.submissions)
	af.mu.Unlock()

	// 等待队列中剩余的操作执行完
	<-af.drained
	return af.fd.Close()
}
