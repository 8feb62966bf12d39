package data

import "encoding/binary"

// Buffer 弹性字节缓冲区，在一个未提交批次内跨多次写入保留内容
// 写位置等于尚未刷盘的字节数
type Buffer struct {
	buf      []byte
	writePos int
}

// NewBuffer 创建一个具有初始容量的缓冲区
func NewBuffer(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, capacity)}
}

// WritePosition 当前写位置
func (b *Buffer) WritePosition() int {
	return b.writePos
}

// SetWritePosition 把写位置前移到 pos，跳过的区间补零
// 用于在负载之前预留对齐填充
func (b *Buffer) SetWritePosition(pos int) {
	if pos <= b.writePos {
		b.writePos = pos
		b.buf = b.buf[:pos]
		return
	}
	b.grow(pos - b.writePos)
	for i := b.writePos; i < pos; i++ {
		b.buf = append(b.buf, 0)
	}
	b.writePos = pos
}

// Write 追加字节，实现 io.Writer
func (b *Buffer) Write(p []byte) (int, error) {
	b.grow(len(p))
	b.buf = append(b.buf, p...)
	b.writePos += len(p)
	return len(p), nil
}

// WriteByte 追加单个字节，实现 io.ByteWriter
func (b *Buffer) WriteByte(c byte) error {
	b.grow(1)
	b.buf = append(b.buf, c)
	b.writePos++
	return nil
}

// WriteUint32 以本机字节序追加一个 u32
func (b *Buffer) WriteUint32(v uint32) {
	var tmp [4]byte
	binary.NativeEndian.PutUint32(tmp[:], v)
	b.Write(tmp[:])
}

// WriteUvarint 追加一个变长无符号整数
func (b *Buffer) WriteUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	b.Write(tmp[:n])
}

// WriteVarint 追加一个变长有符号整数
func (b *Buffer) WriteVarint(v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	b.Write(tmp[:n])
}

// Bytes 返回已写入的字节，与缓冲区共享底层存储
func (b *Buffer) Bytes() []byte {
	return b.buf[:b.writePos]
}

// Clear 重置写位置，保留底层容量
func (b *Buffer) Clear() {
	b.buf = b.buf[:0]
	b.writePos = 0
}

func (b *Buffer) grow(n int) {
	if len(b.buf)+n <= cap(b.buf) {
		return
	}
	newCap := 2 * cap(b.buf)
	if newCap < len(b.buf)+n {
		newCap = len(b.buf) + n
	}
	nb := make([]byte, len(b.buf), newCap)
	copy(nb, b.buf)
	b.buf = nb
}
