package data

import (
	"encoding/binary"
	"errors"
)

// RevisionRecordSize 修订索引文件中一条记录的固定长度
const RevisionRecordSize = 16

var ErrRecordTooShort = errors.New("revision record buffer is too short")

// RevisionRecord 修订索引文件中的一条定长记录
// 字节 0..7 为数据文件偏移，字节 8..15 为修订时间戳（毫秒），均为本机字节序
type RevisionRecord struct {
	Offset    int64
	Timestamp int64
}

// EncodeRevisionRecord 把记录编码为 16 字节
func EncodeRevisionRecord(rec *RevisionRecord) []byte {
	buf := make([]byte, RevisionRecordSize)
	binary.NativeEndian.PutUint64(buf[:8], uint64(rec.Offset))
	binary.NativeEndian.PutUint64(buf[8:], uint64(rec.Timestamp))
	return buf
}

// DecodeRevisionRecord 从 16 字节解出记录
func DecodeRevisionRecord(buf []byte) (*RevisionRecord, error) {
	if len(buf) < RevisionRecordSize {
		return nil, ErrRecordTooShort
	}
	return &RevisionRecord{
		Offset:    int64(binary.NativeEndian.Uint64(buf[:8])),
		Timestamp: int64(binary.NativeEndian.Uint64(buf[8:])),
	}, nil
}
