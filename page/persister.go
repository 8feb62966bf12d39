package page

import (
	"encoding/binary"
	"errors"
	"fmt"

	"pagestore-go/data"
)

var (
	ErrUnknownPageKind = errors.New("unknown page kind")
	ErrCorruptedPage   = errors.New("corrupted page payload")
)

// ReadTrx 持久化页面时需要的事务只读访问
type ReadTrx interface {
	RevisionNumber() uint32
}

// PagePersister 在内存页面和字节数组之间转换
// 布局：1 字节页面种类标签，随后是各变体自己的字段
type PagePersister struct{}

// SerializePage 把页面的序列化形式追加到 buf 中
func (PagePersister) SerializePage(_ ReadTrx, buf *data.Buffer, p Page, _ SerializationType) error {
	if p == nil {
		return ErrCorruptedPage
	}
	buf.WriteByte(p.Kind())
	switch pg := p.(type) {
	case *UberPage:
		buf.WriteUvarint(uint64(pg.Revision))
		buf.WriteVarint(pg.RootPageKey)
	case *RevisionRootPage:
		buf.WriteUvarint(uint64(pg.Revision))
		buf.WriteVarint(pg.Timestamp)
		buf.WriteUvarint(pg.MaxNodeKey)
		buf.WriteVarint(pg.IndirectPageKey)
		buf.WriteUvarint(uint64(len(pg.CommitMessage)))
		buf.Write([]byte(pg.CommitMessage))
	case *KeyValueLeafPage:
		buf.WriteUvarint(pg.PageKey)
		buf.WriteUvarint(uint64(len(pg.Keys)))
		for i := range pg.Keys {
			buf.WriteUvarint(uint64(len(pg.Keys[i])))
			buf.Write(pg.Keys[i])
			buf.WriteUvarint(uint64(len(pg.Values[i])))
			buf.Write(pg.Values[i])
		}
	case *IndirectPage:
		buf.WriteUvarint(uint64(len(pg.References)))
		for _, ref := range pg.References {
			buf.WriteVarint(ref)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownPageKind, p)
	}
	return nil
}

// DeserializePage 从字节数组还原页面
func (PagePersister) DeserializePage(b []byte, _ SerializationType) (Page, error) {
	if len(b) == 0 {
		return nil, ErrCorruptedPage
	}
	dec := &decoder{buf: b[1:]}
	switch b[0] {
	case KindUber:
		p := &UberPage{}
		p.Revision = uint32(dec.uvarint())
		p.RootPageKey = dec.varint()
		return p, dec.err
	case KindRevisionRoot:
		p := &RevisionRootPage{}
		p.Revision = uint32(dec.uvarint())
		p.Timestamp = dec.varint()
		p.MaxNodeKey = dec.uvarint()
		p.IndirectPageKey = dec.varint()
		p.CommitMessage = string(dec.bytes(int(dec.uvarint())))
		return p, dec.err
	case KindKeyValueLeaf:
		p := &KeyValueLeafPage{}
		p.PageKey = dec.uvarint()
		n := int(dec.uvarint())
		for i := 0; i < n && dec.err == nil; i++ {
			p.Keys = append(p.Keys, dec.bytes(int(dec.uvarint())))
			p.Values = append(p.Values, dec.bytes(int(dec.uvarint())))
		}
		return p, dec.err
	case KindIndirect:
		p := &IndirectPage{}
		n := int(dec.uvarint())
		for i := 0; i < n && dec.err == nil; i++ {
			p.References = append(p.References, dec.varint())
		}
		return p, dec.err
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownPageKind, b[0])
	}
}

// decoder 顺序读取，首个错误之后的读取全部短路
type decoder struct {
	buf []byte
	pos int
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		d.err = ErrCorruptedPage
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf[d.pos:])
	if n <= 0 {
		d.err = ErrCorruptedPage
		return 0
	}
	d.pos += n
	return v
}

func (d *decoder) bytes(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.pos+n > len(d.buf) {
		d.err = ErrCorruptedPage
		return nil
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+n])
	d.pos += n
	return out
}
