package page

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pagestore-go/data"
)

func encode(t *testing.T, p Page) []byte {
	t.Helper()
	buf := data.NewBuffer(256)
	err := PagePersister{}.SerializePage(nil, buf, p, Data)
	assert.Nil(t, err)
	out := make([]byte, buf.WritePosition())
	copy(out, buf.Bytes())
	return out
}

func TestPagePersister_RoundTrip(t *testing.T) {
	t.Run("uber page", func(t *testing.T) {
		p := &UberPage{Revision: 7, RootPageKey: 768}
		decoded, err := PagePersister{}.DeserializePage(encode(t, p), Data)
		assert.Nil(t, err)
		assert.Equal(t, p, decoded)
	})

	t.Run("revision root page", func(t *testing.T) {
		p := &RevisionRootPage{
			Revision:        3,
			Timestamp:       1_700_000_000_123,
			MaxNodeKey:      42,
			IndirectPageKey: 520,
			CommitMessage:   "rollback checkpoint",
		}
		decoded, err := PagePersister{}.DeserializePage(encode(t, p), Data)
		assert.Nil(t, err)
		assert.Equal(t, p, decoded)
	})

	t.Run("key value leaf page", func(t *testing.T) {
		p := &KeyValueLeafPage{PageKey: 9}
		p.Put([]byte("name"), []byte("pagestore"))
		p.Put([]byte("empty"), nil)
		decoded, err := PagePersister{}.DeserializePage(encode(t, p), Data)
		assert.Nil(t, err)
		leaf := decoded.(*KeyValueLeafPage)
		assert.Equal(t, p.PageKey, leaf.PageKey)
		assert.Equal(t, p.Keys, leaf.Keys)
		assert.Equal(t, [][]byte{[]byte("pagestore"), {}}, leaf.Values)
	})

	t.Run("indirect page", func(t *testing.T) {
		p := &IndirectPage{References: []int64{520, 768, -1}}
		decoded, err := PagePersister{}.DeserializePage(encode(t, p), Data)
		assert.Nil(t, err)
		assert.Equal(t, p, decoded)
	})
}

func TestPagePersister_Corrupted(t *testing.T) {
	// 空负载
	_, err := PagePersister{}.DeserializePage(nil, Data)
	assert.Equal(t, ErrCorruptedPage, err)

	// 未知的页面种类标签
	_, err = PagePersister{}.DeserializePage([]byte{0xff}, Data)
	assert.ErrorIs(t, err, ErrUnknownPageKind)

	// 截断的负载
	full := encode(t, &RevisionRootPage{Revision: 1, CommitMessage: "msg"})
	_, err = PagePersister{}.DeserializePage(full[:3], Data)
	assert.ErrorIs(t, err, ErrCorruptedPage)
}

func TestKeyValueLeafPage_HashCode(t *testing.T) {
	p := &KeyValueLeafPage{PageKey: 1}
	p.Put([]byte("a"), []byte("1"))

	h1 := p.HashCode()
	assert.Len(t, h1, 32)
	// 重复计算返回缓存值
	assert.Equal(t, h1, p.HashCode())

	// 新增键值对后哈希失效并改变
	p.Put([]byte("b"), []byte("2"))
	h2 := p.HashCode()
	assert.NotEqual(t, h1, h2)
}
