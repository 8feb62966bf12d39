package page

import (
	"sync"

	"github.com/zeebo/blake3"
)

type Kind = byte

const (
	// KindKeyValueLeaf 无序键值叶子页面
	KindKeyValueLeaf Kind = iota + 1
	// KindIndirect 间接页面，持有子页面的偏移量
	KindIndirect
	// KindRevisionRoot 单个已提交修订版本的页面树根
	KindRevisionRoot
	// KindUber 根中之根，指向当前修订版本的根页面
	KindUber
)

// SerializationType 决定页面写入的目标：数据文件或事务意图日志
type SerializationType = byte

const (
	Data SerializationType = iota
	TransactionIntentLog
)

// Page 是所有页面变体的公共接口
// 写入器只关心页面的种类，序列化后的字节对它是不透明的
type Page interface {
	Kind() Kind
}

// PageReference 页面的可变描述符
// 写入器在持久化页面时作为副作用更新其中的字段
type PageReference struct {
	Key              int64  // 数据文件中的绝对字节偏移（DATA 模式下设置）
	PersistentLogKey int64  // 事务意图日志中的绝对偏移（TRANSACTION_INTENT_LOG 模式下设置）
	Hash             []byte // 内容哈希
	Page             Page   // 内存中的页面，写入前不能为空
}

// NewReference 创建一个尚未持久化的页面引用
func NewReference(p Page) *PageReference {
	return &PageReference{Key: -1, PersistentLogKey: -1, Page: p}
}

// UberPage 持久的提交标记，每次提交写两份以抵御撕裂写
type UberPage struct {
	Revision    uint32
	RootPageKey int64 // 当前修订版本根页面在数据文件中的偏移
}

func (*UberPage) Kind() Kind { return KindUber }

// RevisionRootPage 单个修订版本的页面树根
type RevisionRootPage struct {
	Revision        uint32
	Timestamp       int64 // 修订时间戳，毫秒
	MaxNodeKey      uint64
	IndirectPageKey int64
	CommitMessage   string
}

func (*RevisionRootPage) Kind() Kind { return KindRevisionRoot }

// KeyValueLeafPage 无序键值页面，自带内容哈希
type KeyValueLeafPage struct {
	PageKey uint64
	Keys    [][]byte
	Values  [][]byte

	mu   sync.Mutex
	hash []byte
}

func (*KeyValueLeafPage) Kind() Kind { return KindKeyValueLeaf }

// Put 追加一条键值对，并使缓存的哈希失效
func (p *KeyValueLeafPage) Put(key, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	p.Values = append(p.Values, value)
	p.hash = nil
}

// HashCode 页面自报的内容哈希，对所有键值对计算，惰性缓存
func (p *KeyValueLeafPage) HashCode() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hash != nil {
		return p.hash
	}
	h := blake3.New()
	for i := range p.Keys {
		h.Write(p.Keys[i])
		h.Write(p.Values[i])
	}
	p.hash = h.Sum(nil)
	return p.hash
}

// IndirectPage 间接页面，引用下一层页面的偏移量
type IndirectPage struct {
	References []int64
}

func (*IndirectPage) Kind() Kind { return KindIndirect }
