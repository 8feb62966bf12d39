package index

import (
	"errors"
	"sync"
	"time"

	"github.com/google/btree"
)

var (
	ErrLoadTimeout = errors.New("timed out loading revision file data")
)

// RevisionFileData 某个修订版本根页面在数据文件中的位置信息
type RevisionFileData struct {
	Offset    int64
	Timestamp time.Time
}

// revisionItem btree 中的条目，按修订版本号排序
type revisionItem struct {
	revision uint32
	data     RevisionFileData
}

func (it revisionItem) Less(than btree.Item) bool {
	return it.revision < than.(revisionItem).revision
}

// RevisionCache 修订版本号到偏移信息的有序缓存
// 供读取端并发查询、写入端单线程插入共用
type RevisionCache struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

func NewRevisionCache() *RevisionCache {
	return &RevisionCache{tree: btree.New(32)}
}

// Put 写入修订版本的位置信息，已存在则覆盖
func (c *RevisionCache) Put(revision uint32, data RevisionFileData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.ReplaceOrInsert(revisionItem{revision: revision, data: data})
}

// Get 查询修订版本的位置信息
func (c *RevisionCache) Get(revision uint32) (RevisionFileData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it := c.tree.Get(revisionItem{revision: revision})
	if it == nil {
		return RevisionFileData{}, false
	}
	return it.(revisionItem).data, true
}

// GetOrLoad 查询，缓存未命中时调用 load 补齐，等待不超过 timeout
// 加载成功后结果写回缓存
func (c *RevisionCache) GetOrLoad(revision uint32, timeout time.Duration,
	load func() (RevisionFileData, error)) (RevisionFileData, error) {
	if data, ok := c.Get(revision); ok {
		return data, nil
	}

	type outcome struct {
		data RevisionFileData
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		data, err := load()
		ch <- outcome{data: data, err: err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			return RevisionFileData{}, out.err
		}
		c.Put(revision, out.data)
		return out.data, nil
	case <-time.After(timeout):
		return RevisionFileData{}, ErrLoadTimeout
	}
}

// Latest 返回缓存中最大的修订版本号及其位置信息
func (c *RevisionCache) Latest() (uint32, RevisionFileData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it := c.tree.Max()
	if it == nil {
		return 0, RevisionFileData{}, false
	}
	item := it.(revisionItem)
	return item.revision, item.data, true
}

// Len 缓存中的条目数
func (c *RevisionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Len()
}
