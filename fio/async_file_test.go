package fio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestFile(t *testing.T) *AsyncFile {
	t.Helper()
	// 使用 t.TempDir() 它会自动创建并清理临时目录
	path := filepath.Join(t.TempDir(), "a.data")
	af, err := NewAsyncFile(path)
	assert.Nil(t, err)
	assert.NotNil(t, af)
	return af
}

func TestAsyncFile_Write(t *testing.T) {
	af := newTestFile(t)
	defer af.Close()

	n, err := af.Write([]byte("pagestore"), 0).Join()
	assert.Nil(t, err)
	assert.Equal(t, int64(9), n)

	// 带偏移的写入
	n, err = af.Write([]byte("1234567"), 9).Join()
	assert.Nil(t, err)
	assert.Equal(t, int64(7), n)

	size, err := af.Size().Join()
	assert.Nil(t, err)
	assert.Equal(t, int64(16), size)
}

func TestAsyncFile_Read(t *testing.T) {
	af := newTestFile(t)
	defer af.Close()

	_, err := af.Write([]byte("key-a"), 0).Join()
	assert.Nil(t, err)
	_, err = af.Write([]byte("key-b"), 5).Join()
	assert.Nil(t, err)

	b1 := make([]byte, 5)
	n, err := af.Read(b1, 0).Join()
	assert.Nil(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, []byte("key-a"), b1)

	b2 := make([]byte, 5)
	n, err = af.Read(b2, 5).Join()
	assert.Nil(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, []byte("key-b"), b2)
}

func TestAsyncFile_DataSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.data")
	af, err := NewAsyncFile(path)
	assert.Nil(t, err)
	defer af.Close()

	// 1. 写入数据
	testData := []byte("hello sync test")
	_, err = af.Write(testData, 0).Join()
	assert.Nil(t, err)

	// 2. 调用 DataSync 将数据刷到磁盘
	_, err = af.DataSync().Join()
	assert.Nil(t, err)

	// 3. 使用标准库重新读取文件，验证数据是否已经成功持久化
	persisted, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, testData, persisted)
}

func TestAsyncFile_Truncate(t *testing.T) {
	af := newTestFile(t)
	defer af.Close()

	_, err := af.Write(make([]byte, 100), 0).Join()
	assert.Nil(t, err)

	_, err = af.Truncate(10).Join()
	assert.Nil(t, err)

	size, err := af.Size().Join()
	assert.Nil(t, err)
	assert.Equal(t, int64(10), size)
}

func TestAsyncFile_Ordering(t *testing.T) {
	af := newTestFile(t)
	defer af.Close()

	// 同一个文件上的操作按提交顺序执行
	futs := make([]*Future, 0, 10)
	for i := 0; i < 10; i++ {
		futs = append(futs, af.Write([]byte{byte(i)}, int64(i)))
	}
	for _, fut := range futs {
		_, err := fut.Join()
		assert.Nil(t, err)
	}

	buf := make([]byte, 10)
	_, err := af.Read(buf, 0).Join()
	assert.Nil(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, buf)
}

func TestAsyncFile_Close(t *testing.T) {
	af := newTestFile(t)

	_, err := af.Write([]byte("aaa"), 0).Join()
	assert.Nil(t, err)

	// 重复关闭是空操作
	assert.Nil(t, af.Close())
	assert.Nil(t, af.Close())

	// 关闭之后的操作直接失败
	_, err = af.Write([]byte("bbb"), 3).Join()
	assert.Equal(t, ErrFileClosed, err)
}
