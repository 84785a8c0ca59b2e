package ingest

import (
	"sort"
	"sync"

	"go-post-archiver/internal/model"
)

// collector 在并发处理期间收集文档与失败项，并统计完成数。
type collector struct {
	mu       sync.Mutex
	docs     map[int]model.Document // key: sitemap index
	failures []model.Failure
	done     int
}

func newCollector(n int) *collector {
	return &collector{docs: make(map[int]model.Document, n)}
}

// addDocument 记录成功文档并返回已完成数。
func (c *collector) addDocument(d model.Document) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[d.Index] = d
	c.done++
	return c.done
}

// addFailure 记录失败项并返回已完成数。
func (c *collector) addFailure(f model.Failure) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, f)
	c.done++
	return c.done
}

// snapshot 返回按 sitemap 顺序排列的副本。
func (c *collector) snapshot() ([]model.Document, []model.Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := make([]model.Document, 0, len(c.docs))
	for _, d := range c.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Index < docs[j].Index })
	fs := append([]model.Failure(nil), c.failures...)
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Index < fs[j].Index })
	return docs, fs
}
