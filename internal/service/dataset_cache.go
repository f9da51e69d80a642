package service

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// tableCache 按文件 MD5 缓存已解析的数据集，超过容量时淘汰最久未访问的条目。
type tableCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*tableEntry
	group    singleflight.Group // 防止同一文件被并发重复解析
}

type tableEntry struct {
	data       *ActiveDataset
	lastAccess time.Time
}

func newTableCache(capacity int) *tableCache {
	if capacity <= 0 {
		capacity = 8
	}
	return &tableCache{capacity: capacity, entries: make(map[string]*tableEntry)}
}

func (c *tableCache) get(key string) (*ActiveDataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.data, true
}

func (c *tableCache) set(key string, data *ActiveDataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &tableEntry{data: data, lastAccess: time.Now()}
	c.evictLRU()
}

// getOrLoad 命中缓存时直接返回，否则通过 load 加载并写入缓存。
func (c *tableCache) getOrLoad(key string, load func() (*ActiveDataset, error)) (*ActiveDataset, error) {
	if data, ok := c.get(key); ok {
		return data, nil
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if data, ok := c.get(key); ok {
			return data, nil
		}
		data, err := load()
		if err != nil {
			return nil, err
		}
		c.set(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ActiveDataset), nil
}

// evictLRU 调用方需持有锁。
func (c *tableCache) evictLRU() {
	for len(c.entries) > c.capacity {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.lastAccess.Before(oldest) {
				oldestKey, oldest = k, e.lastAccess
			}
		}
		delete(c.entries, oldestKey)
	}
}
