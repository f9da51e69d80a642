package service

import (
	"context"
	"sync"
)

// Inflight 跟踪每个会话正在进行的提问，结束会话时统一取消。
type Inflight struct {
	mu     sync.Mutex
	next   uint64
	active map[string]map[uint64]context.CancelFunc
}

// NewInflight 创建一个空的 Inflight。
func NewInflight() *Inflight {
	return &Inflight{active: make(map[string]map[uint64]context.CancelFunc)}
}

// Track 登记 cancel，返回的函数用于在提问结束后注销。
func (f *Inflight) Track(sessionID string, cancel context.CancelFunc) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	if f.active[sessionID] == nil {
		f.active[sessionID] = make(map[uint64]context.CancelFunc)
	}
	f.active[sessionID][id] = cancel
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.active[sessionID], id)
		if len(f.active[sessionID]) == 0 {
			delete(f.active, sessionID)
		}
	}
}

// Cancel 取消会话下所有进行中的提问，返回取消的数量。
func (f *Inflight) Cancel(sessionID string) int {
	f.mu.Lock()
	cancels := f.active[sessionID]
	delete(f.active, sessionID)
	f.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}
