// Package outbound 提供事件应用后的外联通知实现
package outbound

import (
	"context"
	"sync"

	"github.com/chris576/Gluon/eventing"
)

// Announcer publishes applied events to an external system.
//
// Announce runs after the aggregate mutation has committed; it is a
// best-effort notification hook, never part of the dispatch transaction.
type Announcer interface {
	Announce(ctx context.Context, evt *eventing.Event) error
	Close() error
}

// MemoryAnnouncer collects announced events in memory (test double).
type MemoryAnnouncer struct {
	events []*eventing.Event
	mutex  sync.Mutex
	closed bool
}

// NewMemoryAnnouncer 创建内存通知器
func NewMemoryAnnouncer() *MemoryAnnouncer {
	return &MemoryAnnouncer{}
}

func (a *MemoryAnnouncer) Announce(ctx context.Context, evt *eventing.Event) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.events = append(a.events, evt)
	return nil
}

func (a *MemoryAnnouncer) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.closed = true
	return nil
}

// Events 返回已通知事件的副本
func (a *MemoryAnnouncer) Events() []*eventing.Event {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	out := make([]*eventing.Event, len(a.events))
	copy(out, a.events)
	return out
}

// Closed 是否已关闭
func (a *MemoryAnnouncer) Closed() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.closed
}
