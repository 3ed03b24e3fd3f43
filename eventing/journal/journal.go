// Package journal 提供已应用事件的记录扩展点
package journal

import (
	"context"
	"sync"

	"github.com/chris576/Gluon/eventing"
)

// Journal 已应用事件日志
//
// 这是为将来接入持久化预留的扩展点：总线在事件成功应用后追加记录。
// 记录是尽力而为的，不提供跨进程生命周期的持久性保证，
// 追加失败由调用方记日志，绝不反馈为分发失败。
type Journal interface {
	// Append 追加一条已应用事件（版本已盖戳）
	Append(ctx context.Context, evt *eventing.Event) error

	// Events 返回指定聚合的事件序列（按应用顺序）
	Events(ctx context.Context, aggregateID string) ([]*eventing.Event, error)

	// Len 已记录的事件总数
	Len(ctx context.Context) (int, error)
}

// MemoryJournal 进程内事件日志
type MemoryJournal struct {
	byAggregate map[string][]*eventing.Event
	total       int
	mutex       sync.RWMutex
}

// NewMemoryJournal 创建内存日志
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		byAggregate: make(map[string][]*eventing.Event),
	}
}

// Append 追加事件
func (j *MemoryJournal) Append(ctx context.Context, evt *eventing.Event) error {
	if err := evt.Validate(); err != nil {
		return err
	}

	j.mutex.Lock()
	defer j.mutex.Unlock()

	j.byAggregate[evt.AggregateID] = append(j.byAggregate[evt.AggregateID], evt)
	j.total++
	return nil
}

// Events 返回聚合的事件序列
func (j *MemoryJournal) Events(ctx context.Context, aggregateID string) ([]*eventing.Event, error) {
	j.mutex.RLock()
	defer j.mutex.RUnlock()

	events := j.byAggregate[aggregateID]
	out := make([]*eventing.Event, len(events))
	copy(out, events)
	return out, nil
}

// Len 已记录的事件总数
func (j *MemoryJournal) Len(ctx context.Context) (int, error) {
	j.mutex.RLock()
	defer j.mutex.RUnlock()
	return j.total, nil
}
