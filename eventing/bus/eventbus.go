// Package bus 提供同步事件总线：按（事件类型, 聚合标识）路由 reducer
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/chris576/Gluon/aggregate"
	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/eventing"
	"github.com/chris576/Gluon/eventing/journal"
	"github.com/chris576/Gluon/logging"
)

// Reducer 事件归约函数：把事件应用到聚合快照上，返回新状态
type Reducer func(evt *eventing.Event, snapshot aggregate.Aggregate) (newState any, err error)

// Observer 事件应用后的通知钩子（外联扩展点）
//
// Announce 在聚合状态变更提交之后调用；通知失败只记日志，
// 不会让已完成的分发失败。
type Observer interface {
	Announce(ctx context.Context, evt *eventing.Event) error
}

// bindingKey 路由键：事件类型 + 目标聚合标识
type bindingKey struct {
	eventType   string
	aggregateID string
}

// Bus 事件总线
//
// Publish 相对调用方完全同步：查找绑定、应用 reducer、安装新状态、
// 版本加一，全部在调用 goroutine 内完成，核心不做排队或异步投递。
// 每个（事件类型, 聚合标识）对恰好一个绑定，多绑定是配置错误。
type Bus struct {
	store    *aggregate.Store
	bindings map[bindingKey]Reducer
	mutex    sync.RWMutex

	journal   journal.Journal
	observers []Observer
	logger    logging.Logger
}

// Option 总线选项
type Option func(*Bus)

// WithJournal 启用事件日志
func WithJournal(j journal.Journal) Option {
	return func(b *Bus) { b.journal = j }
}

// WithObserver 注册应用后通知钩子（可多次）
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
}

// WithLogger 注入组件级 logger
func WithLogger(logger logging.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// NewBus 创建事件总线
func NewBus(store *aggregate.Store, opts ...Option) *Bus {
	b := &Bus{
		store:    store,
		bindings: make(map[bindingKey]Reducer),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.ComponentLogger("eventing.bus")
	}
	return b
}

// Bind 注册事件处理器绑定
//
// 同一（事件类型, 聚合标识）对重复绑定是配置冲突。
func (b *Bus) Bind(eventType, aggregateID string, reduce Reducer) error {
	if eventType == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "event type cannot be empty")
	}
	if aggregateID == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "aggregate identity cannot be empty")
	}
	if reduce == nil {
		return errors.NewError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("reducer cannot be nil for event %s", eventType))
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	key := bindingKey{eventType: eventType, aggregateID: aggregateID}
	if _, exists := b.bindings[key]; exists {
		return errors.NewError(errors.ErrCodeConfigurationConflict,
			fmt.Sprintf("event handler already bound for (%s, %s)", eventType, aggregateID))
	}

	b.bindings[key] = reduce
	return nil
}

// Publish 同步发布事件
//
// 执行流程：
//  1. 校验事件结构
//  2. 按（事件类型, 目标聚合）查找绑定，缺失返回 UnroutedEvent（绝不静默丢弃）
//  3. 在聚合存储的按标识互斥下应用 reducer
//  4. 给事件盖上新版本号，追加日志、通知观察者（尽力而为）
//
// 返回盖戳了新版本的事件副本。
func (b *Bus) Publish(ctx context.Context, evt *eventing.Event) (*eventing.Event, error) {
	if evt == nil {
		return nil, errors.NewError(errors.ErrCodeInvalidInput, "event cannot be nil")
	}
	if err := evt.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeInvalidInput, "invalid event")
	}

	b.mutex.RLock()
	reduce, ok := b.bindings[bindingKey{eventType: evt.Type, aggregateID: evt.AggregateID}]
	b.mutex.RUnlock()

	if !ok {
		// 配置缺口必须浮出给调用方，同时留下日志痕迹
		err := errors.NewError(errors.ErrCodeUnroutedEvent,
			fmt.Sprintf("no handler bound for event %s targeting aggregate %s", evt.Type, evt.AggregateID))
		b.logger.Error(ctx, "事件没有匹配的处理器绑定",
			logging.String("event_type", evt.Type),
			logging.String("aggregate_id", evt.AggregateID),
		)
		return nil, err
	}

	version, err := b.store.Apply(ctx, evt.AggregateID, func(snapshot aggregate.Aggregate) (any, error) {
		return reduce(evt, snapshot)
	})
	if err != nil {
		return nil, err
	}

	stamped := evt.WithVersion(version)

	if b.journal != nil {
		if err := b.journal.Append(ctx, stamped); err != nil {
			b.logger.Warn(ctx, "事件日志追加失败",
				logging.String("event_id", stamped.ID),
				logging.Error(err),
			)
		}
	}

	for _, observer := range b.observers {
		if err := observer.Announce(ctx, stamped); err != nil {
			b.logger.Warn(ctx, "事件外联通知失败",
				logging.String("event_id", stamped.ID),
				logging.Error(err),
			)
		}
	}

	return stamped, nil
}

// BindingCount 已注册的事件处理器绑定数量
func (b *Bus) BindingCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.bindings)
}
