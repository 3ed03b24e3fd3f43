package dispatch

import (
	"context"
	"fmt"

	"github.com/chris576/Gluon/aggregate"
	"github.com/chris576/Gluon/command"
	"github.com/chris576/Gluon/config"
	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/eventing"
	"github.com/chris576/Gluon/eventing/bus"
	"github.com/chris576/Gluon/eventing/journal"
	"github.com/chris576/Gluon/logging"
	"github.com/chris576/Gluon/validation"
)

// Engine 分发协调器
//
// 构造时一次性摄入全部配置并装配注册表、验证链、聚合存储与事件总线；
// 任何注册错误都会中止构造，不产生部分初始化的引擎。
// 运行期 Dispatch 驱动完整管线：
//
//	Received -> Translated -> Validated -> Handled -> Applied -> Completed
//
// 每次分发恰好返回一个 Result，错误被类型化并归因到失败阶段，
// 绝不以 panic 形式越过协调器边界。
type Engine struct {
	registry *command.Registry
	chain    *validation.Chain
	store    *aggregate.Store
	bus      *bus.Bus

	logger logging.Logger
}

// Option 引擎选项
type Option func(*engineOptions)

type engineOptions struct {
	logger    logging.Logger
	journal   journal.Journal
	observers []bus.Observer
}

// WithLogger 注入引擎级 logger
func WithLogger(logger logging.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithJournal 启用事件日志（尽力而为的持久化扩展点）
func WithJournal(j journal.Journal) Option {
	return func(o *engineOptions) { o.journal = j }
}

// WithObserver 挂接事件应用后的外联通知（可多次）
func WithObserver(observer bus.Observer) Option {
	return func(o *engineOptions) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// New 校验配置并装配引擎
//
// 先跑 Config.Validate 做交叉一致性预检，再逐条注册到各组件；
// 两层都是 fail fast：第一个错误即返回，引擎不可用。
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = logging.ComponentLogger("dispatch.engine")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfigurationConflict, "engine configuration rejected")
	}

	registry := command.NewRegistry(options.logger.WithFields(logging.String("component", "command.registry")))
	chain := validation.NewChain(options.logger.WithFields(logging.String("component", "validation.chain")))
	store := aggregate.NewStore(options.logger.WithFields(logging.String("component", "aggregate.store")))

	busOpts := []bus.Option{
		bus.WithLogger(options.logger.WithFields(logging.String("component", "eventing.bus"))),
	}
	if options.journal != nil {
		busOpts = append(busOpts, bus.WithJournal(options.journal))
	}
	for _, observer := range options.observers {
		busOpts = append(busOpts, bus.WithObserver(observer))
	}
	eventBus := bus.NewBus(store, busOpts...)

	for _, t := range cfg.CommandTriggers {
		if err := registry.BindTrigger(t.Shape(), t.CommandType, t.Translate, t.Structural); err != nil {
			return nil, err
		}
	}
	for _, h := range cfg.CommandHandlers {
		if err := registry.BindHandler(h.CommandType, h.Translate); err != nil {
			return nil, err
		}
	}
	for _, v := range cfg.CommandValidations {
		if err := chain.AddRule(v.CommandType, v.Rule, v.Priority, v.Predicate); err != nil {
			return nil, err
		}
	}
	for _, a := range cfg.Aggregates {
		if err := store.Register(a.Identity, a.InitialState); err != nil {
			return nil, err
		}
	}
	for _, h := range cfg.EventHandlers {
		if err := eventBus.Bind(h.EventType, h.AggregateID, h.Reduce); err != nil {
			return nil, err
		}
	}

	options.logger.Info(context.Background(), "分发引擎就绪",
		logging.Int("triggers", registry.TriggerCount()),
		logging.Int("aggregates", store.Len()),
		logging.Int("event_bindings", eventBus.BindingCount()),
	)

	return &Engine{
		registry: registry,
		chain:    chain,
		store:    store,
		bus:      eventBus,
		logger:   options.logger,
	}, nil
}

// Dispatch 同步执行一次完整分发
//
// 管线各阶段失败即终止，失败 Result 的 Stage 指向未能完成的阶段：
//   - 触发器无绑定           -> Received / UnknownTrigger
//   - 翻译失败               -> Translated / TranslationError
//   - 结构校验或验证链失败   -> Validated / ValidationFailed
//   - 处理器缺失或执行失败   -> Handled
//   - 事件无路由或 reducer 失败 -> Applied
//
// 用户提供的翻译器、谓词、处理器与 reducer 里的 panic 会被捕获，
// 转为对应阶段的类型化失败。
func (e *Engine) Dispatch(ctx context.Context, trigger command.Trigger) Result {
	binding, err := e.registry.Lookup(trigger)
	if err != nil {
		e.logger.Warn(ctx, "未知触发器",
			logging.String("trigger", trigger.Shape().String()),
		)
		return failure(StageReceived, err)
	}

	cmd, err := e.translate(binding, trigger.Payload)
	if err != nil {
		return failure(StageTranslated, err)
	}

	if err := e.validate(ctx, binding, cmd); err != nil {
		return failure(StageValidated, err)
	}

	evt, err := e.handle(ctx, cmd)
	if err != nil {
		return failure(StageHandled, err)
	}

	stamped, err := e.publish(ctx, evt)
	if err != nil {
		return failure(StageApplied, err)
	}

	e.logger.Info(ctx, "分发完成",
		logging.String("command_type", cmd.Type),
		logging.String("event_type", stamped.Type),
		logging.String("aggregate_id", stamped.AggregateID),
		logging.Uint64("version", stamped.Version),
	)
	return success(stamped)
}

// translate 触发器载荷 -> 命令，翻译器产出的命令类型必须与绑定一致
func (e *Engine) translate(binding *command.CommandBinding, payload []byte) (cmd *command.Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			cmd = nil
			err = errors.NewError(errors.ErrCodeTranslation,
				fmt.Sprintf("translator panic for command %s: %v", binding.CommandType, r))
		}
	}()

	cmd, err = binding.Translate(payload)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeTranslation,
			fmt.Sprintf("cannot translate trigger payload into command %s", binding.CommandType))
	}
	if cmd == nil {
		return nil, errors.NewError(errors.ErrCodeTranslation,
			fmt.Sprintf("translator returned no command for %s", binding.CommandType))
	}
	if cmd.Type != binding.CommandType {
		return nil, errors.NewError(errors.ErrCodeTranslation,
			fmt.Sprintf("translator produced command %s, binding expects %s", cmd.Type, binding.CommandType))
	}
	return cmd, nil
}

// validate 结构校验（注册期附加）+ 验证链
func (e *Engine) validate(ctx context.Context, binding *command.CommandBinding, cmd *command.Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewError(errors.ErrCodeValidationFailed,
				fmt.Sprintf("validator panic for command %s: %v", cmd.Type, r))
		}
	}()

	if binding.Structural != nil {
		if err := binding.Structural(cmd); err != nil {
			return errors.WrapError(err, errors.ErrCodeValidationFailed,
				fmt.Sprintf("command %s failed structural validation", cmd.Type))
		}
	}
	return e.chain.RunAll(ctx, cmd)
}

// handle 命令 -> 事件
func (e *Engine) handle(ctx context.Context, cmd *command.Command) (evt *eventing.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			evt = nil
			err = errors.NewError(errors.ErrCodeHandling,
				fmt.Sprintf("handler panic for command %s: %v", cmd.Type, r))
		}
	}()

	handler, err := e.registry.Handler(cmd.Type)
	if err != nil {
		return nil, err
	}

	evt, err = handler(ctx, cmd)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeHandling,
			fmt.Sprintf("handler failed for command %s", cmd.Type))
	}
	if evt == nil {
		return nil, errors.NewError(errors.ErrCodeHandling,
			fmt.Sprintf("handler produced no event for command %s", cmd.Type))
	}
	return evt, nil
}

// publish 事件 -> 聚合状态变更（含 reducer panic 捕获）
func (e *Engine) publish(ctx context.Context, evt *eventing.Event) (stamped *eventing.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			stamped = nil
			err = errors.NewError(errors.ErrCodeInternal,
				fmt.Sprintf("reducer panic for event %s: %v", evt.Type, r))
		}
	}()

	return e.bus.Publish(ctx, evt)
}

// Aggregate 读取聚合的当前快照
func (e *Engine) Aggregate(identity string) (aggregate.Aggregate, error) {
	return e.store.Get(identity)
}

// Identities 已注册的聚合标识（字典序）
func (e *Engine) Identities() []string {
	return e.store.Identities()
}
