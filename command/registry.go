package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/eventing"
	"github.com/chris576/Gluon/logging"
)

// Translator 把触发器的原始载荷翻译为命令
type Translator func(payload []byte) (*Command, error)

// StructuralValidator 注册期附加的结构性校验（翻译之后、验证链之前执行）
type StructuralValidator func(cmd *Command) error

// EventTranslator 命令处理函数：把命令翻译为一个事件
type EventTranslator func(ctx context.Context, cmd *Command) (*eventing.Event, error)

// CommandBinding 触发器形状、命令类型、翻译与结构校验的绑定
type CommandBinding struct {
	Shape       TriggerShape
	CommandType string
	Translate   Translator
	Structural  StructuralValidator
}

// Registry 命令注册表
//
// 持有两张只读（启动后）映射：
//   - 触发器形状 -> CommandBinding
//   - 命令类型 -> EventTranslator（处理器绑定）
//
// 所有绑定在启动前注册完毕，冲突即刻报错（fail fast），
// 运行期只做查找，不支持动态重注册。
type Registry struct {
	triggers map[string]*CommandBinding
	handlers map[string]EventTranslator
	mutex    sync.RWMutex

	logger logging.Logger
}

// NewRegistry 创建注册表
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.ComponentLogger("command.registry")
	}
	return &Registry{
		triggers: make(map[string]*CommandBinding),
		handlers: make(map[string]EventTranslator),
		logger:   logger,
	}
}

// BindTrigger 注册触发器形状到命令类型的绑定
//
// 冲突语义：
//   - 相同形状 + 相同命令类型：视为幂等重注册，覆盖并告警
//   - 相同形状 + 不同命令类型：配置冲突，注册期硬错误
func (r *Registry) BindTrigger(shape TriggerShape, commandType string, translate Translator, structural StructuralValidator) error {
	if shape.Method == "" || shape.Route == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "trigger shape requires method and route")
	}
	if commandType == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "command type cannot be empty")
	}
	if translate == nil {
		return errors.NewError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("translator cannot be nil for trigger %s", shape))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := shape.Key()
	if existing, ok := r.triggers[key]; ok {
		if existing.CommandType != commandType {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("trigger %s already bound to command %s, cannot rebind to %s",
					shape, existing.CommandType, commandType))
		}
		r.logger.Warn(context.Background(), "触发器重复注册，覆盖既有绑定",
			logging.String("trigger", key),
			logging.String("command_type", commandType),
		)
	}

	r.triggers[key] = &CommandBinding{
		Shape:       shape,
		CommandType: commandType,
		Translate:   translate,
		Structural:  structural,
	}
	return nil
}

// BindHandler 注册命令处理器绑定
//
// 每个命令类型至多一个处理器，重复注册是配置冲突。
func (r *Registry) BindHandler(commandType string, translate EventTranslator) error {
	if commandType == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "command type cannot be empty")
	}
	if translate == nil {
		return errors.NewError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("event translator cannot be nil for command %s", commandType))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.handlers[commandType]; exists {
		return errors.NewError(errors.ErrCodeConfigurationConflict,
			fmt.Sprintf("handler already registered for command type: %s", commandType))
	}

	r.handlers[commandType] = translate
	return nil
}

// Lookup 按触发器精确匹配 CommandBinding
func (r *Registry) Lookup(trigger Trigger) (*CommandBinding, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	binding, ok := r.triggers[trigger.Shape().Key()]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeUnknownTrigger,
			fmt.Sprintf("no command bound to trigger: %s", trigger.Shape()))
	}
	return binding, nil
}

// Handler 按命令类型查找处理器绑定
func (r *Registry) Handler(commandType string) (EventTranslator, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	handler, ok := r.handlers[commandType]
	if !ok {
		return nil, errors.NewError(errors.ErrCodeNotFound,
			fmt.Sprintf("no handler registered for command type: %s", commandType))
	}
	return handler, nil
}

// HasHandler 检查命令类型是否已有处理器
func (r *Registry) HasHandler(commandType string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, exists := r.handlers[commandType]
	return exists
}

// TriggerCount 已注册的触发器绑定数量
func (r *Registry) TriggerCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.triggers)
}
