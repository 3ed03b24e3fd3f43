// Package config 定义引擎的注册期配置面
package config

import (
	"fmt"

	"github.com/chris576/Gluon/command"
	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/eventing/bus"
	"github.com/chris576/Gluon/validation"
)

// CommandTrigger 触发器形状到命令类型的声明
type CommandTrigger struct {
	Method      string
	Route       string
	CommandType string
	Translate   command.Translator
	Structural  command.StructuralValidator
}

// Shape 触发器形状
func (t CommandTrigger) Shape() command.TriggerShape {
	return command.TriggerShape{Method: t.Method, Route: t.Route}
}

// CommandValidation 命令验证规则的声明
type CommandValidation struct {
	CommandType string
	Rule        string
	Priority    int
	Predicate   validation.Predicate
}

// CommandHandler 命令处理器（命令 -> 事件翻译）的声明
type CommandHandler struct {
	CommandType string
	Translate   command.EventTranslator
}

// Aggregate 聚合的声明（标识 + 初始状态）
type Aggregate struct {
	Identity     string
	InitialState any
}

// EventHandler 事件归约绑定的声明
type EventHandler struct {
	EventType   string
	AggregateID string
	Reduce      bus.Reducer
}

// Config 引擎配置
//
// 这是一份显式、可校验的配置对象：全部绑定在引擎构造前声明完毕，
// 构造时一次性摄入，运行期只读。配置取代了隐式的进程级注册表，
// 重复/歧义的绑定在 Validate 阶段即刻报错，不接受部分配置。
type Config struct {
	CommandTriggers    []CommandTrigger
	CommandValidations []CommandValidation
	CommandHandlers    []CommandHandler
	Aggregates         []Aggregate
	EventHandlers      []EventHandler
}

// Validate 预检配置的一致性（fail fast）
//
// 检查项：
//   - 触发器形状歧义：同一形状绑定到不同命令类型
//   - 命令处理器重复：同一命令类型声明多个处理器
//   - 聚合标识重复
//   - 事件绑定歧义：同一（事件类型, 聚合标识）对声明多个 reducer
//   - 引用完整性：每个触发器的命令类型必须有处理器；
//     每个事件绑定的目标聚合必须已声明
func (c *Config) Validate() error {
	triggerTypes := make(map[string]string)
	for _, t := range c.CommandTriggers {
		if t.Method == "" || t.Route == "" || t.CommandType == "" || t.Translate == nil {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("incomplete trigger declaration: %s %s -> %q", t.Method, t.Route, t.CommandType))
		}
		key := t.Shape().Key()
		if existing, ok := triggerTypes[key]; ok && existing != t.CommandType {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("trigger %s declared for both %s and %s", key, existing, t.CommandType))
		}
		triggerTypes[key] = t.CommandType
	}

	handlers := make(map[string]bool)
	for _, h := range c.CommandHandlers {
		if h.CommandType == "" || h.Translate == nil {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("incomplete handler declaration for command %q", h.CommandType))
		}
		if handlers[h.CommandType] {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("duplicate handler for command type %s", h.CommandType))
		}
		handlers[h.CommandType] = true
	}

	for key, commandType := range triggerTypes {
		if !handlers[commandType] {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("trigger %s maps to command %s which has no handler", key, commandType))
		}
	}

	for _, v := range c.CommandValidations {
		if v.CommandType == "" || v.Rule == "" || v.Predicate == nil {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("incomplete validation declaration %q for command %q", v.Rule, v.CommandType))
		}
	}

	aggregates := make(map[string]bool)
	for _, a := range c.Aggregates {
		if a.Identity == "" {
			return errors.NewError(errors.ErrCodeConfigurationConflict, "aggregate declared without identity")
		}
		if aggregates[a.Identity] {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("duplicate aggregate identity %s", a.Identity))
		}
		aggregates[a.Identity] = true
	}

	eventBindings := make(map[string]bool)
	for _, h := range c.EventHandlers {
		if h.EventType == "" || h.AggregateID == "" || h.Reduce == nil {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("incomplete event handler declaration for (%q, %q)", h.EventType, h.AggregateID))
		}
		key := h.EventType + "|" + h.AggregateID
		if eventBindings[key] {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("duplicate event handler for (%s, %s)", h.EventType, h.AggregateID))
		}
		eventBindings[key] = true

		if !aggregates[h.AggregateID] {
			return errors.NewError(errors.ErrCodeConfigurationConflict,
				fmt.Sprintf("event handler (%s, %s) targets undeclared aggregate", h.EventType, h.AggregateID))
		}
	}

	return nil
}
