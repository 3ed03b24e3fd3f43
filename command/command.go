// Package command 提供触发器到命令的注册表与命令值对象
package command

import (
	"time"

	"github.com/google/uuid"
)

// Trigger 入站触发器
//
// 触发器是引擎的入站边界：方法 + 路由 + 原始载荷。
// 每次入站调用创建一个，分发完成后即丢弃，引擎不保留任何引用。
type Trigger struct {
	Method  string
	Route   string
	Payload []byte
}

// Shape 返回触发器的形状（注册表的匹配键）
func (t Trigger) Shape() TriggerShape {
	return TriggerShape{Method: t.Method, Route: t.Route}
}

// TriggerShape 触发器形状，注册期声明、精确匹配
type TriggerShape struct {
	Method string
	Route  string
}

// Key 形状的唯一键
func (s TriggerShape) Key() string {
	return s.Method + " " + s.Route
}

func (s TriggerShape) String() string {
	return s.Key()
}

// Command 命令值对象
//
// 命令是从触发器载荷翻译而来的类型化意图，构造后不可变。
// 除翻译函数填入的字段外不携带任何身份信息。
type Command struct {
	// ID 命令唯一标识
	ID string `json:"id"`

	// Type 命令类型标签（注册期绑定的稳定字符串键）
	Type string `json:"type"`

	// Payload 命令数据
	Payload any `json:"payload"`

	// Timestamp 命令创建时间
	Timestamp time.Time `json:"timestamp"`
}

// NewCommand 创建命令
//
// 参数：
//   - commandType: 命令类型（例如："CreateEntity"）
//   - payload: 翻译后的命令数据
func NewCommand(commandType string, payload any) *Command {
	return &Command{
		ID:        uuid.NewString(),
		Type:      commandType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
