// Package eventing 定义领域事件类型
package eventing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event 领域事件
//
// 事件是描述一次状态变更的不可变事实，由命令处理器产生，
// 经事件总线路由到目标聚合的 reducer。
//
// 设计原则：
//   - 事件构造后不可变
//   - 事件通过 AggregateID 指明目标聚合
//   - Version 在事件成功应用后由总线盖戳（应用前为 0）
type Event struct {
	// ID 事件唯一标识
	ID string `json:"id"`

	// Type 事件类型标签（注册期绑定的稳定字符串键，不使用反射）
	Type string `json:"type"`

	// AggregateID 目标聚合标识
	AggregateID string `json:"aggregate_id"`

	// Payload 事件数据
	Payload any `json:"payload"`

	// Timestamp 事件产生时间
	Timestamp time.Time `json:"timestamp"`

	// Version 应用后的聚合版本（应用前为 0）
	Version uint64 `json:"version"`
}

// NewEvent 创建事件
//
// 参数：
//   - aggregateID: 目标聚合标识
//   - eventType: 事件类型标签
//   - payload: 事件数据
func NewEvent(aggregateID, eventType string, payload any) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Timestamp:   time.Now(),
	}
}

// Validate 校验事件的最小结构要求
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("事件ID不能为空")
	}
	if e.Type == "" {
		return fmt.Errorf("事件类型不能为空")
	}
	if e.AggregateID == "" {
		return fmt.Errorf("目标聚合标识不能为空")
	}
	return nil
}

// WithVersion 返回盖戳了聚合版本的事件副本（保持原事件不可变）
func (e *Event) WithVersion(version uint64) *Event {
	stamped := *e
	stamped.Version = version
	return &stamped
}
