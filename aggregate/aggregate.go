// Package aggregate 提供按标识寻址的聚合存储
package aggregate

// Aggregate 聚合快照
//
// 聚合是版本化的、按标识寻址的状态容器。
// 引擎不关心 State 的具体结构，只负责"把事件应用到状态上，得到新状态"。
// Version 从注册时的 0 开始，每成功应用一个事件严格加一。
type Aggregate struct {
	Identity string
	State    any
	Version  uint64
}
