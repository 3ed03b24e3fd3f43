// Package dispatch 提供分发协调器：触发器到状态变更的完整管线
package dispatch

import (
	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/eventing"
)

// Stage 一次分发的阶段
//
// 状态机：Received -> Translated -> Validated -> Handled -> Applied -> Completed。
// 任何非终态都可以进入失败终态；失败结果的 Stage 标记未能完成的阶段。
type Stage string

const (
	StageReceived   Stage = "received"
	StageTranslated Stage = "translated"
	StageValidated  Stage = "validated"
	StageHandled    Stage = "handled"
	StageApplied    Stage = "applied"
	StageCompleted  Stage = "completed"
)

// Result 分发结果
//
// 每次分发恰好产生一个 Result：成功携带新版本与已盖戳事件，
// 失败携带失败阶段与类型化错误。错误绝不越过协调器边界向外抛出。
type Result struct {
	// Stage 成功时为 Completed，失败时为未完成的阶段
	Stage Stage

	// Version 成功时为目标聚合的新版本
	Version uint64

	// Event 成功时为已应用（已盖戳版本）的事件
	Event *eventing.Event

	// Err 失败原因（类型化，可用 errors.CodeOf 取码）
	Err error
}

// Succeeded 分发是否成功
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Code 失败错误码（成功返回空码）
func (r Result) Code() errors.ErrorCode {
	return errors.CodeOf(r.Err)
}

func success(evt *eventing.Event) Result {
	return Result{Stage: StageCompleted, Version: evt.Version, Event: evt}
}

func failure(stage Stage, err error) Result {
	return Result{Stage: stage, Err: err}
}
