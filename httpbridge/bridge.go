// Package httpbridge 把 HTTP 请求桥接到分发引擎
//
// 桥接层只做边界翻译：请求 -> 触发器、Result -> 状态码 + JSON 响应，
// 不包含任何领域逻辑。引擎核心对 HTTP 一无所知。
package httpbridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/chris576/Gluon/command"
	"github.com/chris576/Gluon/dispatch"
	"github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/logging"
)

// maxPayloadBytes 入站载荷上限
const maxPayloadBytes = 1 << 20

// Bridge HTTP 入站桥
type Bridge struct {
	engine *dispatch.Engine
	logger logging.Logger
}

// New 创建桥接器
func New(engine *dispatch.Engine, logger logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.ComponentLogger("httpbridge")
	}
	return &Bridge{engine: engine, logger: logger}
}

// ServeHTTP 实现 http.Handler
//
// 请求方法 + 路径即触发器形状，请求体即原始载荷；
// 形状匹配交给引擎的注册表做精确匹配，桥接层不维护路由表。
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		b.writeError(w, http.StatusBadRequest, "cannot read request body", dispatch.StageReceived, errors.ErrCodeInvalidInput)
		return
	}

	result := b.engine.Dispatch(r.Context(), command.Trigger{
		Method:  r.Method,
		Route:   r.URL.Path,
		Payload: payload,
	})

	if result.Succeeded() {
		b.writeJSON(w, http.StatusOK, map[string]any{
			"code":    0,
			"message": "success",
			"data": map[string]any{
				"event_id":     result.Event.ID,
				"event_type":   result.Event.Type,
				"aggregate_id": result.Event.AggregateID,
				"version":      result.Version,
			},
		})
		return
	}

	status := statusFor(result.Code())
	b.logger.Debug(r.Context(), "分发失败",
		logging.String("method", r.Method),
		logging.String("route", r.URL.Path),
		logging.String("stage", string(result.Stage)),
		logging.Int("status", status),
		logging.Error(result.Err),
	)
	b.writeError(w, status, result.Err.Error(), result.Stage, result.Code())
}

// statusFor 错误码到 HTTP 状态码的确定性映射
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeUnknownTrigger, errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeTranslation, errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeConflict, errors.ErrCodeConfigurationConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (b *Bridge) writeError(w http.ResponseWriter, status int, message string, stage dispatch.Stage, code errors.ErrorCode) {
	b.writeJSON(w, status, map[string]any{
		"code":    status,
		"message": message,
		"stage":   string(stage),
		"error":   string(code),
	})
}

func (b *Bridge) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		b.logger.Warn(context.Background(), "响应写出失败", logging.Error(err))
	}
}
