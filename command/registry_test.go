package command

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/eventing"
	"github.com/chris576/Gluon/logging"
)

func newTestRegistry() *Registry {
	return NewRegistry(logging.NewNoopLogger())
}

func jsonTranslator(commandType string) Translator {
	return func(payload []byte) (*Command, error) {
		var body map[string]any
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, err
		}
		return NewCommand(commandType, body), nil
	}
}

func noopHandler(ctx context.Context, cmd *Command) (*eventing.Event, error) {
	return eventing.NewEvent("agg-1", "Noop", nil), nil
}

// TestRegistry_BindAndLookup 测试注册与精确匹配查找
func TestRegistry_BindAndLookup(t *testing.T) {
	registry := newTestRegistry()
	shape := TriggerShape{Method: "POST", Route: "/entity"}

	require.NoError(t, registry.BindTrigger(shape, "CreateEntity", jsonTranslator("CreateEntity"), nil))

	binding, err := registry.Lookup(Trigger{Method: "POST", Route: "/entity", Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "CreateEntity", binding.CommandType)
	assert.Equal(t, shape, binding.Shape)
}

// TestRegistry_LookupUnknownTrigger 未注册触发器返回 UnknownTrigger
func TestRegistry_LookupUnknownTrigger(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Lookup(Trigger{Method: "DELETE", Route: "/entity"})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeUnknownTrigger))
}

// TestRegistry_LookupMethodMismatch 方法不同视为不同形状
func TestRegistry_LookupMethodMismatch(t *testing.T) {
	registry := newTestRegistry()
	require.NoError(t, registry.BindTrigger(TriggerShape{Method: "POST", Route: "/entity"},
		"CreateEntity", jsonTranslator("CreateEntity"), nil))

	_, err := registry.Lookup(Trigger{Method: "GET", Route: "/entity"})
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeUnknownTrigger))
}

// TestRegistry_IdempotentRebind 相同形状+相同命令类型允许覆盖
func TestRegistry_IdempotentRebind(t *testing.T) {
	registry := newTestRegistry()
	shape := TriggerShape{Method: "POST", Route: "/entity"}

	require.NoError(t, registry.BindTrigger(shape, "CreateEntity", jsonTranslator("CreateEntity"), nil))
	require.NoError(t, registry.BindTrigger(shape, "CreateEntity", jsonTranslator("CreateEntity"), nil))
	assert.Equal(t, 1, registry.TriggerCount())
}

// TestRegistry_ConflictingRebind 相同形状+不同命令类型是配置冲突
func TestRegistry_ConflictingRebind(t *testing.T) {
	registry := newTestRegistry()
	shape := TriggerShape{Method: "POST", Route: "/entity"}

	require.NoError(t, registry.BindTrigger(shape, "CreateEntity", jsonTranslator("CreateEntity"), nil))
	err := registry.BindTrigger(shape, "RenameEntity", jsonTranslator("RenameEntity"), nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationConflict(err))
}

func TestRegistry_BindTriggerValidation(t *testing.T) {
	registry := newTestRegistry()

	err := registry.BindTrigger(TriggerShape{}, "CreateEntity", jsonTranslator("CreateEntity"), nil)
	assert.Error(t, err)

	err = registry.BindTrigger(TriggerShape{Method: "POST", Route: "/entity"}, "", jsonTranslator(""), nil)
	assert.Error(t, err)

	err = registry.BindTrigger(TriggerShape{Method: "POST", Route: "/entity"}, "CreateEntity", nil, nil)
	assert.Error(t, err)
}

// TestRegistry_BindHandler 每个命令类型至多一个处理器
func TestRegistry_BindHandler(t *testing.T) {
	registry := newTestRegistry()

	require.NoError(t, registry.BindHandler("CreateEntity", noopHandler))
	assert.True(t, registry.HasHandler("CreateEntity"))

	err := registry.BindHandler("CreateEntity", noopHandler)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationConflict(err))
}

func TestRegistry_HandlerNotFound(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Handler("Missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCommand_NewCommand(t *testing.T) {
	cmd := NewCommand("CreateEntity", map[string]any{"title": "Report"})

	assert.NotEmpty(t, cmd.ID)
	assert.Equal(t, "CreateEntity", cmd.Type)
	assert.False(t, cmd.Timestamp.IsZero())

	other := NewCommand("CreateEntity", nil)
	assert.NotEqual(t, cmd.ID, other.ID)
}

func TestTriggerShape_Key(t *testing.T) {
	shape := TriggerShape{Method: "POST", Route: "/entity"}
	assert.Equal(t, "POST /entity", shape.Key())
	assert.Equal(t, shape.Key(), Trigger{Method: "POST", Route: "/entity"}.Shape().Key())
}
