package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	apperrors "github.com/chris576/Gluon/errors"
	"github.com/chris576/Gluon/logging"
)

func newTestStore() *Store {
	return NewStore(logging.NewNoopLogger())
}

// TestStore_RegisterAndGet 测试注册与快照读取
func TestStore_RegisterAndGet(t *testing.T) {
	store := newTestStore()

	require.NoError(t, store.Register("entity-1", map[string]string{}))

	agg, err := store.Get("entity-1")
	require.NoError(t, err)
	assert.Equal(t, "entity-1", agg.Identity)
	assert.Equal(t, uint64(0), agg.Version)
	assert.Equal(t, map[string]string{}, agg.State)
}

// TestStore_RegisterDuplicate 测试重复注册冲突
func TestStore_RegisterDuplicate(t *testing.T) {
	store := newTestStore()

	require.NoError(t, store.Register("entity-1", nil))
	err := store.Register("entity-1", nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsConfigurationConflict(err))
}

func TestStore_RegisterEmptyIdentity(t *testing.T) {
	store := newTestStore()
	err := store.Register("", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeInvalidInput))
}

// TestStore_GetNotFound 测试未注册聚合
func TestStore_GetNotFound(t *testing.T) {
	store := newTestStore()

	_, err := store.Get("missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

// TestStore_ApplyIncrementsVersion 测试应用事件后版本加一
func TestStore_ApplyIncrementsVersion(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Register("entity-1", 0))

	version, err := store.Apply(context.Background(), "entity-1", func(snapshot Aggregate) (any, error) {
		assert.Equal(t, uint64(0), snapshot.Version)
		return snapshot.State.(int) + 1, nil
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)

	agg, err := store.Get("entity-1")
	require.NoError(t, err)
	assert.Equal(t, 1, agg.State)
	assert.Equal(t, uint64(1), agg.Version)
}

// TestStore_ApplyReducerError 测试 reducer 失败时状态与版本不变
func TestStore_ApplyReducerError(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Register("entity-1", "initial"))

	reducerErr := errors.New("reducer rejected")
	_, err := store.Apply(context.Background(), "entity-1", func(snapshot Aggregate) (any, error) {
		return nil, reducerErr
	})

	require.ErrorIs(t, err, reducerErr)

	agg, err := store.Get("entity-1")
	require.NoError(t, err)
	assert.Equal(t, "initial", agg.State)
	assert.Equal(t, uint64(0), agg.Version)
}

func TestStore_ApplyNotFound(t *testing.T) {
	store := newTestStore()

	_, err := store.Apply(context.Background(), "missing", func(snapshot Aggregate) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_ApplyNilReducer(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Register("entity-1", nil))

	_, err := store.Apply(context.Background(), "entity-1", nil)
	require.Error(t, err)
}

func TestStore_Identities(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Register("b", nil))
	require.NoError(t, store.Register("a", nil))

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, []string{"a", "b"}, store.Identities())
}

// TestStore_VersionMonotonicity 属性测试：任意成功应用序列下版本严格加一、无跳跃
func TestStore_VersionMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newTestStore()
		require.NoError(t, store.Register("entity-1", 0))

		applies := rapid.IntRange(1, 50).Draw(t, "applies")
		var last uint64
		for i := 0; i < applies; i++ {
			version, err := store.Apply(context.Background(), "entity-1", func(snapshot Aggregate) (any, error) {
				return snapshot.State, nil
			})
			require.NoError(t, err)
			require.Equal(t, last+1, version, "version must increase by exactly 1")
			last = version
		}

		agg, err := store.Get("entity-1")
		require.NoError(t, err)
		require.Equal(t, uint64(applies), agg.Version)
	})
}
