package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris576/Gluon/eventing"
)

func TestMemoryJournal_AppendAndRead(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	first := eventing.NewEvent("entity-1", "EntityCreated", map[string]any{"title": "Report"}).WithVersion(1)
	second := eventing.NewEvent("entity-1", "EntityRenamed", map[string]any{"title": "Summary"}).WithVersion(2)
	other := eventing.NewEvent("entity-2", "EntityCreated", nil).WithVersion(1)

	require.NoError(t, j.Append(ctx, first))
	require.NoError(t, j.Append(ctx, second))
	require.NoError(t, j.Append(ctx, other))

	events, err := j.Events(ctx, "entity-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "EntityCreated", events[0].Type)
	assert.Equal(t, uint64(1), events[0].Version)
	assert.Equal(t, "EntityRenamed", events[1].Type)

	total, err := j.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestMemoryJournal_RejectsInvalidEvent(t *testing.T) {
	j := NewMemoryJournal()

	err := j.Append(context.Background(), &eventing.Event{})
	assert.Error(t, err)
}

func TestMemoryJournal_EmptyAggregate(t *testing.T) {
	j := NewMemoryJournal()

	events, err := j.Events(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}
