package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris576/Gluon/aggregate"
	"github.com/chris576/Gluon/command"
	"github.com/chris576/Gluon/config"
	"github.com/chris576/Gluon/eventing"
	"github.com/chris576/Gluon/logging"
)

// counterState 并发测试用的计数聚合
type counterState struct {
	Count int
}

func counterConfig(identities ...string) config.Config {
	cfg := config.Config{
		CommandHandlers: []config.CommandHandler{},
	}
	for _, identity := range identities {
		identity := identity
		commandType := "Increment:" + identity
		cfg.CommandTriggers = append(cfg.CommandTriggers, config.CommandTrigger{
			Method:      "POST",
			Route:       "/" + identity,
			CommandType: commandType,
			Translate: func(payload []byte) (*command.Command, error) {
				return command.NewCommand(commandType, nil), nil
			},
		})
		cfg.CommandHandlers = append(cfg.CommandHandlers, config.CommandHandler{
			CommandType: commandType,
			Translate: func(_ context.Context, cmd *command.Command) (*eventing.Event, error) {
				return eventing.NewEvent(identity, "Incremented", nil), nil
			},
		})
		cfg.Aggregates = append(cfg.Aggregates, config.Aggregate{
			Identity:     identity,
			InitialState: counterState{},
		})
		cfg.EventHandlers = append(cfg.EventHandlers, config.EventHandler{
			EventType:   "Incremented",
			AggregateID: identity,
			Reduce: func(evt *eventing.Event, snapshot aggregate.Aggregate) (any, error) {
				state := snapshot.State.(counterState)
				return counterState{Count: state.Count + 1}, nil
			},
		})
	}
	return cfg
}

// 同一聚合上的并发分发必须串行化：没有丢失更新，版本与计数一致
func TestEngine_ConcurrentDispatchSameAggregate(t *testing.T) {
	engine, err := New(counterConfig("counter"), WithLogger(logging.NewNoopLogger()))
	require.NoError(t, err)

	const goroutines = 8
	const perGoroutine = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				result := engine.Dispatch(context.Background(), command.Trigger{
					Method: "POST", Route: "/counter",
				})
				assert.True(t, result.Succeeded())
			}
		}()
	}
	wg.Wait()

	snapshot, err := engine.Aggregate("counter")
	require.NoError(t, err)
	assert.Equal(t, uint64(goroutines*perGoroutine), snapshot.Version)
	assert.Equal(t, goroutines*perGoroutine, snapshot.State.(counterState).Count)
}

// 不同聚合的分发互不阻塞：一个聚合上的慢 reducer 不能拖住其它聚合
func TestEngine_CrossAggregateDispatchIsIndependent(t *testing.T) {
	cfg := counterConfig("slow", "fast")
	release := make(chan struct{})
	for i := range cfg.EventHandlers {
		if cfg.EventHandlers[i].AggregateID == "slow" {
			cfg.EventHandlers[i].Reduce = func(evt *eventing.Event, snapshot aggregate.Aggregate) (any, error) {
				<-release
				return counterState{Count: 1}, nil
			}
		}
	}

	engine, err := New(cfg, WithLogger(logging.NewNoopLogger()))
	require.NoError(t, err)

	slowDone := make(chan Result, 1)
	go func() {
		slowDone <- engine.Dispatch(context.Background(), command.Trigger{Method: "POST", Route: "/slow"})
	}()

	fastDone := make(chan Result, 1)
	go func() {
		fastDone <- engine.Dispatch(context.Background(), command.Trigger{Method: "POST", Route: "/fast"})
	}()

	select {
	case result := <-fastDone:
		require.True(t, result.Succeeded())
		assert.Equal(t, uint64(1), result.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("慢聚合阻塞了另一个聚合上的分发")
	}

	close(release)
	result := <-slowDone
	require.True(t, result.Succeeded())
}

// 并发分发到多个聚合：每个聚合各自计数正确
func TestEngine_ConcurrentDispatchManyAggregates(t *testing.T) {
	identities := make([]string, 4)
	for i := range identities {
		identities[i] = fmt.Sprintf("agg-%d", i)
	}
	engine, err := New(counterConfig(identities...), WithLogger(logging.NewNoopLogger()))
	require.NoError(t, err)

	const perAggregate = 40

	var wg sync.WaitGroup
	for _, identity := range identities {
		identity := identity
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perAggregate; j++ {
				result := engine.Dispatch(context.Background(), command.Trigger{
					Method: "POST", Route: "/" + identity,
				})
				assert.True(t, result.Succeeded())
			}
		}()
	}
	wg.Wait()

	for _, identity := range identities {
		snapshot, err := engine.Aggregate(identity)
		require.NoError(t, err)
		assert.Equal(t, uint64(perAggregate), snapshot.Version, identity)
		assert.Equal(t, perAggregate, snapshot.State.(counterState).Count, identity)
	}
}
