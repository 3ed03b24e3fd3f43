package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/chris576/Gluon/eventing"
	"github.com/chris576/Gluon/logging"
)

// redisClient captures the subset of go-redis commands we rely on (for easier testing).
type redisClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// RedisConfig describes how the Redis Streams announcer should connect/behave.
type RedisConfig struct {
	Client       redis.UniversalClient
	Addr         string
	Username     string
	Password     string
	DB           int
	StreamPrefix string
	MaxLen       int64 // 流的近似最大长度，0 表示不裁剪
	Logger       logging.Logger
}

// RedisAnnouncer appends applied events to Redis Streams.
//
// Stream layout: <prefix><event type>，每个事件一条 XADD 记录。
type RedisAnnouncer struct {
	cfg       RedisConfig
	client    redisClient
	ownClient bool
	logger    logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewRedisAnnouncer constructs a Redis Streams announcer.
func NewRedisAnnouncer(cfg RedisConfig) (*RedisAnnouncer, error) {
	if cfg.StreamPrefix == "" {
		cfg.StreamPrefix = "gluon:events:"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.ComponentLogger("outbound.redis")
	}

	var cl redisClient
	var own bool
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, errors.New("redis announcer requires a client or an address")
		}
		options := &redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB}
		cl = redis.NewClient(options)
		own = true
	}

	return &RedisAnnouncer{
		cfg:       cfg,
		client:    cl,
		ownClient: own,
		logger:    cfg.Logger,
	}, nil
}

// Announce appends the stamped event to the stream of its type.
func (a *RedisAnnouncer) Announce(ctx context.Context, evt *eventing.Event) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return errors.New("redis announcer is closed")
	}

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload of event %s: %w", evt.ID, err)
	}

	stream := a.cfg.StreamPrefix + evt.Type
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event_id":     evt.ID,
			"event_type":   evt.Type,
			"aggregate_id": evt.AggregateID,
			"version":      evt.Version,
			"payload":      string(payload),
		},
	}
	if a.cfg.MaxLen > 0 {
		args.MaxLen = a.cfg.MaxLen
		args.Approx = true
	}

	if err := a.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append event %s to stream %s: %w", evt.ID, stream, err)
	}

	a.logger.Debug(ctx, "事件已追加到 Redis Stream",
		logging.String("stream", stream),
		logging.String("event_id", evt.ID),
	)
	return nil
}

// Close closes the client when the announcer owns it.
func (a *RedisAnnouncer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	if a.ownClient {
		return a.client.Close()
	}
	return nil
}
