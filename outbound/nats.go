package outbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/chris576/Gluon/eventing"
	"github.com/chris576/Gluon/logging"
)

// natsConn captures the subset of *nats.Conn we rely on (for easier testing).
type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSConfig describes how the NATS announcer should connect/behave.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Conn          *nats.Conn
	Logger        logging.Logger
}

// NATSAnnouncer publishes applied events to NATS core subjects.
//
// Subject layout: <prefix><event type>，例如 "gluon.events.EntityCreated"。
type NATSAnnouncer struct {
	cfg      NATSConfig
	conn     natsConn
	ownsConn bool
	logger   logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewNATSAnnouncer constructs a NATS announcer.
func NewNATSAnnouncer(cfg NATSConfig) (*NATSAnnouncer, error) {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "gluon.events."
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.ComponentLogger("outbound.nats")
	}

	var conn natsConn
	var owns bool
	if cfg.Conn != nil {
		conn = cfg.Conn
	} else {
		if cfg.URL == "" {
			return nil, errors.New("nats announcer requires a connection or a URL")
		}
		nc, err := nats.Connect(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.URL, err)
		}
		conn = nc
		owns = true
	}

	return &NATSAnnouncer{
		cfg:      cfg,
		conn:     conn,
		ownsConn: owns,
		logger:   cfg.Logger,
	}, nil
}

// Announce publishes the stamped event as JSON.
func (a *NATSAnnouncer) Announce(ctx context.Context, evt *eventing.Event) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return errors.New("nats announcer is closed")
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", evt.ID, err)
	}

	subject := a.cfg.SubjectPrefix + evt.Type
	if err := a.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event %s to %s: %w", evt.ID, subject, err)
	}

	a.logger.Debug(ctx, "事件已发布到 NATS",
		logging.String("subject", subject),
		logging.String("event_id", evt.ID),
	)
	return nil
}

// Close drains the connection when the announcer owns it.
func (a *NATSAnnouncer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	if a.ownsConn {
		return a.conn.Drain()
	}
	return nil
}
