// Package publish forwards adherence events to NATS for external consumers.
package publish

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/bedshift/internal/adherence"
	"git.home.luguber.info/inful/bedshift/internal/config"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/logfields"
)

// StateKey is the KV key holding the latest display state.
const StateKey = "display"

var (
	// ErrDisabled is returned by Connect when publishing is not configured.
	ErrDisabled = errors.ConfigError("nats publishing is disabled").Build()
	// ErrConnectFailed indicates the broker or JetStream could not be reached.
	ErrConnectFailed = errors.MessagingError("failed to connect to NATS").Build()
	// ErrPublishFailed indicates an event or state snapshot was not accepted.
	ErrPublishFailed = errors.MessagingError("failed to publish to NATS").Build()
)

// streamPublisher is the subset of jetstream.JetStream used for events.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// kvPutter is the subset of jetstream.KeyValue used for state snapshots.
type kvPutter interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// Publisher writes adherence events to a JetStream stream and mirrors the
// latest display state into a KV bucket.
type Publisher struct {
	conn    *nats.Conn
	js      streamPublisher
	kv      kvPutter
	prefix  string
	timeout time.Duration
}

// Connect dials NATS and ensures the stream and KV bucket exist.
func Connect(ctx context.Context, cfg config.NATSConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("bedshift"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, ErrConnectFailed.WithContext("url", cfg.URL).Wrap(err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ErrConnectFailed.WithContext("stage", "jetstream").Wrap(err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(setupCtx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "bedshift adherence events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		MaxAge:      90 * 24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, ErrConnectFailed.WithContext("stream", cfg.Stream).Wrap(err)
	}

	kv, err := js.KeyValue(setupCtx, cfg.KVBucket)
	if err != nil {
		kv, err = js.CreateKeyValue(setupCtx, jetstream.KeyValueConfig{
			Bucket:      cfg.KVBucket,
			Description: "bedshift display state",
			History:     1,
		})
	}
	if err != nil {
		conn.Close()
		return nil, ErrConnectFailed.WithContext("kv_bucket", cfg.KVBucket).Wrap(err)
	}

	slog.Info("NATS publisher connected",
		slog.String("url", cfg.URL),
		slog.String("stream", cfg.Stream),
		slog.String("subject_prefix", cfg.SubjectPrefix),
		slog.String("kv_bucket", cfg.KVBucket))

	p := newPublisher(js, kv, cfg.SubjectPrefix)
	p.conn = conn
	return p, nil
}

func newPublisher(js streamPublisher, kv kvPutter, prefix string) *Publisher {
	if prefix == "" {
		prefix = config.DefaultSubjectPrefix
	}
	return &Publisher{js: js, kv: kv, prefix: prefix, timeout: 5 * time.Second}
}

// Subject returns the subject an event type is published on.
func (p *Publisher) Subject(t adherence.EventType) string {
	return p.prefix + "." + string(t)
}

// PublishEvent publishes e as JSON. The cycle id and type form the message id
// so JetStream drops redeliveries.
func (p *Publisher) PublishEvent(ctx context.Context, e adherence.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return ErrPublishFailed.WithContext("event_type", string(e.Type)).Wrap(err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	subject := p.Subject(e.Type)
	msgID := e.CycleID + ":" + string(e.Type) + ":" + e.At.UTC().Format(time.RFC3339Nano)
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID)); err != nil {
		return ErrPublishFailed.WithContext("subject", subject).Wrap(err)
	}
	slog.Debug("Published adherence event", slog.String("subject", subject), logfields.CycleID(e.CycleID))
	return nil
}

// PutState stores the latest display state snapshot.
func (p *Publisher) PutState(ctx context.Context, ds adherence.DisplayState) error {
	if p.kv == nil {
		return nil
	}
	data, err := json.Marshal(ds)
	if err != nil {
		return ErrPublishFailed.WithContext("key", StateKey).Wrap(err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if _, err := p.kv.Put(ctx, StateKey, data); err != nil {
		return ErrPublishFailed.WithContext("key", StateKey).Wrap(err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return ErrPublishFailed.WithContext("stage", "drain").Wrap(err)
	}
	return nil
}
