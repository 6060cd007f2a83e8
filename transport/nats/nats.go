// Package nats carries market messages over NATS subjects.
//
// Messages to one broker go to "<prefix>.broker.<broker>", broadcasts to
// "<prefix>.broadcast" and broker requests arrive on "<prefix>.market".
// Payloads are transport.Codec envelopes.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"

	"github.com/xraph/tariffmarket/transport"
	"github.com/xraph/tariffmarket/types"
)

// compile-time interface check
var _ transport.Transport = (*Transport)(nil)

// Handler receives decoded inbound messages.
type Handler func(ctx context.Context, msg any) error

// Transport implements transport.Transport on a NATS connection.
type Transport struct {
	conn   *nats.Conn
	codec  *transport.Codec
	prefix string
	now    func() time.Time
	logger *slog.Logger

	maxRetry time.Duration
	natsOpts []nats.Option
}

// Option configures a Transport.
type Option func(*Transport)

// WithPrefix sets the subject prefix (default "tariffmarket").
func WithPrefix(prefix string) Option {
	return func(t *Transport) { t.prefix = prefix }
}

// WithClock stamps envelopes with simulation time.
func WithClock(c types.Clock) Option {
	return func(t *Transport) { t.now = c.Now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// WithMaxRetry bounds how long Connect keeps retrying.
func WithMaxRetry(d time.Duration) Option {
	return func(t *Transport) { t.maxRetry = d }
}

// WithNATSOptions passes options through to nats.Connect.
func WithNATSOptions(opts ...nats.Option) Option {
	return func(t *Transport) { t.natsOpts = append(t.natsOpts, opts...) }
}

func newTransport(codec *transport.Codec, opts []Option) *Transport {
	t := &Transport{
		codec:    codec,
		prefix:   "tariffmarket",
		now:      time.Now,
		logger:   slog.Default(),
		maxRetry: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect dials url with exponential backoff until it succeeds, ctx is
// done, or the retry budget runs out.
func Connect(ctx context.Context, url string, codec *transport.Codec, opts ...Option) (*Transport, error) {
	t := newTransport(codec, opts)
	natsOpts := append([]nats.Option{
		nats.Name("tariffmarket"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				t.logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			t.logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	}, t.natsOpts...)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = t.maxRetry
	err := backoff.RetryNotify(func() error {
		conn, err := nats.Connect(url, natsOpts...)
		if err != nil {
			return err
		}
		t.conn = conn
		return nil
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		t.logger.Warn("nats connect failed, retrying", "url", url, "wait", wait, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/nats: connect %s: %w", url, err)
	}
	return t, nil
}

// New wraps an established connection.
func New(conn *nats.Conn, codec *transport.Codec, opts ...Option) *Transport {
	t := newTransport(codec, opts)
	t.conn = conn
	return t
}

// Conn returns the underlying connection.
func (t *Transport) Conn() *nats.Conn { return t.conn }

// BrokerSubject is the subject messages to brokerID are published on.
func (t *Transport) BrokerSubject(brokerID string) string {
	return t.prefix + ".broker." + token(brokerID)
}

// BroadcastSubject is the subject every broker listens on.
func (t *Transport) BroadcastSubject() string { return t.prefix + ".broadcast" }

// MarketSubject is the subject brokers publish requests on.
func (t *Transport) MarketSubject() string { return t.prefix + ".market" }

// SendTo publishes msg to one broker.
func (t *Transport) SendTo(_ context.Context, brokerID string, msg any) error {
	return t.publish(t.BrokerSubject(brokerID), brokerID, msg)
}

// Broadcast publishes msg to every broker.
func (t *Transport) Broadcast(_ context.Context, msg any) error {
	return t.publish(t.BroadcastSubject(), "", msg)
}

func (t *Transport) publish(subject, to string, msg any) error {
	data, err := t.codec.Encode(to, msg, t.now())
	if err != nil {
		return err
	}
	if err := t.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("tariffmarket/nats: publish %s: %w", subject, err)
	}
	return nil
}

// Inbound subscribes h to the market subject. Messages that fail to decode
// are logged and dropped.
func (t *Transport) Inbound(ctx context.Context, h Handler) (*nats.Subscription, error) {
	sub, err := t.conn.Subscribe(t.MarketSubject(), func(m *nats.Msg) {
		env, msg, err := t.codec.Decode(m.Data)
		if err != nil {
			t.logger.Warn("dropping inbound message", "subject", m.Subject, "error", err)
			return
		}
		if err := h(ctx, msg); err != nil {
			t.logger.Error("inbound handler failed", "type", env.Type, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("tariffmarket/nats: subscribe: %w", err)
	}
	return sub, nil
}

// Close drains pending publishes and closes the connection.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Drain()
}

// token makes s safe as a single subject token.
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
