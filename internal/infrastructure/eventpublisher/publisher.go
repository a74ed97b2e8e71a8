// Package eventpublisher delivers transfer events to external systems.
package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/iho/gotransfer/internal/domain"
	"github.com/iho/gotransfer/internal/usecase"
)

// DefaultSubjectPrefix is prepended to the event type to form the subject.
const DefaultSubjectPrefix = "gotransfer.events."

var (
	_ usecase.EventPublisher = (*LogPublisher)(nil)
	_ usecase.EventPublisher = (*NATSPublisher)(nil)
)

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event *domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("transfer_id", event.TransferID).
		RawJSON("payload", payload).
		Msg("event published")

	return nil
}

// natsConn is the subset of *nats.Conn used for publishing.
type natsConn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes events as JSON to NATS subjects named
// <prefix><event type>.
type NATSPublisher struct {
	conn   natsConn
	nc     *nats.Conn
	prefix string
}

// NATSConfig configures a NATS connection.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	Logger        zerolog.Logger
}

// NewNATSPublisher connects to NATS.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	logger := cfg.Logger

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p := newNATSPublisher(nc, cfg.SubjectPrefix)
	p.nc = nc

	return p, nil
}

func newNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + eventType
}

// Publish sends the event. Delivery is at most once.
func (p *NATSPublisher) Publish(ctx context.Context, event *domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	return p.nc.Drain()
}

// Ping reports whether the NATS connection is up.
func (p *NATSPublisher) Ping(_ context.Context) error {
	if p.nc == nil || p.nc.IsConnected() {
		return nil
	}

	return fmt.Errorf("NATS connection %s", p.nc.Status())
}
