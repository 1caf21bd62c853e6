package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ternarybob/arbor"
)

// NATSPublisher publishes JSON payloads on core NATS subjects
type NATSPublisher struct {
	conn   *nats.Conn
	logger arbor.ILogger
}

// NewNATSPublisher connects to url and reconnects forever on disconnect
func NewNATSPublisher(url string, logger arbor.ILogger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("longform"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info().Str("url", conn.ConnectedUrl()).Msg("NATS publisher connected")
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// Publish marshals payload and sends it on subject
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Int("bytes", len(data)).
		Msg("Published message")
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// NoopPublisher discards everything; used when no NATS URL is configured
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
