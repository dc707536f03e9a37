// Package events publishes chat exchange events to NATS. The publisher is
// optional; when no NATS URL is configured the gateway runs without it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/buddy-ai/buddyai/pkg/logger"
)

// SubjectExchange carries one event per completed or failed chat exchange.
const SubjectExchange = "buddyai.chat.exchange"

// ExchangeEvent describes one gateway exchange. It carries no message
// content; conversation state lives only on the client.
type ExchangeEvent struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Status    string    `json:"status"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher wraps a NATS connection.
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Connect establishes a connection to the NATS server.
func Connect(url, token string, log *logger.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn:   nc,
		logger: log,
	}, nil
}

// PublishExchange publishes an exchange event, fire-and-forget.
func (p *Publisher) PublishExchange(ev *ExchangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode exchange event", zap.Error(err))
		return
	}
	if err := p.conn.Publish(SubjectExchange, data); err != nil {
		p.logger.Warn("failed to publish exchange event", zap.Error(err))
	}
}

// IsConnected reports the connection state.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
