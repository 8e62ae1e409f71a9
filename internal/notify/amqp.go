package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"courtwatch/internal/monitor"
	"courtwatch/internal/pkg/models"
)

// AMQPPublisher fans change events out to a fanout exchange so downstream
// consumers (bet placement, analytics) can react without polling the API.
type AMQPPublisher struct {
	url      string
	exchange string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

var _ monitor.Subscriber = (*AMQPPublisher)(nil)

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	slog.Info("AMQP publisher initialized", "exchange", exchange)
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 60 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(p.exchange, "fanout", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	return nil
}

func (p *AMQPPublisher) Name() string { return "amqp" }

// OnCycleComplete publishes every change event as a JSON message. A broken
// connection is re-dialed once; events that still fail are dropped with a
// warning rather than blocking the cycle.
func (p *AMQPPublisher) OnCycleComplete(_ []models.MatchRecord, events []models.ChangeEvent) {
	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			slog.Error("Failed to marshal change event", "match_id", ev.MatchID, "error", err)
			continue
		}
		if err := p.publish(ev, body); err != nil {
			slog.Warn("Failed to publish change event", "match_id", ev.MatchID, "kind", ev.Kind, "error", err)
		}
	}
}

func (p *AMQPPublisher) publish(ev models.ChangeEvent, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   ev.DetectedAt,
		Type:        string(ev.Kind),
		Body:        body,
	}

	err := p.channel.Publish(p.exchange, "", false, false, msg)
	if err == nil {
		return nil
	}

	slog.Warn("AMQP publish failed, reconnecting", "error", err)
	p.closeLocked()
	if err := p.connect(); err != nil {
		return err
	}
	return p.channel.Publish(p.exchange, "", false, false, msg)
}

func (p *AMQPPublisher) closeLocked() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
