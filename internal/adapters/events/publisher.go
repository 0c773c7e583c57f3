// Package events publishes booking state changes to RabbitMQ. Publishing is
// best-effort from the caller's point of view: errors are returned, never
// retried here.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	declared map[string]bool
}

// Dial opens one connection and channel reused for every publish.
func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	p := newPublisher(ch)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel) *Publisher {
	return &Publisher{ch: ch, declared: make(map[string]bool)}
}

// PublishBooking sends ev to the durable queue named after its type.
func (p *Publisher) PublishBooking(ctx context.Context, ev domain.BookingEvent) error {
	if ev.Type == "" {
		return errors.New("booking event without type")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return errors.New("rabbitmq publisher closed")
	}
	if !p.declared[ev.Type] {
		if _, err := p.ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq queue declare %s: %w", ev.Type, err)
		}
		p.declared[ev.Type] = true
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.BookingID + ":" + ev.Type,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", ev.Type, err)
	}
	log.Debug().Str("booking_id", ev.BookingID).Str("event", ev.Type).Msg("booking event published")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
		p.ch = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// Noop drops every event. Used when AMQP_URL is unset.
type Noop struct{}

func (Noop) PublishBooking(context.Context, domain.BookingEvent) error { return nil }
