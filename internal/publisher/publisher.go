package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/katharos/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	TopicCheckoutHandoff = "checkout-handoff"
	TopicCartUpdates     = "cart-updates"

	EventCheckoutHandoff = "checkout.handoff"
	EventCartUpdated     = "cart.updated"
)

var ErrPublisherUnavailable = errors.New("event publisher unavailable")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer   messageWriter
	breaker  *gobreaker.CircuitBreaker[struct{}]
	instance string
	timeout  time.Duration
	log      *zap.Logger
}

// NewKafkaPublisher writes to both topics through one writer; the topic is
// set per message.
func NewKafkaPublisher(instanceID string, log *zap.Logger, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
	return newPublisher(w, instanceID, log)
}

func newPublisher(w messageWriter, instanceID string, log *zap.Logger) *Publisher {
	settings := gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Publisher{
		writer:   w,
		breaker:  gobreaker.NewCircuitBreaker[struct{}](settings),
		instance: instanceID,
		timeout:  5 * time.Second,
		log:      log,
	}
}

func (p *Publisher) InstanceID() string {
	return p.instance
}

func (p *Publisher) PublishCheckout(ctx context.Context, evt domain.CheckoutEvent) error {
	return p.publish(ctx, TopicCheckoutHandoff, EventCheckoutHandoff, evt.SessionID, evt)
}

func (p *Publisher) PublishCartUpdated(ctx context.Context, evt domain.CartUpdatedEvent) error {
	if evt.Origin == "" {
		evt.Origin = p.instance
	}
	return p.publish(ctx, TopicCartUpdates, EventCartUpdated, evt.SessionID, evt)
}

// CartChanged adapts the publisher to the cart service's change hook. The
// write happens off the request path.
func (p *Publisher) CartChanged(sessionID string, c domain.Cart) {
	evt := domain.CartUpdatedEvent{
		SessionID: sessionID,
		Origin:    p.instance,
		LineCount: len(c.Lines),
		At:        c.LastModifiedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.PublishCartUpdated(ctx, evt); err != nil {
			p.log.Warn("failed to publish cart update", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) publish(ctx context.Context, topic, eventType, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event failed: %w", eventType, err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "origin", Value: []byte(p.instance)},
		},
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("publish %s failed: %w", eventType, err)
	}
	return nil
}
