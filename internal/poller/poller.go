package poller

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/katharos/storefront/internal/domain"
	"github.com/katharos/storefront/internal/publisher"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Evicter drops a session's in-memory cart.
type Evicter interface {
	Evict(sessionID string)
}

// Poller keeps this instance's in-memory carts in line with writes made by
// other instances: every foreign cart.updated event evicts the local engine.
type Poller struct {
	reader   messageReader
	carts    Evicter
	instance string
	log      *zap.Logger
}

// NewPoller uses one consumer group per instance so every replica sees every event.
func NewPoller(carts Evicter, instanceID string, log *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.TopicCartUpdates,
		GroupID:  "storefront-" + instanceID,
		MaxBytes: 1e6,
	})
	return &Poller{reader: reader, carts: carts, instance: instanceID, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.poll(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) poll(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.log.Warn("error reading message", zap.Error(err))
		}
		return
	}
	p.handle(m)
}

func (p *Poller) handle(m kafka.Message) {
	var evt domain.CartUpdatedEvent
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		p.log.Warn("error parsing cart update", zap.Error(err))
		return
	}
	if evt.SessionID == "" {
		p.log.Warn("cart update without session id")
		return
	}
	if evt.Origin == p.instance {
		return
	}
	p.carts.Evict(evt.SessionID)
	p.log.Debug("evicted cart changed elsewhere",
		zap.String("session_id", evt.SessionID),
		zap.String("origin", evt.Origin))
}
