package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

const defaultInlineTimeout = 30 * time.Second

// InlinePublisher stands in for the outbox when no database is configured.
// Publish returns once the event is encoded; delivery runs in the background,
// detached from the caller's cancellation and bounded by a timeout. Failed
// deliveries are logged and not retried.
type InlinePublisher struct {
	handler DeliveryHandler
	logger  *logging.Logger
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

func NewInlinePublisher(handler DeliveryHandler, logger *logging.Logger) *InlinePublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &InlinePublisher{
		handler: handler,
		logger:  logger,
		timeout: defaultInlineTimeout,
		now:     time.Now,
	}
}

// WithTimeout bounds each background delivery.
func (p *InlinePublisher) WithTimeout(d time.Duration) *InlinePublisher {
	if d > 0 {
		p.timeout = d
	}
	return p
}

func (p *InlinePublisher) Publish(ctx context.Context, aggregateID string, eventType string, payload any) error {
	if p == nil || p.handler == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	entry := OutboxEntry{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     data,
		CreatedAt:   p.now().UTC(),
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		if err := p.handler.Handle(deliverCtx, entry); err != nil {
			p.logger.Error("inline delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type)
			return
		}
		p.logger.Debug("inline delivered", "event_id", entry.ID, "type", entry.Type)
	}()
	return nil
}

// Wait blocks until background deliveries finish or ctx is done.
func (p *InlinePublisher) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ Publisher = (*OutboxStore)(nil)
	_ Publisher = (*InlinePublisher)(nil)
)
