package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithDB(mock)

	mock.ExpectExec("INSERT INTO outbox").WithArgs(pgxmock.AnyArg(), "contact-1", TypeContactCreated, pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.Publish(context.Background(), "contact-1", TypeContactCreated, ContactCreatedV1{ContactID: "contact-1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "aggregate_id", "type", "payload", "attempts", "created_at"}).
		AddRow(id, "contact-1", TypeContactCreated, []byte(`{"contact_id":"contact-1"}`), 0, now)
	mock.ExpectQuery("SELECT id").WithArgs(int32(10), 5).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10, 5)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id || entries[0].AggregateID != "contact-1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	mock.ExpectExec("UPDATE outbox").WithArgs(id, "smtp down").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	if err := store.MarkFailed(context.Background(), id, errors.New("smtp down")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type memorySource struct {
	pending   []OutboxEntry
	delivered []uuid.UUID
	failed    []uuid.UUID
}

func (m *memorySource) FetchPending(_ context.Context, limit int32, _ int) ([]OutboxEntry, error) {
	if int(limit) < len(m.pending) {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *memorySource) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	m.delivered = append(m.delivered, id)
	return true, nil
}

func (m *memorySource) MarkFailed(_ context.Context, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

type handlerFunc func(ctx context.Context, entry OutboxEntry) error

func (f handlerFunc) Handle(ctx context.Context, entry OutboxEntry) error { return f(ctx, entry) }

func TestDelivererDrain(t *testing.T) {
	ok, bad := uuid.New(), uuid.New()
	src := &memorySource{pending: []OutboxEntry{{ID: ok, Type: TypeContactCreated}, {ID: bad, Type: TypeContactCreated}}}
	handler := handlerFunc(func(_ context.Context, entry OutboxEntry) error {
		if entry.ID == bad {
			return errors.New("boom")
		}
		return nil
	})

	d := newDeliverer(src, handler, logging.Discard())
	d.drain(context.Background())

	if len(src.delivered) != 1 || src.delivered[0] != ok {
		t.Fatalf("expected only %s delivered, got %v", ok, src.delivered)
	}
	if len(src.failed) != 1 || src.failed[0] != bad {
		t.Fatalf("expected %s marked failed, got %v", bad, src.failed)
	}
}

func TestDelivererStartStopsOnCancel(t *testing.T) {
	src := &memorySource{}
	d := newDeliverer(src, handlerFunc(func(context.Context, OutboxEntry) error { return nil }), logging.Discard()).
		WithInterval(time.Millisecond).
		WithBatchSize(3).
		WithMaxAttempts(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer did not stop")
	}
}

func TestNewDelivererWithoutStoreIsNoop(t *testing.T) {
	d := NewDeliverer(nil, nil, logging.Discard())
	d.Start(context.Background())
}

func TestInlinePublisher(t *testing.T) {
	var got OutboxEntry
	pub := NewInlinePublisher(handlerFunc(func(_ context.Context, entry OutboxEntry) error {
		got = entry
		return nil
	}), logging.Discard())

	evt := ContactCreatedV1{ContactID: "c-1", Email: "a@b.com", SubscriptionVolume: 10000}
	if err := pub.Publish(context.Background(), "c-1", TypeContactCreated, evt); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := pub.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got.Type != TypeContactCreated || got.AggregateID != "c-1" {
		t.Fatalf("unexpected entry: %#v", got)
	}
	var decoded ContactCreatedV1
	if err := json.Unmarshal(got.Payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.SubscriptionVolume != 10000 {
		t.Fatalf("unexpected payload: %#v", decoded)
	}

	failing := NewInlinePublisher(handlerFunc(func(context.Context, OutboxEntry) error { return errors.New("down") }), logging.Discard())
	if err := failing.Publish(context.Background(), "c-1", TypeContactCreated, evt); err != nil {
		t.Fatalf("delivery failure must not reach the publisher: %v", err)
	}
	if err := failing.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	var nilPub *InlinePublisher
	if err := nilPub.Publish(context.Background(), "c-1", TypeContactCreated, evt); err != nil {
		t.Fatalf("nil publisher should be a no-op: %v", err)
	}
}

func TestInlinePublisherDoesNotBlockOnSlowHandler(t *testing.T) {
	release := make(chan struct{})
	var deliveredErr error
	pub := NewInlinePublisher(handlerFunc(func(ctx context.Context, _ OutboxEntry) error {
		<-release
		deliveredErr = ctx.Err()
		return nil
	}), logging.Discard())

	reqCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Publish(reqCtx, "c-1", TypeContactCreated, ContactCreatedV1{ContactID: "c-1"}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("publish waited for the handler")
	}

	// The request finishing must not cancel the delivery.
	cancel()
	close(release)
	if err := pub.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if deliveredErr != nil {
		t.Fatalf("delivery context cancelled with the request: %v", deliveredErr)
	}
}

func TestInlinePublisherTimeoutBoundsDelivery(t *testing.T) {
	var deadlineErr error
	pub := NewInlinePublisher(handlerFunc(func(ctx context.Context, _ OutboxEntry) error {
		<-ctx.Done()
		deadlineErr = ctx.Err()
		return deadlineErr
	}), logging.Discard()).WithTimeout(20 * time.Millisecond)

	if err := pub.Publish(context.Background(), "c-1", TypeContactCreated, ContactCreatedV1{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := pub.Wait(waitCtx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !errors.Is(deadlineErr, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", deadlineErr)
	}
}
