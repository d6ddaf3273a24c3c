package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/model"
)

type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}
func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

type fakeApplier struct {
	calls   []uuid.UUID
	admins  []*uuid.UUID
	err     error
	applied map[uuid.UUID]bool
}

func (f *fakeApplier) ApplyOrder(_ context.Context, orderID uuid.UUID, adminID *uuid.UUID) (bool, error) {
	f.calls = append(f.calls, orderID)
	f.admins = append(f.admins, adminID)
	if f.err != nil {
		return false, f.err
	}
	if f.applied[orderID] {
		return false, nil
	}
	f.applied[orderID] = true
	return true, nil
}

func newTestWorker(applier OrderApplier) *InventoryWorker {
	return NewInventoryWorker(nil, applier, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func delivery(t *testing.T, body any) (amqp.Delivery, *fakeAcknowledger) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	ack := &fakeAcknowledger{}
	return amqp.Delivery{Acknowledger: ack, Body: raw}, ack
}

func TestProcessMessage_AppliesAndAcks(t *testing.T) {
	applier := &fakeApplier{applied: map[uuid.UUID]bool{}}
	w := newTestWorker(applier)
	orderID, adminID := uuid.New(), uuid.New()

	msg, ack := delivery(t, model.InventoryMessage{OrderID: orderID, AdminID: &adminID})
	w.processMessage(context.Background(), msg)

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	require.Len(t, applier.calls, 1)
	assert.Equal(t, orderID, applier.calls[0])
	assert.Equal(t, adminID, *applier.admins[0])
}

func TestProcessMessage_RedeliveryIsHarmless(t *testing.T) {
	applier := &fakeApplier{applied: map[uuid.UUID]bool{}}
	w := newTestWorker(applier)
	orderID := uuid.New()

	for i := 0; i < 2; i++ {
		msg, ack := delivery(t, model.InventoryMessage{OrderID: orderID})
		w.processMessage(context.Background(), msg)
		assert.True(t, ack.acked)
	}
	assert.Len(t, applier.applied, 1)
}

func TestProcessMessage_FailureDeadLetters(t *testing.T) {
	w := newTestWorker(&fakeApplier{err: errors.New("db down"), applied: map[uuid.UUID]bool{}})

	msg, ack := delivery(t, model.InventoryMessage{OrderID: uuid.New()})
	w.processMessage(context.Background(), msg)

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.False(t, ack.acked)
}

func TestProcessMessage_RedisDownDeadLetters(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer client.Close()
	applier := &fakeApplier{applied: map[uuid.UUID]bool{}}
	w := NewInventoryWorker(nil, applier, client, slog.New(slog.NewTextHandler(io.Discard, nil)))

	msg, ack := delivery(t, model.InventoryMessage{OrderID: uuid.New()})
	w.processMessage(context.Background(), msg)

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)
	assert.Empty(t, applier.calls)
}

func TestProcessMessage_MalformedBody(t *testing.T) {
	applier := &fakeApplier{applied: map[uuid.UUID]bool{}}
	w := newTestWorker(applier)

	ack := &fakeAcknowledger{}
	w.processMessage(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeue)

	msg, ack := delivery(t, map[string]string{"order_id": uuid.Nil.String()})
	w.processMessage(context.Background(), msg)
	assert.True(t, ack.nacked)
	assert.Empty(t, applier.calls)
}

func TestIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "inventory_applied:11111111-2222-3333-4444-555555555555", IdempotencyKey(id))
}
