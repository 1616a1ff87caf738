package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/database"
	"Mansoor88-6/segment-tracker/internal/events"
	"Mansoor88-6/segment-tracker/internal/models"
)

type flakyPublisher struct {
	mu        sync.Mutex
	failAfter int // publishes allowed before failing; negative never fails
	sent      []events.Event
	closed    bool
}

func (p *flakyPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter >= 0 && len(p.sent) >= p.failAfter {
		return errors.New("broker down")
	}
	p.sent = append(p.sent, e)
	return nil
}

func (p *flakyPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *flakyPublisher) setFailAfter(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAfter = n
}

func newTestQueue(t *testing.T) *EventQueue {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "segments.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventQueue(db.DB, zap.NewNop())
}

func event(id string, action events.Action) events.Event {
	return events.Event{
		Action: action,
		Segment: models.Segment{
			ID:          id,
			MachineName: "M1",
			Date:        "2024-03-01",
			StartTime:   "08:00:00",
			EndTime:     "09:00:00",
			Type:        models.Uptime,
		},
		At: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestEventQueue_RoundTrip(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []events.Event{event("a", events.ActionCreated), event("a", events.ActionUpdated)}))

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	evs, ids, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, events.ActionCreated, evs[0].Action)
	assert.Equal(t, events.ActionUpdated, evs[1].Action)
	assert.Equal(t, models.Uptime, evs[0].Segment.Type)

	require.NoError(t, q.Remove(ctx, ids[:1]))
	count, err = q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventQueue_CleanupOldEvents(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	q.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	require.NoError(t, q.Enqueue(ctx, []events.Event{event("old", events.ActionCreated)}))
	q.now = time.Now
	require.NoError(t, q.Enqueue(ctx, []events.Event{event("new", events.ActionCreated)}))

	_, ids, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.IncrementRetry(ctx, ids))
	}

	removed, err := q.CleanupOldEvents(ctx, 24*time.Hour, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	evs, _, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "new", evs[0].Segment.ID)
}

func TestRelay_QueuesOnFailureAndDrains(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	pub := &flakyPublisher{failAfter: 0}
	relay := NewRelay(pub, q, time.Hour, 24*time.Hour, zap.NewNop())

	// Given: the broker is down
	require.NoError(t, relay.Publish(ctx, event("a", events.ActionCreated)))
	require.NoError(t, relay.Publish(ctx, event("a", events.ActionUpdated)))

	// Then: both events wait in the queue
	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// When: the broker accepts one more message only
	pub.setFailAfter(1)
	relay.ProcessQueue(ctx)

	// Then: the first is delivered and the second stays queued
	count, err = q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// When: the broker recovers
	pub.setFailAfter(-1)
	relay.ProcessQueue(ctx)

	// Then: everything is delivered in order
	count, err = q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, events.ActionCreated, pub.sent[0].Action)
	assert.Equal(t, events.ActionUpdated, pub.sent[1].Action)
}

func TestRelay_CloseDrainsAndClosesDownstream(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	pub := &flakyPublisher{failAfter: 0}
	relay := NewRelay(pub, q, time.Hour, 24*time.Hour, zap.NewNop())

	require.NoError(t, relay.Publish(ctx, event("a", events.ActionDeleted)))

	relay.Start()
	pub.setFailAfter(-1)
	require.NoError(t, relay.Close())

	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.True(t, pub.closed)
}

func TestRelay_NewEventWaitsBehindQueued(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	pub := &flakyPublisher{failAfter: 0}
	relay := NewRelay(pub, q, time.Hour, 24*time.Hour, zap.NewNop())

	// Given: a created event queued while the broker was down
	require.NoError(t, relay.Publish(ctx, event("a", events.ActionCreated)))

	// When: the broker recovers before the queue is drained
	pub.setFailAfter(-1)
	require.NoError(t, relay.Publish(ctx, event("a", events.ActionUpdated)))

	// Then: the update is held behind the queued event
	assert.Empty(t, pub.sent)
	count, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// And: draining delivers both in order
	relay.ProcessQueue(ctx)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, events.ActionCreated, pub.sent[0].Action)
	assert.Equal(t, events.ActionUpdated, pub.sent[1].Action)

	// And: with an empty queue events go straight out
	require.NoError(t, relay.Publish(ctx, event("a", events.ActionDeleted)))
	require.Len(t, pub.sent, 3)
	assert.Equal(t, events.ActionDeleted, pub.sent[2].Action)
}
