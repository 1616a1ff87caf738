package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/events"
)

const (
	relayBatchSize  = 100
	relayMaxRetries = 10
)

// Relay is an events.Publisher that falls back to the EventQueue when the
// downstream publisher fails, and drains the queue in the background.
type Relay struct {
	next      events.Publisher
	queue     *EventQueue
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger

	// sendMu orders direct publishes against queue drains.
	sendMu sync.Mutex

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewRelay(next events.Publisher, queue *EventQueue, interval, retention time.Duration, logger *zap.Logger) *Relay {
	return &Relay{
		next:      next,
		queue:     queue,
		interval:  interval,
		retention: retention,
		logger:    logger.With(zap.String("component", "event-relay")),
	}
}

// Publish sends event downstream, queuing it locally on failure. While
// older events are still queued the event is queued behind them instead
// of being sent. Only a failure to queue is returned.
func (r *Relay) Publish(ctx context.Context, event events.Event) error {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	// Queue even if the request context is already done.
	queueCtx := context.WithoutCancel(ctx)

	pending, err := r.queue.PendingCount(queueCtx)
	if err != nil || pending > 0 {
		r.logger.Debug("Queuing event behind pending events",
			zap.String("action", string(event.Action)),
			zap.String("segment_id", event.Segment.ID),
			zap.Int("pending_count", pending),
		)
		return r.queue.Enqueue(queueCtx, []events.Event{event})
	}

	if err := r.next.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish event, queuing locally",
			zap.String("action", string(event.Action)),
			zap.String("segment_id", event.Segment.ID),
			zap.Error(err),
		)
		return r.queue.Enqueue(queueCtx, []events.Event{event})
	}
	return nil
}

// Start launches the background queue processor.
func (r *Relay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopChan != nil {
		return
	}
	r.stopChan = make(chan struct{})

	r.wg.Add(1)
	go r.queueProcessor(r.stopChan)
	r.logger.Info("Event relay started", zap.Duration("interval", r.interval))
}

// Close stops the processor after one final drain and closes the
// downstream publisher.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.stopChan != nil {
		close(r.stopChan)
		r.stopChan = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
	return r.next.Close()
}

func (r *Relay) queueProcessor(stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.ProcessQueue(context.Background())
		case <-stop:
			r.ProcessQueue(context.Background())
			return
		}
	}
}

// ProcessQueue attempts one batch of queued events. Events are sent in
// queue order and the batch stops at the first failure so that later
// changes of a machine are never delivered before earlier ones.
func (r *Relay) ProcessQueue(ctx context.Context) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	pending, err := r.queue.PendingCount(ctx)
	if err != nil {
		r.logger.Error("Failed to get pending count", zap.Error(err))
		return
	}
	if pending == 0 {
		return
	}

	r.logger.Debug("Processing queued events", zap.Int("pending_count", pending))

	evs, ids, err := r.queue.Dequeue(ctx, relayBatchSize)
	if err != nil {
		r.logger.Error("Failed to dequeue events", zap.Error(err))
		return
	}

	sent := 0
	for _, ev := range evs {
		if err := r.next.Publish(ctx, ev); err != nil {
			r.logger.Warn("Failed to send queued event", zap.Error(err), zap.Int("remaining", len(evs)-sent))
			if retryErr := r.queue.IncrementRetry(ctx, ids[sent:]); retryErr != nil {
				r.logger.Error("Failed to increment retry count", zap.Error(retryErr))
			}
			break
		}
		sent++
	}

	if err := r.queue.Remove(ctx, ids[:sent]); err != nil {
		r.logger.Error("Failed to remove sent events from queue", zap.Error(err))
	} else if sent > 0 {
		r.logger.Info("Successfully sent queued events", zap.Int("event_count", sent))
	}

	if _, err := r.queue.CleanupOldEvents(ctx, r.retention, relayMaxRetries); err != nil {
		r.logger.Error("Failed to cleanup old events", zap.Error(err))
	}
}
