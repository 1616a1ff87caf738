package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/events"
)

// EventQueue is a local outbox of segment events that could not be
// published yet.
type EventQueue struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewEventQueue(db *sql.DB, logger *zap.Logger) *EventQueue {
	return &EventQueue{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue adds events to the queue
func (eq *EventQueue) Enqueue(ctx context.Context, evs []events.Event) error {
	tx, err := eq.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pending_events (event_data, machine_name, created_at, retry_count)
		VALUES (?, ?, ?, 0)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range evs {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode %s event: %w", ev.Action, err)
		}
		if _, err := stmt.ExecContext(ctx, string(data), ev.Segment.MachineName, eq.now().UTC()); err != nil {
			return fmt.Errorf("failed to enqueue event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	eq.logger.Debug("Events enqueued", zap.Int("count", len(evs)))
	return nil
}

// Dequeue returns up to limit of the oldest queued events and their row
// ids. Events are not removed until Remove is called.
func (eq *EventQueue) Dequeue(ctx context.Context, limit int) ([]events.Event, []int64, error) {
	rows, err := eq.db.QueryContext(ctx, `
		SELECT id, event_data
		FROM pending_events
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var evs []events.Event
	var ids []int64
	var corrupt []int64

	for rows.Next() {
		var id int64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, nil, fmt.Errorf("failed to scan pending event: %w", err)
		}

		var ev events.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			eq.logger.Error("Dropping unreadable queued event", zap.Error(err), zap.Int64("id", id))
			corrupt = append(corrupt, id)
			continue
		}

		evs = append(evs, ev)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}
	rows.Close()

	if err := eq.Remove(ctx, corrupt); err != nil {
		return nil, nil, err
	}

	return evs, ids, nil
}

// Remove removes events from the queue by their IDs
func (eq *EventQueue) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args := inClause("DELETE FROM pending_events WHERE id IN", ids)
	result, err := eq.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to remove events: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	eq.logger.Debug("Events removed from queue", zap.Int64("count", rowsAffected))
	return nil
}

// IncrementRetry increments the retry count for events
func (eq *EventQueue) IncrementRetry(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args := inClause("UPDATE pending_events SET retry_count = retry_count + 1, last_attempt = ? WHERE id IN", ids)
	args = append([]any{eq.now().UTC()}, args...)

	if _, err := eq.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to increment retry: %w", err)
	}
	return nil
}

func (eq *EventQueue) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := eq.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return count, nil
}

// CleanupOldEvents drops events queued before olderThan ago that have
// already failed more than maxRetries times.
func (eq *EventQueue) CleanupOldEvents(ctx context.Context, olderThan time.Duration, maxRetries int) (int64, error) {
	cutoff := eq.now().UTC().Add(-olderThan)
	result, err := eq.db.ExecContext(ctx, `
		DELETE FROM pending_events
		WHERE created_at < ? AND retry_count > ?
	`, cutoff, maxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old events: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		eq.logger.Info("Cleaned up old events", zap.Int64("count", rowsAffected))
	}
	return rowsAffected, nil
}

func inClause(prefix string, ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return prefix + " (" + strings.Join(placeholders, ",") + ")", args
}
