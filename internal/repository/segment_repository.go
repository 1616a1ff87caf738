package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"Mansoor88-6/segment-tracker/internal/models"
)

// ErrNotFound is returned when no segment has the requested id.
var ErrNotFound = errors.New("segment not found")

const segmentColumns = `id, date, start_time, end_time, machine_name, segment_type, created_at, updated_at`

type SegmentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSegmentRepository(db *sql.DB) *SegmentRepository {
	return &SegmentRepository{db: db, now: time.Now}
}

// Create stores seg under a newly generated id. Any id already set on seg
// is ignored.
func (r *SegmentRepository) Create(ctx context.Context, seg models.Segment) (*models.Segment, error) {
	seg.ID = uuid.NewString()
	seg.CreatedAt = r.now().UTC()
	seg.UpdatedAt = seg.CreatedAt

	query := `
		INSERT INTO segments (id, date, start_time, end_time, machine_name, segment_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		seg.ID,
		seg.Date,
		seg.StartTime,
		seg.EndTime,
		seg.MachineName,
		seg.Type.String(),
		seg.CreatedAt,
		seg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment: %w", err)
	}

	return &seg, nil
}

func (r *SegmentRepository) GetByID(ctx context.Context, id string) (*models.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE id = ?`

	seg, err := scanSegment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}

	return seg, nil
}

// List returns the segments matching filter ordered by date, start time
// and machine. A non-positive limit returns every match.
func (r *SegmentRepository) List(ctx context.Context, filter models.SegmentFilter, limit, offset int) ([]models.Segment, error) {
	where, args := whereClause(filter)

	query := `SELECT ` + segmentColumns + ` FROM segments` + where +
		` ORDER BY date ASC, start_time ASC, machine_name ASC LIMIT ? OFFSET ?`

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	return r.query(ctx, query, args...)
}

// Count returns the number of segments matching filter.
func (r *SegmentRepository) Count(ctx context.Context, filter models.SegmentFilter) (int, error) {
	where, args := whereClause(filter)

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return count, nil
}

// ListByMachine returns every segment recorded for machineName in
// chronological order.
func (r *SegmentRepository) ListByMachine(ctx context.Context, machineName string) ([]models.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments
		WHERE machine_name = ?
		ORDER BY date ASC, start_time ASC`

	return r.query(ctx, query, machineName)
}

// Update replaces the stored fields of seg.ID and returns the stored row.
func (r *SegmentRepository) Update(ctx context.Context, seg models.Segment) (*models.Segment, error) {
	query := `
		UPDATE segments
		SET date = ?, start_time = ?, end_time = ?, machine_name = ?, segment_type = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		seg.Date,
		seg.StartTime,
		seg.EndTime,
		seg.MachineName,
		seg.Type.String(),
		r.now().UTC(),
		seg.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update segment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("segment %s: %w", seg.ID, ErrNotFound)
	}

	return r.GetByID(ctx, seg.ID)
}

func (r *SegmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM segments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}

	return nil
}

func (r *SegmentRepository) query(ctx context.Context, query string, args ...any) ([]models.Segment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	segments := []models.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, *seg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return segments, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSegment(row scanner) (*models.Segment, error) {
	var seg models.Segment
	var typ string
	err := row.Scan(
		&seg.ID,
		&seg.Date,
		&seg.StartTime,
		&seg.EndTime,
		&seg.MachineName,
		&typ,
		&seg.CreatedAt,
		&seg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, ok := models.ParseSegmentType(typ)
	if !ok {
		return nil, fmt.Errorf("segment %s has unknown type %q", seg.ID, typ)
	}
	seg.Type = parsed

	return &seg, nil
}

func whereClause(filter models.SegmentFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.MachineName != "" {
		conds = append(conds, "machine_name = ?")
		args = append(args, models.NormalizeMachineName(filter.MachineName))
	}
	if filter.Date != "" {
		conds = append(conds, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.StartDate != "" {
		conds = append(conds, "date >= ?")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		conds = append(conds, "date <= ?")
		args = append(args, filter.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
