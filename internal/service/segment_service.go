package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/events"
	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/timecalc"
	"Mansoor88-6/segment-tracker/internal/validation"
)

// ErrValidationFailed is wrapped by every *ValidationError.
var ErrValidationFailed = errors.New("segment validation failed")

// ValidationError carries the per-field messages of a rejected request.
type ValidationError struct {
	Errors validation.Errors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, field := range e.Errors.Fields() {
		parts = append(parts, field+": "+e.Errors[field])
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// SegmentStore is the persistence the services need.
type SegmentStore interface {
	Create(ctx context.Context, seg models.Segment) (*models.Segment, error)
	GetByID(ctx context.Context, id string) (*models.Segment, error)
	List(ctx context.Context, filter models.SegmentFilter, limit, offset int) ([]models.Segment, error)
	Count(ctx context.Context, filter models.SegmentFilter) (int, error)
	ListByMachine(ctx context.Context, machineName string) ([]models.Segment, error)
	Update(ctx context.Context, seg models.Segment) (*models.Segment, error)
	Delete(ctx context.Context, id string) error
}

// Recorder receives service level measurements. *metrics.Metrics
// satisfies it, including a nil one.
type Recorder interface {
	ObserveValidation(valid bool)
	ObserveOperation(operation string, err error, d time.Duration)
	ObserveOverlaps(n int)
}

type ListResult struct {
	Segments []models.Segment `json:"segments"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type SegmentService struct {
	repo      SegmentStore
	publisher events.Publisher
	metrics   Recorder
	logger    *zap.Logger
	locks     *machineLocks
	now       func() time.Time
}

func NewSegmentService(repo SegmentStore, publisher events.Publisher, metrics Recorder, logger *zap.Logger) *SegmentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &SegmentService{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		locks:     newMachineLocks(),
		now:       time.Now,
	}
}

// Validate runs the full check for req against the stored segments of its
// machine without writing anything. A request carrying an ID is treated as
// an edit of that segment.
func (s *SegmentService) Validate(ctx context.Context, req models.SegmentRequest) (validation.Result, error) {
	req = req.Normalize()

	existing, err := s.snapshot(ctx, req.MachineName)
	if err != nil {
		return validation.Result{}, err
	}

	result := validation.Validate(req, existing)
	s.observeValidation(result.Valid)
	return result, nil
}

func (s *SegmentService) Create(ctx context.Context, req models.SegmentRequest) (_ *models.Segment, err error) {
	defer s.observe("create", time.Now(), &err)

	req = req.Normalize()
	req.ID = ""

	unlock := s.locks.lock(req.MachineName)
	defer unlock()

	seg, err := s.check(ctx, req)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, seg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Segment created",
		zap.String("id", created.ID),
		zap.String("machine", created.MachineName),
		zap.String("date", created.Date),
		zap.String("type", created.Type.String()),
	)
	s.publish(ctx, events.ActionCreated, *created)
	return created, nil
}

func (s *SegmentService) Get(ctx context.Context, id string) (*models.Segment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *SegmentService) List(ctx context.Context, filter models.SegmentFilter, limit, offset int) (*ListResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	for _, d := range []string{filter.Date, filter.StartDate, filter.EndDate} {
		if d == "" {
			continue
		}
		if _, err := timecalc.ParseDate(d); err != nil {
			return nil, err
		}
	}

	segments, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListResult{Segments: segments, Total: total, Limit: limit, Offset: offset}, nil
}

// Update replaces segment id with req. The segment's own stored interval
// never counts as an overlap. Moving a segment to another machine holds
// the locks of both machines.
func (s *SegmentService) Update(ctx context.Context, id string, req models.SegmentRequest) (_ *models.Segment, err error) {
	defer s.observe("update", time.Now(), &err)

	req = req.Normalize()
	req.ID = id

	unlock, err := s.lockSegment(ctx, id, req.MachineName)
	if err != nil {
		return nil, err
	}
	defer unlock()

	seg, err := s.check(ctx, req)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, seg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Segment updated",
		zap.String("id", updated.ID),
		zap.String("machine", updated.MachineName),
		zap.String("date", updated.Date),
	)
	s.publish(ctx, events.ActionUpdated, *updated)
	return updated, nil
}

func (s *SegmentService) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	unlock, err := s.lockSegment(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Segment deleted", zap.String("id", id), zap.String("machine", current.MachineName))
	s.publish(ctx, events.ActionDeleted, *current)
	return nil
}

// check validates req against its machine's snapshot and converts it. The
// caller must hold the machine lock.
func (s *SegmentService) check(ctx context.Context, req models.SegmentRequest) (models.Segment, error) {
	existing, err := s.snapshot(ctx, req.MachineName)
	if err != nil {
		return models.Segment{}, err
	}

	result := validation.Validate(req, existing)
	s.observeValidation(result.Valid)
	if !result.Valid {
		s.logger.Debug("Segment rejected",
			zap.String("machine", req.MachineName),
			zap.Strings("fields", result.Errors.Fields()),
		)
		return models.Segment{}, &ValidationError{Errors: result.Errors}
	}

	return req.Segment()
}

func (s *SegmentService) snapshot(ctx context.Context, machine string) ([]models.Segment, error) {
	if machine == "" {
		return nil, nil
	}
	existing, err := s.repo.ListByMachine(ctx, machine)
	if err != nil {
		return nil, fmt.Errorf("failed to load segments for %s: %w", machine, err)
	}
	return existing, nil
}

// lockSegment locks the stored machine of segment id together with extra.
// The stored machine is re-read under the lock until it is stable.
func (s *SegmentService) lockSegment(ctx context.Context, id string, extra ...string) (func(), error) {
	for {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		unlock := s.locks.lock(append([]string{current.MachineName}, extra...)...)

		again, err := s.repo.GetByID(ctx, id)
		if err != nil {
			unlock()
			return nil, err
		}
		if again.MachineName == current.MachineName {
			return unlock, nil
		}
		unlock()
	}
}

func (s *SegmentService) publish(ctx context.Context, action events.Action, seg models.Segment) {
	err := s.publisher.Publish(ctx, events.Event{Action: action, Segment: seg, At: s.now().UTC()})
	if err != nil {
		s.logger.Warn("Failed to publish segment event",
			zap.String("action", string(action)),
			zap.String("id", seg.ID),
			zap.Error(err),
		)
	}
}

func (s *SegmentService) observeValidation(valid bool) {
	if s.metrics != nil {
		s.metrics.ObserveValidation(valid)
	}
}

func (s *SegmentService) observe(operation string, start time.Time, err *error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, *err, time.Since(start))
	}
}

// machineLocks serializes validate-then-write per machine name. Entries
// are reference counted and dropped once no caller holds or waits on them.
type machineLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newMachineLocks() *machineLocks {
	return &machineLocks{locks: make(map[string]*lockEntry)}
}

// lock acquires the mutex of every distinct name in sorted order and
// returns a function releasing them.
func (l *machineLocks) lock(names ...string) func() {
	seen := make(map[string]bool, len(names))
	keys := make([]string, 0, len(names))
	for _, name := range names {
		name = models.NormalizeMachineName(name)
		if !seen[name] {
			seen[name] = true
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)

	held := make([]*lockEntry, 0, len(keys))
	for _, key := range keys {
		l.mu.Lock()
		e, ok := l.locks[key]
		if !ok {
			e = &lockEntry{}
			l.locks[key] = e
		}
		e.refs++
		l.mu.Unlock()

		e.mu.Lock()
		held = append(held, e)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(keys[i], held[i])
		}
	}
}

func (l *machineLocks) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
