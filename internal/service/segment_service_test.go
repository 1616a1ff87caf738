package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/database"
	"Mansoor88-6/segment-tracker/internal/events"
	"Mansoor88-6/segment-tracker/internal/metrics"
	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/repository"
	"Mansoor88-6/segment-tracker/internal/timecalc"
	"Mansoor88-6/segment-tracker/internal/validation"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) actions() []events.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Action, len(p.events))
	for i, e := range p.events {
		out[i] = e.Action
	}
	return out
}

func newTestStore(t *testing.T) *repository.SegmentRepository {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "segments.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewSegmentRepository(db.DB)
}

func newTestService(t *testing.T) (*SegmentService, *recordingPublisher, *metrics.Metrics) {
	t.Helper()
	pub := &recordingPublisher{}
	m := metrics.New("test")
	return NewSegmentService(newTestStore(t), pub, m, zap.NewNop()), pub, m
}

func request(machine, date, start, end, typ string) models.SegmentRequest {
	return models.SegmentRequest{MachineName: machine, Date: date, StartTime: start, EndTime: end, SegmentType: typ}
}

func validationErrors(t *testing.T, err error) validation.Errors {
	t.Helper()
	require.ErrorIs(t, err, ErrValidationFailed)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	return verr.Errors
}

func TestSegmentService_Create(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	// Given: a lowercase machine name with surrounding spaces
	// When: creating the segment
	seg, err := svc.Create(ctx, request(" m7 ", "2024-03-01", "08:00:00", "09:00:00", "uptime"))
	require.NoError(t, err)

	// Then: the name is normalized and an event is published
	assert.Equal(t, "M7", seg.MachineName)
	assert.Equal(t, models.Uptime, seg.Type)
	assert.NotEmpty(t, seg.ID)
	assert.Equal(t, []events.Action{events.ActionCreated}, pub.actions())
}

func TestSegmentService_Create_Rejected(t *testing.T) {
	svc, pub, m := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, request("M1", "2024-03-01", "08:00:00", "10:00:00", "uptime"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		req   models.SegmentRequest
		field string
		msg   string
	}{
		{
			name:  "overlap on same machine",
			req:   request("M1", "2024-03-01", "09:00:00", "11:00:00", "idle"),
			field: validation.General,
			msg:   "This segment overlaps with an existing segment for the same machine",
		},
		{
			name:  "overlap via lowercase name",
			req:   request("m1", "2024-03-01", "07:00:00", "08:30:00", "idle"),
			field: validation.General,
			msg:   "This segment overlaps with an existing segment for the same machine",
		},
		{
			name:  "end equals start",
			req:   request("M2", "2024-03-01", "08:00:00", "08:00:00", "idle"),
			field: validation.FieldEndTime,
			msg:   "End time must be after start time",
		},
		{
			name:  "missing date",
			req:   request("M2", "", "08:00:00", "09:00:00", "idle"),
			field: validation.FieldDate,
			msg:   "Date is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			errs := validationErrors(t, err)
			assert.Equal(t, tt.msg, errs[tt.field])
		})
	}

	assert.Equal(t, []events.Action{events.ActionCreated}, pub.actions())

	count, err := testutil.GatherAndCount(m.Registry(), "test_segment_validations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSegmentService_Create_OtherMachineAccepted(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, request("M1", "2024-03-01", "08:00:00", "10:00:00", "uptime"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, request("M2", "2024-03-01", "08:00:00", "10:00:00", "uptime"))
	assert.NoError(t, err)

	// touching endpoints are not an overlap
	_, err = svc.Create(ctx, request("M1", "2024-03-01", "10:00:00", "11:00:00", "idle"))
	assert.NoError(t, err)
}

func TestSegmentService_Create_CrossMidnightOverlap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, request("M1", "2024-03-01", "23:30:00", "00:45:00", "uptime"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, request("M1", "2024-03-02", "00:15:00", "01:00:00", "idle"))
	errs := validationErrors(t, err)
	assert.Contains(t, errs, validation.General)
}

func TestSegmentService_Update(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	seg, err := svc.Create(ctx, request("M1", "2024-03-01", "08:00:00", "10:00:00", "select"))
	require.NoError(t, err)

	// Given: an edit that overlaps only the segment's own stored interval
	updated, err := svc.Update(ctx, seg.ID, request("M1", "2024-03-01", "09:00:00", "10:30:00", "downtime"))

	// Then: it is accepted
	require.NoError(t, err)
	assert.Equal(t, seg.ID, updated.ID)
	assert.Equal(t, "09:00:00", updated.StartTime)
	assert.Equal(t, models.Downtime, updated.Type)
	assert.Equal(t, []events.Action{events.ActionCreated, events.ActionUpdated}, pub.actions())
}

func TestSegmentService_Update_MoveMachineOverlap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, request("M2", "2024-03-01", "08:00:00", "10:00:00", "uptime"))
	require.NoError(t, err)
	seg, err := svc.Create(ctx, request("M1", "2024-03-01", "08:00:00", "10:00:00", "uptime"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, seg.ID, request("M2", "2024-03-01", "09:00:00", "09:30:00", "uptime"))
	errs := validationErrors(t, err)
	assert.Contains(t, errs, validation.General)
}

func TestSegmentService_Update_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "missing", request("M1", "2024-03-01", "08:00:00", "09:00:00", "idle"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSegmentService_Delete(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	seg, err := svc.Create(ctx, request("M1", "2024-03-01", "08:00:00", "10:00:00", "idle"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, seg.ID))
	assert.ErrorIs(t, svc.Delete(ctx, seg.ID), repository.ErrNotFound)

	_, err = svc.Get(ctx, seg.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, []events.Action{events.ActionCreated, events.ActionDeleted}, pub.actions())
}

func TestSegmentService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewSegmentService(newTestStore(t), pub, nil, zap.NewNop())

	seg, err := svc.Create(context.Background(), request("M1", "2024-03-01", "08:00:00", "09:00:00", "uptime"))
	require.NoError(t, err)
	assert.NotEmpty(t, seg.ID)
}

func TestSegmentService_Validate(t *testing.T) {
	svc, pub, _ := newTestService(t)
	ctx := context.Background()

	seg, err := svc.Create(ctx, request("M1", "2024-03-01", "08:00:00", "10:00:00", "uptime"))
	require.NoError(t, err)

	result, err := svc.Validate(ctx, request("M1", "2024-03-01", "09:00:00", "11:00:00", "idle"))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, validation.General)

	edit := request("M1", "2024-03-01", "09:00:00", "11:00:00", "idle")
	edit.ID = seg.ID
	result, err = svc.Validate(ctx, edit)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	// pre-validation never writes
	list, err := svc.List(ctx, models.SegmentFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Len(t, pub.actions(), 1)
}

func TestSegmentService_List(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, iv := range [][2]string{{"08:00:00", "09:00:00"}, {"09:00:00", "10:00:00"}, {"10:00:00", "11:00:00"}} {
		_, err := svc.Create(ctx, request("M1", "2024-03-01", iv[0], iv[1], "uptime"))
		require.NoError(t, err)
	}

	result, err := svc.List(ctx, models.SegmentFilter{}, 0, -3)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Limit)
	assert.Equal(t, 0, result.Offset)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Segments, 3)

	result, err = svc.List(ctx, models.SegmentFilter{MachineName: "M1"}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, "10:00:00", result.Segments[0].StartTime)
}

func TestSegmentService_List_RejectsMalformedDates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for _, filter := range []models.SegmentFilter{
		{Date: "2024-02-30"},
		{StartDate: "yesterday"},
		{StartDate: "2024-03-01", EndDate: "2024-3-2"},
	} {
		_, err := svc.List(ctx, filter, 10, 0)
		assert.ErrorIs(t, err, timecalc.ErrInvalidFormat)
	}
}

func TestSegmentService_ConcurrentCreatesOneWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, request("M1", "2024-03-01", "08:00:00", "09:00:00", "uptime"))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrValidationFailed)
	}
	assert.Equal(t, 1, created)
}

func TestMachineLocks_SortedAndDeduplicated(t *testing.T) {
	l := newMachineLocks()

	unlock := l.lock("m2", "M1", "M2")
	assert.Len(t, l.locks, 2)
	unlock()
	assert.Empty(t, l.locks)

	// both locks are released
	unlock = l.lock("M1", "M2")
	unlock()
	assert.Empty(t, l.locks)
}

func TestMachineLocks_EntriesDroppedAfterContention(t *testing.T) {
	l := newMachineLocks()

	var wg sync.WaitGroup
	for _, name := range []string{"M1", "m1", "M2", "M1", "M3"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			unlock := l.lock(name, "M1")
			unlock()
		}(name)
	}
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}
