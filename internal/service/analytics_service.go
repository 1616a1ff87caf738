package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"Mansoor88-6/segment-tracker/internal/analytics"
	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/overlap"
	"Mansoor88-6/segment-tracker/internal/timecalc"
	"Mansoor88-6/segment-tracker/internal/timeline"
)

// AnalyticsService reads stored segments and hands them to the pure
// aggregation, overlap and timeline packages.
type AnalyticsService struct {
	repo    SegmentStore
	metrics Recorder
	logger  *zap.Logger
}

func NewAnalyticsService(repo SegmentStore, metrics Recorder, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{repo: repo, metrics: metrics, logger: logger}
}

func (s *AnalyticsService) Statistics(ctx context.Context, filter analytics.Filter) (*analytics.Report, error) {
	for _, d := range []string{filter.StartDate, filter.EndDate} {
		if d == "" {
			continue
		}
		if _, err := timecalc.ParseDate(d); err != nil {
			return nil, err
		}
	}

	segments, err := s.repo.List(ctx, models.SegmentFilter{
		MachineName: filter.MachineName,
		StartDate:   filter.StartDate,
		EndDate:     filter.EndDate,
	}, 0, 0)
	if err != nil {
		return nil, err
	}

	return analytics.Statistics(segments, filter), nil
}

// Overlaps runs the diagnostic scan over every stored segment of machine.
func (s *AnalyticsService) Overlaps(ctx context.Context, machine string) ([]overlap.Pair, error) {
	machine = models.NormalizeMachineName(machine)
	if machine == "" {
		return nil, fmt.Errorf("machine name is required: %w", timecalc.ErrInvalidInput)
	}

	segments, err := s.repo.ListByMachine(ctx, machine)
	if err != nil {
		return nil, err
	}

	pairs := overlap.FindOverlaps(segments, machine)
	if len(pairs) > 0 {
		s.logger.Warn("Overlapping segments found", zap.String("machine", machine), zap.Int("pairs", len(pairs)))
	}
	if s.metrics != nil {
		s.metrics.ObserveOverlaps(len(pairs))
	}
	return pairs, nil
}

func (s *AnalyticsService) MachineSummary(ctx context.Context, machine string) (analytics.MachineSummary, error) {
	machine = models.NormalizeMachineName(machine)

	segments, err := s.repo.ListByMachine(ctx, machine)
	if err != nil {
		return analytics.MachineSummary{}, err
	}
	return analytics.Summarize(machine, segments), nil
}

// Timeline projects the segments of date, or of every date when date is
// empty, on the axis selected by mode.
func (s *AnalyticsService) Timeline(ctx context.Context, date string, mode timeline.AxisMode) (*timeline.Timeline, error) {
	if date != "" {
		if _, err := timecalc.ParseDate(date); err != nil {
			return nil, err
		}
	}

	segments, err := s.repo.List(ctx, models.SegmentFilter{Date: date}, 0, 0)
	if err != nil {
		return nil, err
	}

	return timeline.Build(segments, mode)
}
