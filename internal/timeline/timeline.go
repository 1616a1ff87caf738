// Package timeline maps segments onto a horizontal axis as left offset and
// width percentages for rendering.
package timeline

import (
	"errors"
	"fmt"
	"sort"

	"Mansoor88-6/segment-tracker/internal/analytics"
	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/timecalc"
)

// FixedAxis is a full day in minutes.
const FixedAxis = 24 * 60

// LabelThreshold is the width in percent a bar must exceed for its text
// label to be legible.
const LabelThreshold = 10.0

// ErrInvalidAxis is returned for a non-positive axis length.
var ErrInvalidAxis = errors.New("axis must be positive")

// AxisMode selects how the axis length is chosen.
type AxisMode string

const (
	// AxisFixed uses a 24 hour axis.
	AxisFixed AxisMode = "fixed"
	// AxisDynamic sizes the axis to the machine with the most tracked time.
	AxisDynamic AxisMode = "dynamic"
)

// ParseAxisMode maps a query value to an AxisMode. Empty means fixed.
func ParseAxisMode(s string) (AxisMode, error) {
	switch AxisMode(s) {
	case "", AxisFixed:
		return AxisFixed, nil
	case AxisDynamic:
		return AxisDynamic, nil
	}
	return "", fmt.Errorf("unknown axis mode %q", s)
}

// Projected is a segment with its position on the axis.
type Projected struct {
	Segment         models.Segment `json:"segment"`
	DurationMinutes int            `json:"durationMinutes"`
	Duration        string         `json:"duration"`
	LeftPercent     float64        `json:"leftPercent"`
	WidthPercent    float64        `json:"widthPercent"`
	ShowLabel       bool           `json:"showLabel"`
}

// Project positions each segment independently on an axis of axisMinutes.
// The left offset is measured from 00:00:00 of the segment's own date.
// Overlapping segments produce overlapping bars. The result is in
// chronological order; segments with unparsable times are skipped.
func Project(segments []models.Segment, axisMinutes int) ([]Projected, error) {
	if axisMinutes <= 0 {
		return nil, fmt.Errorf("axis %d: %w", axisMinutes, ErrInvalidAxis)
	}

	ordered := make([]models.Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Date != ordered[j].Date {
			return ordered[i].Date < ordered[j].Date
		}
		return ordered[i].StartTime < ordered[j].StartTime
	})

	axis := float64(axisMinutes)
	out := make([]Projected, 0, len(ordered))
	for _, seg := range ordered {
		duration, err := timecalc.DurationMinutes(seg.Date, seg.StartTime, seg.EndTime)
		if err != nil {
			continue
		}
		offset, err := timecalc.MinutesSinceMidnight(seg.StartTime)
		if err != nil {
			continue
		}
		human, err := timecalc.FormatHuman(duration)
		if err != nil {
			continue
		}

		width := float64(duration) * 100 / axis
		out = append(out, Projected{
			Segment:         seg,
			DurationMinutes: duration,
			Duration:        human,
			LeftPercent:     float64(offset) * 100 / axis,
			WidthPercent:    width,
			ShowLabel:       width > LabelThreshold,
		})
	}
	return out, nil
}

// DynamicAxis returns the largest total tracked minutes of any machine in
// grouped, counting every segment regardless of type. It is never less
// than one.
func DynamicAxis(grouped *analytics.Grouped) int {
	longest := 0
	for _, segments := range grouped.Machines {
		total := 0
		for _, seg := range segments {
			m, err := timecalc.DurationMinutes(seg.Date, seg.StartTime, seg.EndTime)
			if err != nil {
				continue
			}
			total += m
		}
		if total > longest {
			longest = total
		}
	}
	if longest < 1 {
		return 1
	}
	return longest
}

// Row is one machine's bar on the timeline.
type Row struct {
	MachineName string                   `json:"machineName"`
	Segments    []Projected              `json:"segments"`
	Summary     analytics.MachineSummary `json:"summary"`
}

// Timeline is the full projected view for a set of segments.
type Timeline struct {
	Axis        AxisMode `json:"axis"`
	AxisMinutes int      `json:"axisMinutes"`
	Rows        []Row    `json:"rows"`
}

// Build groups segments by machine and projects every row on the axis
// selected by mode. Rows follow the order machines were first seen.
func Build(segments []models.Segment, mode AxisMode) (*Timeline, error) {
	grouped := analytics.GroupByMachine(segments)

	axis := FixedAxis
	if mode == AxisDynamic {
		axis = DynamicAxis(grouped)
	}

	tl := &Timeline{Axis: mode, AxisMinutes: axis, Rows: make([]Row, 0, len(grouped.Order))}
	for _, machine := range grouped.Order {
		projected, err := Project(grouped.Machines[machine], axis)
		if err != nil {
			return nil, err
		}
		tl.Rows = append(tl.Rows, Row{
			MachineName: machine,
			Segments:    projected,
			Summary:     analytics.Summarize(machine, grouped.Machines[machine]),
		})
	}
	return tl, nil
}
