// Package overlap detects intersecting segments belonging to one machine.
package overlap

import (
	"sort"

	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/timecalc"
)

// Pair is two chronologically adjacent segments that intersect.
type Pair struct {
	Segment1       models.Segment `json:"segment1"`
	Segment2       models.Segment `json:"segment2"`
	OverlapMinutes int            `json:"overlapMinutes"`
}

// Overlaps reports whether a and b intersect with nonzero length. Touching
// endpoints are not an overlap.
func Overlaps(a, b timecalc.Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// SegmentsOverlap resolves both segments and compares them. It does not
// look at machine names.
func SegmentsOverlap(a, b models.Segment) (bool, error) {
	ia, err := timecalc.Resolve(a.Date, a.StartTime, a.EndTime)
	if err != nil {
		return false, err
	}
	ib, err := timecalc.Resolve(b.Date, b.StartTime, b.EndTime)
	if err != nil {
		return false, err
	}
	return Overlaps(ia, ib), nil
}

// Minutes returns the length of the intersection of a and b in whole
// minutes, or zero if they do not overlap.
func Minutes(a, b timecalc.Interval) int {
	if !Overlaps(a, b) {
		return 0
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return timecalc.Interval{Start: start, End: end}.Minutes()
}

type resolved struct {
	seg models.Segment
	iv  timecalc.Interval
}

// FindOverlaps returns the overlapping pairs among machineName's segments.
// Segments are sorted by date and start time and only neighbours are
// compared, so a long segment that contains several others is reported
// against its immediate successor only. Segments whose times cannot be
// parsed are skipped.
func FindOverlaps(segments []models.Segment, machineName string) []Pair {
	machineName = models.NormalizeMachineName(machineName)

	var items []resolved
	for _, seg := range segments {
		if models.NormalizeMachineName(seg.MachineName) != machineName {
			continue
		}
		iv, err := timecalc.Resolve(seg.Date, seg.StartTime, seg.EndTime)
		if err != nil {
			continue
		}
		items = append(items, resolved{seg: seg, iv: iv})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].seg.Date != items[j].seg.Date {
			return items[i].seg.Date < items[j].seg.Date
		}
		return items[i].seg.StartTime < items[j].seg.StartTime
	})

	pairs := []Pair{}
	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		if !Overlaps(prev.iv, cur.iv) {
			continue
		}
		pairs = append(pairs, Pair{
			Segment1:       prev.seg,
			Segment2:       cur.seg,
			OverlapMinutes: Minutes(prev.iv, cur.iv),
		})
	}
	return pairs
}
