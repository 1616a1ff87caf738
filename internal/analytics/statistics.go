package analytics

import (
	"sort"

	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/timecalc"
)

// Filter narrows the segments a report covers. Empty fields match
// everything; StartDate and EndDate are inclusive.
type Filter struct {
	MachineName string `json:"machineName,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	EndDate     string `json:"endDate,omitempty"`
}

// Match reports whether seg passes f.
func (f Filter) Match(seg models.Segment) bool {
	if f.MachineName != "" && models.NormalizeMachineName(seg.MachineName) != models.NormalizeMachineName(f.MachineName) {
		return false
	}
	// Dates are fixed width, so string order is calendar order.
	if f.StartDate != "" && seg.Date < f.StartDate {
		return false
	}
	if f.EndDate != "" && seg.Date > f.EndDate {
		return false
	}
	return true
}

// TypeStat summarizes one category.
type TypeStat struct {
	Count      int                `json:"count"`
	Minutes    int                `json:"minutes"`
	Formatted  timecalc.Formatted `json:"formatted"`
	Percentage int                `json:"percentage"`
}

// GroupStat summarizes the segments of one machine or one date.
type GroupStat struct {
	Count     int                `json:"count"`
	Minutes   int                `json:"minutes"`
	Formatted timecalc.Formatted `json:"formatted"`
	ByType    Totals             `json:"byType"`
}

// ReportTotals holds the scalar totals of a report.
type ReportTotals struct {
	TotalSegments      int                `json:"totalSegments"`
	UniqueMachineCount int                `json:"uniqueMachineCount"`
	UniqueDateCount    int                `json:"uniqueDateCount"`
	TotalMinutes       int                `json:"totalMinutes"`
	Formatted          timecalc.Formatted `json:"formatted"`
}

// Report is the composite statistics over a filtered set of segments.
// ByType only has entries for categories with at least one segment.
type Report struct {
	Filter    Filter               `json:"filter"`
	ByType    map[string]TypeStat  `json:"byType"`
	ByMachine map[string]GroupStat `json:"byMachine"`
	ByDate    map[string]GroupStat `json:"byDate"`
	Totals    ReportTotals         `json:"totals"`
}

// Machines returns the machine keys of r in sorted order.
func (r *Report) Machines() []string {
	return sortedKeys(r.ByMachine)
}

// Dates returns the date keys of r in ascending order.
func (r *Report) Dates() []string {
	return sortedKeys(r.ByDate)
}

// Statistics builds a Report over the segments that pass filter. Select
// segments and segments with unparsable times are left out entirely.
func Statistics(segments []models.Segment, filter Filter) *Report {
	report := &Report{
		Filter:    filter,
		ByType:    make(map[string]TypeStat),
		ByMachine: make(map[string]GroupStat),
		ByDate:    make(map[string]GroupStat),
	}

	var totals Totals
	counts := make(map[models.SegmentType]int)

	for _, seg := range segments {
		if !filter.Match(seg) {
			continue
		}
		minutes, ok := Minutes(seg)
		if !ok {
			continue
		}

		totals.add(seg.Type, minutes)
		counts[seg.Type]++
		report.Totals.TotalSegments++

		machine := models.NormalizeMachineName(seg.MachineName)
		report.ByMachine[machine] = accumulate(report.ByMachine[machine], seg.Type, minutes)
		report.ByDate[seg.Date] = accumulate(report.ByDate[seg.Date], seg.Type, minutes)
	}

	pct := PercentagesByType(totals)
	for _, typ := range models.CategorizedTypes {
		if counts[typ] == 0 {
			continue
		}
		report.ByType[typ.String()] = TypeStat{
			Count:      counts[typ],
			Minutes:    totals.Get(typ),
			Formatted:  mustFormat(totals.Get(typ)),
			Percentage: pct.Get(typ),
		}
	}

	for k, v := range report.ByMachine {
		v.Formatted = mustFormat(v.Minutes)
		report.ByMachine[k] = v
	}
	for k, v := range report.ByDate {
		v.Formatted = mustFormat(v.Minutes)
		report.ByDate[k] = v
	}

	report.Totals.UniqueMachineCount = len(report.ByMachine)
	report.Totals.UniqueDateCount = len(report.ByDate)
	report.Totals.TotalMinutes = totals.Sum()
	report.Totals.Formatted = mustFormat(report.Totals.TotalMinutes)

	return report
}

func accumulate(s GroupStat, typ models.SegmentType, minutes int) GroupStat {
	s.Count++
	s.Minutes += minutes
	s.ByType.add(typ, minutes)
	return s
}

// mustFormat formats a sum of non-negative durations, which cannot fail.
func mustFormat(minutes int) timecalc.Formatted {
	f, err := timecalc.Format(minutes)
	if err != nil {
		panic(err)
	}
	return f
}

func sortedKeys(m map[string]GroupStat) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
