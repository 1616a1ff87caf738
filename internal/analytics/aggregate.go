// Package analytics groups segments and aggregates their durations.
//
// Segments of type select are uncategorized and never contribute to a
// duration, a percentage or a count. Segments whose times cannot be parsed
// are likewise skipped rather than failing the whole report.
package analytics

import (
	"math"

	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/timecalc"
)

// Grouped holds segments keyed by normalized machine name. Order lists the
// machines in the order they were first seen.
type Grouped struct {
	Order    []string
	Machines map[string][]models.Segment
}

// GroupByMachine groups segments by machine, keeping insertion order
// within each group.
func GroupByMachine(segments []models.Segment) *Grouped {
	grouped := &Grouped{
		Machines: make(map[string][]models.Segment),
	}

	for _, seg := range segments {
		name := models.NormalizeMachineName(seg.MachineName)
		if _, ok := grouped.Machines[name]; !ok {
			grouped.Order = append(grouped.Order, name)
		}
		grouped.Machines[name] = append(grouped.Machines[name], seg)
	}

	return grouped
}

// Totals is the tracked minutes per category.
type Totals struct {
	Uptime   int `json:"uptime"`
	Downtime int `json:"downtime"`
	Idle     int `json:"idle"`
}

// Sum returns the minutes across all categories.
func (t Totals) Sum() int {
	return t.Uptime + t.Downtime + t.Idle
}

// Get returns the minutes recorded for typ.
func (t Totals) Get(typ models.SegmentType) int {
	switch typ {
	case models.Uptime:
		return t.Uptime
	case models.Downtime:
		return t.Downtime
	case models.Idle:
		return t.Idle
	}
	return 0
}

func (t *Totals) add(typ models.SegmentType, minutes int) {
	switch typ {
	case models.Uptime:
		t.Uptime += minutes
	case models.Downtime:
		t.Downtime += minutes
	case models.Idle:
		t.Idle += minutes
	}
}

// Percentages is each category's share of Totals.Sum in whole percent.
type Percentages struct {
	Uptime   int `json:"uptime"`
	Downtime int `json:"downtime"`
	Idle     int `json:"idle"`
}

// Get returns the percentage for typ.
func (p Percentages) Get(typ models.SegmentType) int {
	switch typ {
	case models.Uptime:
		return p.Uptime
	case models.Downtime:
		return p.Downtime
	case models.Idle:
		return p.Idle
	}
	return 0
}

// Minutes returns the duration of seg and whether it counts toward
// aggregates.
func Minutes(seg models.Segment) (int, bool) {
	if !seg.Type.Categorized() {
		return 0, false
	}
	m, err := timecalc.DurationMinutes(seg.Date, seg.StartTime, seg.EndTime)
	if err != nil {
		return 0, false
	}
	return m, true
}

// TotalsByType sums segment durations per category.
func TotalsByType(segments []models.Segment) Totals {
	var totals Totals
	for _, seg := range segments {
		m, ok := Minutes(seg)
		if !ok {
			continue
		}
		totals.add(seg.Type, m)
	}
	return totals
}

// PercentagesByType rounds each category's share to the nearest whole
// percent. A zero grand total yields all zeros.
func PercentagesByType(totals Totals) Percentages {
	sum := totals.Sum()
	if sum <= 0 {
		return Percentages{}
	}
	return Percentages{
		Uptime:   percent(totals.Uptime, sum),
		Downtime: percent(totals.Downtime, sum),
		Idle:     percent(totals.Idle, sum),
	}
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// MachineSummary is the per-machine view used by the analytics table.
type MachineSummary struct {
	MachineName  string                        `json:"machineName"`
	Totals       Totals                        `json:"totals"`
	Percentages  Percentages                   `json:"percentages"`
	Formatted    map[string]timecalc.Formatted `json:"formatted"`
	TotalMinutes int                           `json:"totalMinutes"`
}

// Summarize aggregates the segments that belong to machine.
func Summarize(machine string, segments []models.Segment) MachineSummary {
	machine = models.NormalizeMachineName(machine)

	var own []models.Segment
	for _, seg := range segments {
		if models.NormalizeMachineName(seg.MachineName) == machine {
			own = append(own, seg)
		}
	}

	totals := TotalsByType(own)
	formatted := make(map[string]timecalc.Formatted, len(models.CategorizedTypes))
	for _, typ := range models.CategorizedTypes {
		formatted[typ.String()] = mustFormat(totals.Get(typ))
	}

	return MachineSummary{
		MachineName:  machine,
		Totals:       totals,
		Percentages:  PercentagesByType(totals),
		Formatted:    formatted,
		TotalMinutes: totals.Sum(),
	}
}
