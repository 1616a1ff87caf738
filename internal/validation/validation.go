// Package validation checks a candidate segment against the field rules
// and against the segments already recorded for its machine.
package validation

import (
	"regexp"
	"sort"
	"strings"

	"Mansoor88-6/segment-tracker/internal/models"
	"Mansoor88-6/segment-tracker/internal/overlap"
	"Mansoor88-6/segment-tracker/internal/timecalc"
)

// Field names used as keys in Errors.
const (
	FieldDate        = "date"
	FieldStartTime   = "startTime"
	FieldEndTime     = "endTime"
	FieldMachineName = "machineName"
	FieldSegmentType = "segmentType"

	// General keys errors that concern the form as a whole, such as an
	// overlap between two records.
	General = "general"
)

// Messages reported to the form.
const (
	msgRequired      = "is required"
	msgDateFormat    = "must be a valid date in YYYY-MM-DD format"
	msgTimeFormat    = "must be a valid time in HH:MM:SS format"
	msgMachineFormat = "may only contain letters, digits, '-' and '_'"
	msgTypeInvalid   = "must be one of uptime, downtime, idle or select"
	msgEndAfterStart = "End time must be after start time"
	msgOverlap       = "This segment overlaps with an existing segment for the same machine"
)

var machineNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Errors maps a field name, or General, to a human-readable message.
type Errors map[string]string

// Fields returns the keys of e in sorted order.
func (e Errors) Fields() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Result is the outcome of Validate. An empty Errors means Valid.
type Result struct {
	Valid  bool   `json:"valid"`
	Errors Errors `json:"errors"`
}

// Validate checks candidate in order: presence, format, end after start,
// then overlap against existing. The last two run only once every
// single-field check has passed. existing may hold segments for any
// machine; only those sharing the candidate's machine name are compared,
// and a segment with the candidate's ID is ignored so updates do not
// collide with themselves. The overlap check is not limited to the
// candidate's date: intervals are compared on the absolute timeline, so a
// previous day's segment that runs past midnight blocks an early-morning
// candidate. Callers must pass every segment of the machine, not just one
// day's. Malformed input is reported, never returned as an error.
func Validate(candidate models.SegmentRequest, existing []models.Segment) Result {
	errs := Errors{}

	fields := []struct {
		name  string
		value string
		check func(string) string
	}{
		{FieldDate, candidate.Date, checkDate},
		{FieldStartTime, candidate.StartTime, checkClock},
		{FieldEndTime, candidate.EndTime, checkClock},
		{FieldMachineName, candidate.MachineName, checkMachineName},
		{FieldSegmentType, candidate.SegmentType, checkSegmentType},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			errs[f.name] = label(f.name) + " " + msgRequired
			continue
		}
		if msg := f.check(f.value); msg != "" {
			errs[f.name] = label(f.name) + " " + msg
		}
	}
	if len(errs) != 0 {
		return Result{Valid: false, Errors: errs}
	}

	iv, err := timecalc.Resolve(candidate.Date, candidate.StartTime, candidate.EndTime)
	if err != nil {
		errs[FieldEndTime] = msgEndAfterStart
		return Result{Valid: false, Errors: errs}
	}
	if iv.Minutes() < 1 {
		errs[FieldEndTime] = msgEndAfterStart
		return Result{Valid: false, Errors: errs}
	}

	if conflictsWith(candidate, iv, existing) {
		errs[General] = msgOverlap
		return Result{Valid: false, Errors: errs}
	}

	return Result{Valid: true, Errors: errs}
}

// conflictsWith compares the candidate against every other segment of its
// machine. Unlike overlap.FindOverlaps this is exhaustive.
func conflictsWith(candidate models.SegmentRequest, iv timecalc.Interval, existing []models.Segment) bool {
	machine := models.NormalizeMachineName(candidate.MachineName)
	for _, seg := range existing {
		if candidate.ID != "" && seg.ID == candidate.ID {
			continue
		}
		if models.NormalizeMachineName(seg.MachineName) != machine {
			continue
		}
		other, err := timecalc.Resolve(seg.Date, seg.StartTime, seg.EndTime)
		if err != nil {
			continue
		}
		if overlap.Overlaps(iv, other) {
			return true
		}
	}
	return false
}

func checkDate(s string) string {
	if _, err := timecalc.ParseDate(s); err != nil {
		return msgDateFormat
	}
	return ""
}

func checkClock(s string) string {
	if _, err := timecalc.ParseClock(s); err != nil {
		return msgTimeFormat
	}
	return ""
}

func checkMachineName(s string) string {
	if !machineNameRE.MatchString(s) {
		return msgMachineFormat
	}
	return ""
}

func checkSegmentType(s string) string {
	if _, ok := models.ParseSegmentType(s); !ok {
		return msgTypeInvalid
	}
	return ""
}

func label(field string) string {
	switch field {
	case FieldDate:
		return "Date"
	case FieldStartTime:
		return "Start time"
	case FieldEndTime:
		return "End time"
	case FieldMachineName:
		return "Machine name"
	case FieldSegmentType:
		return "Segment type"
	}
	return field
}
