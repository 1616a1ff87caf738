package models

import (
	"fmt"
	"strings"
	"time"
)

// Layouts used for the string fields of a segment.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

// Segment is a recorded interval of time for one machine.
type Segment struct {
	ID          string      `json:"id"`
	Date        string      `json:"date"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	MachineName string      `json:"machineName"`
	Type        SegmentType `json:"segmentType"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// SegmentRequest is the raw form payload for creating, updating or
// pre-validating a segment. All fields are kept as strings so that
// malformed input can be reported per field instead of failing decode.
type SegmentRequest struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	MachineName string `json:"machineName"`
	SegmentType string `json:"segmentType"`
}

// NewSegmentRequest returns the defaults a new form starts with: today's
// date, now as start, one hour later as end, and an uncategorized type.
func NewSegmentRequest(now time.Time) SegmentRequest {
	end := now.Add(time.Hour)
	return SegmentRequest{
		Date:        now.Format(DateLayout),
		StartTime:   now.Format(ClockLayout),
		EndTime:     end.Format(ClockLayout),
		SegmentType: Unset.String(),
	}
}

// Normalize trims every field and applies the machine name convention.
func (r SegmentRequest) Normalize() SegmentRequest {
	r.ID = strings.TrimSpace(r.ID)
	r.Date = strings.TrimSpace(r.Date)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	r.MachineName = NormalizeMachineName(r.MachineName)
	r.SegmentType = strings.ToLower(strings.TrimSpace(r.SegmentType))
	return r
}

// Segment converts a request into a Segment. The request should have been
// validated first; an unknown segment type is reported as an error.
func (r SegmentRequest) Segment() (Segment, error) {
	typ, ok := ParseSegmentType(r.SegmentType)
	if !ok {
		return Segment{}, fmt.Errorf("unknown segment type %q", r.SegmentType)
	}
	return Segment{
		ID:          r.ID,
		Date:        r.Date,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		MachineName: r.MachineName,
		Type:        typ,
	}, nil
}

// NormalizeMachineName trims name and forces a leading "m" to "M", so
// that "m1" and "M1" group together.
func NormalizeMachineName(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && (name[0] == 'm' || name[0] == 'M') {
		return "M" + name[1:]
	}
	return name
}

// SegmentFilter narrows a listing. Empty fields match everything; date
// bounds are inclusive.
type SegmentFilter struct {
	MachineName string
	Date        string
	StartDate   string
	EndDate     string
}
