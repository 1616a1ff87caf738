package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SegmentType classifies a segment.
type SegmentType int

const (
	// Unset marks a segment that has not been categorized yet. It is
	// excluded from every duration aggregate.
	Unset SegmentType = iota
	Uptime
	Downtime
	Idle
)

var segmentTypeNames = [...]string{
	Unset:    "select",
	Uptime:   "uptime",
	Downtime: "downtime",
	Idle:     "idle",
}

// CategorizedTypes lists the types that take part in aggregation, in
// display order.
var CategorizedTypes = []SegmentType{Uptime, Downtime, Idle}

func (t SegmentType) String() string {
	if t < 0 || int(t) >= len(segmentTypeNames) {
		return fmt.Sprintf("SegmentType(%d)", int(t))
	}
	return segmentTypeNames[t]
}

// Categorized reports whether t is one of uptime, downtime or idle.
func (t SegmentType) Categorized() bool {
	return t == Uptime || t == Downtime || t == Idle
}

// ParseSegmentType maps a wire name to its SegmentType.
func ParseSegmentType(s string) (SegmentType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range segmentTypeNames {
		if name == s {
			return SegmentType(i), true
		}
	}
	return Unset, false
}

func (t SegmentType) MarshalJSON() ([]byte, error) {
	if t < 0 || int(t) >= len(segmentTypeNames) {
		return nil, fmt.Errorf("invalid segment type %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *SegmentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("segment type must be a string: %w", err)
	}
	typ, ok := ParseSegmentType(s)
	if !ok {
		return fmt.Errorf("unknown segment type %q", s)
	}
	*t = typ
	return nil
}
