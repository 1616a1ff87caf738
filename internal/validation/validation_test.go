package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Mansoor88-6/segment-tracker/internal/models"
)

func request(machine, start, end string) models.SegmentRequest {
	return models.SegmentRequest{
		Date:        "2024-03-01",
		StartTime:   start,
		EndTime:     end,
		MachineName: machine,
		SegmentType: "uptime",
	}
}

func existing(id, machine, start, end string) models.Segment {
	return models.Segment{
		ID:          id,
		Date:        "2024-03-01",
		StartTime:   start,
		EndTime:     end,
		MachineName: machine,
		Type:        models.Uptime,
	}
}

func TestValidate_Valid(t *testing.T) {
	res := Validate(request("M1", "08:00:00", "09:00:00"), nil)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Errors)
}

func TestValidate_Presence(t *testing.T) {
	// Given: an empty form
	res := Validate(models.SegmentRequest{MachineName: "   "}, nil)

	// Then: every field is reported as required
	require.False(t, res.Valid)
	assert.Equal(t, []string{FieldDate, FieldEndTime, FieldMachineName, FieldSegmentType, FieldStartTime}, res.Errors.Fields())
	assert.Equal(t, "Date is required", res.Errors[FieldDate])
	assert.Equal(t, "Machine name is required", res.Errors[FieldMachineName])
}

func TestValidate_Format(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*models.SegmentRequest)
		field string
	}{
		{"bad date", func(r *models.SegmentRequest) { r.Date = "01/03/2024" }, FieldDate},
		{"bad start", func(r *models.SegmentRequest) { r.StartTime = "8am" }, FieldStartTime},
		{"bad end", func(r *models.SegmentRequest) { r.EndTime = "24:00:00" }, FieldEndTime},
		{"machine with space", func(r *models.SegmentRequest) { r.MachineName = "M 1" }, FieldMachineName},
		{"unknown type", func(r *models.SegmentRequest) { r.SegmentType = "broken" }, FieldSegmentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request("M1", "08:00:00", "09:00:00")
			tt.mod(&req)

			res := Validate(req, nil)

			require.False(t, res.Valid)
			assert.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors, tt.field)
		})
	}
}

func TestValidate_FormatErrorsSkipCrossFieldChecks(t *testing.T) {
	// Given: a malformed date and an overlapping time range
	req := request("M1", "09:00:00", "10:00:00")
	req.Date = "2024-13-01"
	others := []models.Segment{existing("a", "M1", "09:30:00", "10:30:00")}

	res := Validate(req, others)

	// Then: only the field error is reported
	require.False(t, res.Valid)
	assert.Equal(t, []string{FieldDate}, res.Errors.Fields())
}

func TestValidate_EndAfterStart(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		valid      bool
	}{
		{"equal", "08:00:00", "08:00:00", false},
		{"sub-minute", "08:00:00", "08:00:30", false},
		{"one minute", "08:00:00", "08:01:00", true},
		{"rollover", "23:30:00", "00:15:00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(request("M1", tt.start, tt.end), nil)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				assert.Equal(t, "End time must be after start time", res.Errors[FieldEndTime])
			}
		})
	}
}

func TestValidate_OverlapSameMachine(t *testing.T) {
	// Given: M1 already has [09:30, 10:30)
	others := []models.Segment{existing("a", "M1", "09:30:00", "10:30:00")}

	// When: adding [09:00, 10:00) for M1
	res := Validate(request("M1", "09:00:00", "10:00:00"), others)

	// Then: a single general error is reported
	require.False(t, res.Valid)
	assert.Equal(t, []string{General}, res.Errors.Fields())
}

func TestValidate_OverlapDifferentMachine(t *testing.T) {
	others := []models.Segment{existing("a", "M2", "09:30:00", "10:30:00")}

	res := Validate(request("M1", "09:00:00", "10:00:00"), others)

	assert.True(t, res.Valid)
}

func TestValidate_OverlapNormalizesMachine(t *testing.T) {
	others := []models.Segment{existing("a", "m1", "09:30:00", "10:30:00")}

	res := Validate(request("M1", "09:00:00", "10:00:00"), others)

	assert.False(t, res.Valid)
}

func TestValidate_TouchingIsNotOverlap(t *testing.T) {
	others := []models.Segment{existing("a", "M1", "08:00:00", "09:00:00")}

	res := Validate(request("M1", "09:00:00", "10:00:00"), others)

	assert.True(t, res.Valid)
}

func TestValidate_UpdateExcludesSelf(t *testing.T) {
	// Given: the stored version of the segment being edited
	others := []models.Segment{
		existing("a", "M1", "08:00:00", "09:00:00"),
		existing("b", "M1", "11:00:00", "12:00:00"),
	}

	// When: extending it so that it overlaps its own old range only
	req := request("M1", "08:00:00", "09:30:00")
	req.ID = "a"
	res := Validate(req, others)

	// Then: it is valid
	assert.True(t, res.Valid)

	// And: extending it into the next segment is rejected
	req.EndTime = "11:30:00"
	res = Validate(req, others)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, General)
}

func TestValidate_ExhaustiveAgainstContainment(t *testing.T) {
	// Given: two short disjoint segments far apart in sort order
	others := []models.Segment{
		existing("a", "M1", "08:00:00", "08:30:00"),
		existing("b", "M1", "09:00:00", "09:30:00"),
		existing("c", "M1", "13:00:00", "13:30:00"),
	}

	// When: adding a segment that only overlaps the last one
	res := Validate(request("M1", "12:00:00", "14:00:00"), others)

	// Then: the overlap is still found
	assert.False(t, res.Valid)
}

func TestValidate_OverlapAcrossMidnight(t *testing.T) {
	// Given: a night shift recorded on the previous date
	others := []models.Segment{{
		ID: "night", Date: "2024-02-29", StartTime: "22:00:00", EndTime: "02:00:00",
		MachineName: "M1", Type: models.Uptime,
	}}

	// When: adding an early morning segment on the next date
	req := request("M1", "01:00:00", "03:00:00")
	res := Validate(req, others)

	// Then: it collides in absolute time
	assert.False(t, res.Valid)
}

func TestValidate_SelectAllowed(t *testing.T) {
	req := request("M1", "08:00:00", "09:00:00")
	req.SegmentType = "select"

	assert.True(t, Validate(req, nil).Valid)
}
