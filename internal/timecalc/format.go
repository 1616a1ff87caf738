package timecalc

import (
	"fmt"
	"strconv"
)

// FormatHuman renders minutes in the compact form used by tables:
// "1h 30m", "45m", "2h", and "0m" for zero.
func FormatHuman(minutes int) (string, error) {
	if minutes < 0 {
		return "", fmt.Errorf("duration %d: %w", minutes, ErrInvalidInput)
	}

	hours := minutes / 60
	rest := minutes % 60

	switch {
	case hours > 0 && rest > 0:
		return strconv.Itoa(hours) + "h " + strconv.Itoa(rest) + "m", nil
	case hours > 0:
		return strconv.Itoa(hours) + "h", nil
	default:
		return strconv.Itoa(rest) + "m", nil
	}
}

// FormatClock renders minutes as HH:MM:00. Hours are not wrapped at 24,
// so totals spanning several days stay readable.
func FormatClock(minutes int) (string, error) {
	if minutes < 0 {
		return "", fmt.Errorf("duration %d: %w", minutes, ErrInvalidInput)
	}
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60), nil
}

// Formatted holds both presentations of a duration.
type Formatted struct {
	Human string `json:"human"`
	Clock string `json:"clock"`
}

// Format returns both presentations of minutes.
func Format(minutes int) (Formatted, error) {
	human, err := FormatHuman(minutes)
	if err != nil {
		return Formatted{}, err
	}
	clock, err := FormatClock(minutes)
	if err != nil {
		return Formatted{}, err
	}
	return Formatted{Human: human, Clock: clock}, nil
}
