package util

import (
	"fmt"
	"strings"
	"time"
)

// ParseTimeString parses a time string in either 12-hour or 24-hour format
// and resolves it against the day of now.
// Supported formats:
// - 24-hour: "HH:MM" (e.g., "23:30", "09:45")
// - 12-hour: "HH:MM[AM|PM]" (e.g., "11:30PM", "09:45AM")
func ParseTimeString(timeStr string, now time.Time) (time.Time, error) {
	timeStr = strings.TrimSpace(strings.ToUpper(timeStr))

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	layouts := []string{"15:04", "3:04PM", "3:04 PM", "03:04PM", "03:04 PM"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return today.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s\n\nValid formats:\n"+
		"• 24-hour format: HH:MM (e.g., '23:30', '09:45')\n"+
		"• 12-hour format: HH:MM[AM|PM] (e.g., '11:30PM', '9:45 AM')", timeStr)
}

// NextClockTime returns the next occurrence of the clock time in timeStr
// strictly after now, rolling over to tomorrow when needed.
func NextClockTime(timeStr string, now time.Time) (time.Time, error) {
	t, err := ParseTimeString(timeStr, now)
	if err != nil {
		return time.Time{}, err
	}
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}
