package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration accepts a bare integer as minutes, or any Go duration string
// ("15m", "900000ms", "1h30m").
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if minutes, err := strconv.Atoi(input); err == nil {
		return time.Duration(minutes) * time.Minute, nil
	}

	duration, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format: %q\n\nValid formats:\n"+
			"• minutes as a number (e.g., '15')\n"+
			"• Go duration (e.g., '15m', '900000ms', '1h30m')", input)
	}
	return duration, nil
}
