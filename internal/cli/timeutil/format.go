// Package timeutil formats timestamps and durations for CLI tables.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat renders timestamps in the operator's local time zone.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

// FormatUptime renders a Go duration string (for example "72h30m15s") as
// "3d 0h 30m 15s", dropping leading units that are zero. Strings that do
// not parse as durations pass through unchanged.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}

	total := int64(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// FormatTime converts an RFC3339 timestamp to local time for display.
// Strings that do not parse pass through unchanged.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return t.Local().Format(LocalTimeFormat)
}
