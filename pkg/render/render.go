// Package render formats numeric observations for human-readable check
// summaries. Every function takes a single value and returns a string.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Percent renders a percentage value, e.g. "85.06%".
func Percent(value float64) string {
	return fmt.Sprintf("%.2f%%", value)
}

// Bytes renders a byte count using IEC units, e.g. "2.00 MiB".
func Bytes(value float64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

	size := math.Abs(value)
	exponent := 0
	for size >= 1024 && exponent < len(units)-1 {
		size /= 1024
		exponent++
	}
	if exponent == 0 {
		return fmt.Sprintf("%.0f B", value)
	}
	return fmt.Sprintf("%.2f %s", math.Copysign(size, value), units[exponent])
}

// PerSecond renders a rate, e.g. "17.50/s".
func PerSecond(value float64) string {
	return fmt.Sprintf("%.2f/s", value)
}

// Timespan renders a duration in the two most significant units,
// e.g. "2 days 3 hours" or "45 seconds".
func Timespan(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	seconds := int64(d / time.Second)
	steps := []struct {
		unit    string
		seconds int64
	}{
		{"day", 86400},
		{"hour", 3600},
		{"minute", 60},
		{"second", 1},
	}

	var parts []string
	for _, step := range steps {
		if len(parts) == 2 {
			break
		}
		n := seconds / step.seconds
		seconds %= step.seconds
		if n == 0 && len(parts) == 0 && step.unit != "second" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, plural(step.unit, n)))
	}

	return strings.Join(parts, " ")
}

func plural(unit string, n int64) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// Count renders an integer-valued observation without decimals.
func Count(value float64) string {
	return fmt.Sprintf("%d", int64(math.Round(value)))
}
