// Package humanize renders raw metric values for display:
// bytes use binary (1024-based) prefixes, percentages print to two
// decimals, rates as "ops/s", everything else to two decimals.
package humanize

import (
	"fmt"

	"github.com/qos-advisor/advisor/internal/config"
)

const (
	kb = 1024.0
	mb = kb * 1024.0
	gb = mb * 1024.0
)

// Value renders v according to the metric's unit tag.
func Value(v float64, unit config.Unit) string {
	switch unit {
	case config.UnitBytes:
		return bytes(v)
	case config.UnitPercentage:
		return fmt.Sprintf("%.2f%%", v)
	case config.UnitRate:
		return fmt.Sprintf("%.2f ops/s", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func bytes(v float64) string {
	switch {
	case v >= gb:
		return fmt.Sprintf("%.2f GB", v/gb)
	case v >= mb:
		return fmt.Sprintf("%.2f MB", v/mb)
	case v >= kb:
		return fmt.Sprintf("%.2f KB", v/kb)
	default:
		return fmt.Sprintf("%.0f B", v)
	}
}

// ParseBytesUnit converts a count in the given binary-prefixed unit
// ("KB"/"MB"/"GB") to raw bytes. Used for the round-trip test and by
// the constraint extractor's unit-conversion checks.
func ParseBytesUnit(count float64, unit string) (float64, bool) {
	switch unit {
	case "B":
		return count, true
	case "KB":
		return count * kb, true
	case "MB":
		return count * mb, true
	case "GB":
		return count * gb, true
	default:
		return 0, false
	}
}
