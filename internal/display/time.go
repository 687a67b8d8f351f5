// Package display holds the pure formatting helpers shared by both player
// types. Nothing in here carries state or touches the audio engine.
package display

import (
	"fmt"
	"math"
)

// FormatTime renders a duration in seconds as "M:SS". Minutes carry no
// leading zero, seconds are zero-padded. Values are truncated, not rounded.
// Non-finite input (the engine reports NaN before metadata loads) renders
// as "0:00".
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	whole := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", whole/60, whole%60)
}

// FormatTimeRange renders an "elapsed / total" label for album track rows
func FormatTimeRange(current, duration float64) string {
	return FormatTime(current) + " / " + FormatTime(duration)
}
