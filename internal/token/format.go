package token

import (
	"fmt"
	"time"
)

// referenceWindow is the fixed scale used for the expiry progress percentage,
// independent of a token's own configured lifetime. A 30-minute token and a
// 30-day token render on the same 7-day scale.
const referenceWindow = 7 * 24 * time.Hour

// Describe renders the remaining lifetime of a token for display. It returns
// a human readable text and a progress percentage against the fixed 7-day
// reference window. Display only: the authorization decision is never based
// on this.
func Describe(expiresAt, now time.Time) (string, int) {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return "expired", 100
	}

	// Cap before multiplying: remaining*100 overflows int64 nanoseconds for
	// lifetimes measured in years.
	percent := 100
	if remaining < referenceWindow {
		percent = int(remaining * 100 / referenceWindow)
	}

	var text string
	switch {
	case remaining < time.Minute:
		text = "in under a minute"
	case remaining < time.Hour:
		text = fmt.Sprintf("in %s", plural(int(remaining/time.Minute), "minute"))
	case remaining < 24*time.Hour:
		text = fmt.Sprintf("in %s", plural(int(remaining/time.Hour), "hour"))
	default:
		text = fmt.Sprintf("in %s", plural(int(remaining/(24*time.Hour)), "day"))
	}
	return text, percent
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
