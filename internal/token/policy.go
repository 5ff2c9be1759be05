package token

import (
	"fmt"
	"time"
)

// NewSimplePolicy builds a policy valid from now until now+duration with no
// time-of-day restriction.
func NewSimplePolicy(now time.Time, duration time.Duration) (Policy, error) {
	if duration <= 0 {
		return Policy{}, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	return Policy{
		Kind:      PolicySimple,
		ExpiresAt: now.Add(duration),
	}, nil
}

// NewScheduledPolicy builds a policy valid only on the given weekdays between
// windowStart and windowEnd, and never after the end of expiryDate. The window
// must fall within a single day: overnight windows (start >= end) are
// rejected.
func NewScheduledPolicy(now time.Time, weekdays []time.Weekday, windowStart, windowEnd ClockTime, expiryDate time.Time) (Policy, error) {
	if len(weekdays) == 0 {
		return Policy{}, fmt.Errorf("%w: at least one weekday is required", ErrInvalidRequest)
	}
	for _, d := range weekdays {
		if d < time.Sunday || d > time.Saturday {
			return Policy{}, fmt.Errorf("%w: invalid weekday %d", ErrInvalidRequest, d)
		}
	}
	if windowStart < 0 || int(windowEnd) > 24*60 {
		return Policy{}, fmt.Errorf("%w: time of day out of range", ErrInvalidRequest)
	}
	if windowStart >= windowEnd {
		return Policy{}, fmt.Errorf("%w: window start %s must be before window end %s", ErrInvalidRequest, windowStart, windowEnd)
	}

	// The token is valid through the expiry calendar day.
	y, m, d := expiryDate.Date()
	expiresAt := time.Date(y, m, d, 23, 59, 59, 0, expiryDate.Location())
	if !expiresAt.After(now) {
		return Policy{}, fmt.Errorf("%w: expiry date is in the past", ErrInvalidRequest)
	}

	return Policy{
		Kind:        PolicyScheduled,
		ExpiresAt:   expiresAt,
		Weekdays:    weekdays,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}, nil
}

// Evaluate decides whether a policy grants access at the given instant. It is
// pure: the same policy and instant always produce the same decision.
func Evaluate(p Policy, now time.Time) Decision {
	if !now.Before(p.ExpiresAt) {
		return DecisionExpired
	}
	if p.Kind != PolicyScheduled {
		return DecisionAllowed
	}

	weekdayAllowed := false
	for _, d := range p.Weekdays {
		if d == now.Weekday() {
			weekdayAllowed = true
			break
		}
	}
	if !weekdayAllowed {
		return DecisionOutsideWindow
	}

	// Window upper bound is exclusive.
	tod := ClockTime(now.Hour()*60 + now.Minute())
	if tod < p.WindowStart || tod >= p.WindowEnd {
		return DecisionOutsideWindow
	}
	return DecisionAllowed
}
