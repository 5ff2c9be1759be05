package token

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotFound            = errors.New("share token not found")
	ErrDuplicateID         = errors.New("share token id already exists")
	ErrInvalidRequest      = errors.New("invalid share request")
	ErrGenerationExhausted = errors.New("token generation exhausted")
)

// PolicyKind distinguishes the two temporal validity rules a token can carry.
type PolicyKind string

const (
	PolicySimple    PolicyKind = "simple"
	PolicyScheduled PolicyKind = "scheduled"
)

// ClockTime is a time of day expressed as minutes since midnight.
type ClockTime int

// ParseClockTime parses a "HH:MM" string into a ClockTime.
func ParseClockTime(s string) (ClockTime, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return ClockTime(parsed.Hour()*60 + parsed.Minute()), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

// Policy is the temporal validity rule attached to a token. Kind selects the
// variant: a simple policy only carries ExpiresAt, a scheduled policy is
// additionally restricted to a weekly time-of-day window.
type Policy struct {
	Kind        PolicyKind     `json:"kind"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	Weekdays    []time.Weekday `json:"weekdays,omitempty"`
	WindowStart ClockTime      `json:"windowStart,omitempty"`
	WindowEnd   ClockTime      `json:"windowEnd,omitempty"`
}

// Token grants bearer access to a single file on a remote server. Possession
// of the ID is the entire authorization; all fields are immutable once the
// token is inserted into a store.
type Token struct {
	ID        string    `json:"id"`
	ServerID  string    `json:"serverId"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
	Policy    Policy    `json:"policy"`
}

// Decision is the outcome of evaluating a policy at a point in time.
type Decision int

const (
	DecisionAllowed Decision = iota
	DecisionOutsideWindow
	DecisionExpired
)

func (d Decision) String() string {
	switch d {
	case DecisionAllowed:
		return "allowed"
	case DecisionOutsideWindow:
		return "outside_window"
	case DecisionExpired:
		return "expired"
	}
	return "unknown"
}

// Clock supplies the current time. Injected so evaluation is deterministic
// in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the Clock used in production.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
