package domain

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Calendar answers "next occurrence after T" queries over a serialized
// recurrence rule (RFC 5545 RRULE syntax).
type Calendar struct {
	rule *rrule.RRule
	text string
}

// ParseCalendar parses a serialized recurrence rule. The first payment due
// date anchors the series when the rule itself carries no DTSTART.
func ParseCalendar(rule string, firstDue time.Time) (*Calendar, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence rule %q: %w", rule, err)
	}
	if !firstDue.IsZero() {
		r.DTStart(firstDue.UTC())
	}
	return &Calendar{rule: r, text: rule}, nil
}

// NextAfter returns the first occurrence strictly after t. The zero time
// is returned when the series has no further occurrences.
func (c *Calendar) NextAfter(t time.Time) time.Time {
	return c.rule.After(t.UTC(), false)
}

// String returns the serialized rule.
func (c *Calendar) String() string {
	return c.text
}
