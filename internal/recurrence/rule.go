// Package recurrence turns recurrence rules into concrete occurrences.
// It wraps teambition/rrule-go for rule enumeration and implements the
// window expansion used by event queries.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const icsTimeLayout = "20060102T150405Z"

// Frequency is the repeat unit of a rule.
type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
	FreqYearly  Frequency = "YEARLY"
)

// RuleOptions describes a recurrence schedule in structured form.
// Until and Count are mutually exclusive; Until wins when both are set.
type RuleOptions struct {
	Freq       Frequency
	Interval   int // omitted from the rule string when <= 1
	Until      *time.Time
	Count      int
	ByDay      []string // two-letter weekday codes, e.g. "MO", "TH"
	ByMonthDay []int
}

// BuildRule emits the semicolon-joined KEY=VALUE rule string for opts.
func BuildRule(opts RuleOptions) string {
	parts := []string{"FREQ=" + string(opts.Freq)}

	if opts.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", opts.Interval))
	}

	switch {
	case opts.Until != nil:
		parts = append(parts, "UNTIL="+opts.Until.UTC().Format(icsTimeLayout))
	case opts.Count > 0:
		parts = append(parts, fmt.Sprintf("COUNT=%d", opts.Count))
	}

	if len(opts.ByDay) > 0 {
		parts = append(parts, "BYDAY="+strings.Join(opts.ByDay, ","))
	}
	if len(opts.ByMonthDay) > 0 {
		days := make([]string, len(opts.ByMonthDay))
		for i, d := range opts.ByMonthDay {
			days[i] = strconv.Itoa(d)
		}
		parts = append(parts, "BYMONTHDAY="+strings.Join(days, ","))
	}

	return strings.Join(parts, ";")
}

// RuleError reports a rule string the engine could not parse.
type RuleError struct {
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("invalid recurrence rule %q: %v", e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// expandRule enumerates the start instants of rule, anchored at anchor,
// inside the closed window [from, to]. COUNT and UNTIL bound the rule on
// their own; the window only clips, never extends, the enumeration.
func expandRule(rule string, anchor, from, to time.Time) ([]time.Time, error) {
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return nil, &RuleError{Rule: rule, Err: err}
	}
	r.DTStart(anchor)

	// Between works in the anchor's location; align the window first.
	return r.Between(from.In(anchor.Location()), to.In(anchor.Location()), true), nil
}
