package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildRule(t *testing.T) {
	until := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		opts     RuleOptions
		expected string
	}{
		{
			name:     "daily",
			opts:     RuleOptions{Freq: FreqDaily},
			expected: "FREQ=DAILY",
		},
		{
			name:     "interval of one is omitted",
			opts:     RuleOptions{Freq: FreqDaily, Interval: 1},
			expected: "FREQ=DAILY",
		},
		{
			name:     "weekly with interval and days",
			opts:     RuleOptions{Freq: FreqWeekly, Interval: 2, ByDay: []string{"MO", "WE"}},
			expected: "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE",
		},
		{
			name:     "count",
			opts:     RuleOptions{Freq: FreqWeekly, Count: 3, ByDay: []string{"MO"}},
			expected: "FREQ=WEEKLY;COUNT=3;BYDAY=MO",
		},
		{
			name:     "until",
			opts:     RuleOptions{Freq: FreqDaily, Until: &until},
			expected: "FREQ=DAILY;UNTIL=20240630T000000Z",
		},
		{
			name:     "until wins over count",
			opts:     RuleOptions{Freq: FreqDaily, Until: &until, Count: 5},
			expected: "FREQ=DAILY;UNTIL=20240630T000000Z",
		},
		{
			name:     "monthly by month day",
			opts:     RuleOptions{Freq: FreqMonthly, ByMonthDay: []int{1, 15}},
			expected: "FREQ=MONTHLY;BYMONTHDAY=1,15",
		},
		{
			name:     "yearly",
			opts:     RuleOptions{Freq: FreqYearly},
			expected: "FREQ=YEARLY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildRule(tt.opts))
		})
	}
}

func TestExpandRule_BuiltRulesRoundTrip(t *testing.T) {
	// Rules emitted by the builder must be accepted by the engine.
	anchor := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	rule := BuildRule(RuleOptions{Freq: FreqWeekly, Count: 3, ByDay: []string{"MO"}})

	starts, err := expandRule(rule, anchor,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Len(t, starts, 3)
}

func TestExpandRule_Invalid(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	_, err := expandRule("FREQ=SOMETIMES", anchor, anchor, anchor.AddDate(0, 1, 0))
	assert.Error(t, err)

	var ruleErr *RuleError
	assert.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "FREQ=SOMETIMES", ruleErr.Rule)
}
