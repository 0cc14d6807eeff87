// Package schedule owns recurring fleet runs: recurrence rules, the
// periodic tick loop that finds due schedules, and the firing path
// that hands them to the dispatcher.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule kinds accepted by Parse.
const (
	KindInterval = "interval"
	KindCron     = "cron"
)

// Rule computes when a schedule should fire next. Implementations are
// immutable; the engine re-parses the stored kind/value pair whenever
// it needs one, so a richer evaluator can be swapped in without
// touching the tick loop.
type Rule interface {
	Next(base time.Time) time.Time
}

// Parse validates and builds a Rule from its stored form. Malformed
// rules fail here, at create or update time, never inside the tick
// loop.
func Parse(kind, value string) (Rule, error) {
	switch kind {
	case KindInterval:
		return parseInterval(value)
	case KindCron:
		return parseCron(value)
	default:
		return nil, fmt.Errorf("unknown rule kind %q (want %q or %q)", kind, KindInterval, KindCron)
	}
}

// IntervalRule fires a fixed number of minutes after the previous
// firing. The cadence is anchored to the last firing, not to
// wall-clock slots.
type IntervalRule struct {
	Every time.Duration
}

func (r IntervalRule) Next(base time.Time) time.Time {
	return base.Add(r.Every)
}

func parseInterval(value string) (Rule, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("interval value %q is not a whole number of minutes", value)
	}
	if minutes <= 0 {
		return nil, fmt.Errorf("interval must be at least 1 minute, got %d", minutes)
	}
	return IntervalRule{Every: time.Duration(minutes) * time.Minute}, nil
}

// CronRule evaluates a 5-field cron expression. Only the minute and
// hour fields are honored; day-of-month, month, and day-of-week are
// accepted syntactically but not evaluated. This is a documented
// limitation carried over from the recurrence model, not an oversight.
type CronRule struct {
	raw       string
	minute    int
	hour      int
	anyMinute bool
	anyHour   bool
}

func (r CronRule) Next(base time.Time) time.Time {
	minute := base.Minute()
	if !r.anyMinute {
		minute = r.minute
	}
	hour := base.Hour()
	if !r.anyHour {
		hour = r.hour
	}

	next := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
	if !next.After(base) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns the original expression.
func (r CronRule) String() string {
	return r.raw
}

func parseCron(expr string) (Rule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression %q must have exactly 5 fields (minute hour day month weekday)", expr)
	}

	rule := CronRule{raw: expr, anyMinute: true, anyHour: true}

	if fields[0] != "*" {
		minute, err := strconv.Atoi(fields[0])
		if err != nil || minute < 0 || minute > 59 {
			return nil, fmt.Errorf("cron minute field %q must be * or 0-59", fields[0])
		}
		rule.minute = minute
		rule.anyMinute = false
	}
	if fields[1] != "*" {
		hour, err := strconv.Atoi(fields[1])
		if err != nil || hour < 0 || hour > 23 {
			return nil, fmt.Errorf("cron hour field %q must be * or 0-23", fields[1])
		}
		rule.hour = hour
		rule.anyHour = false
	}

	return rule, nil
}
