package schedule

import (
	"testing"
	"time"
)

func TestParseInterval(t *testing.T) {
	rule, err := Parse(KindInterval, "60")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	base := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	next := rule.Next(base)
	want := base.Add(60 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", base, next, want)
	}
}

func TestParseInterval_FiveMinutesFromCreation(t *testing.T) {
	rule, err := Parse(KindInterval, "5")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := rule.Next(created)
	want := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", created, next, want)
	}
}

func TestParseInterval_Invalid(t *testing.T) {
	for _, value := range []string{"", "abc", "0", "-5", "1.5"} {
		if _, err := Parse(KindInterval, value); err == nil {
			t.Errorf("Parse(interval, %q): expected error", value)
		}
	}
}

func TestCronNext_BeforeAndAfterTarget(t *testing.T) {
	rule, err := Parse(KindCron, "0 2 * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Before 02:00: fires today at 02:00.
	base := time.Date(2024, 3, 15, 1, 15, 0, 0, time.UTC)
	next := rule.Next(base)
	want := time.Date(2024, 3, 15, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", base, next, want)
	}

	// After 02:00: fires tomorrow at 02:00.
	base = time.Date(2024, 3, 15, 9, 45, 0, 0, time.UTC)
	next = rule.Next(base)
	want = time.Date(2024, 3, 16, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", base, next, want)
	}
}

func TestCronNext_ExactlyAtTarget(t *testing.T) {
	rule, err := Parse(KindCron, "30 4 * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// At exactly 04:30 the moment is not in the future, so the next
	// firing is tomorrow.
	base := time.Date(2024, 3, 15, 4, 30, 0, 0, time.UTC)
	next := rule.Next(base)
	want := time.Date(2024, 3, 16, 4, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", base, next, want)
	}
}

func TestCronNext_WildcardHour(t *testing.T) {
	rule, err := Parse(KindCron, "15 * * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	base := time.Date(2024, 3, 15, 10, 5, 0, 0, time.UTC)
	next := rule.Next(base)
	want := time.Date(2024, 3, 15, 10, 15, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", base, next, want)
	}
}

func TestParseCron_Malformed(t *testing.T) {
	cases := []string{
		"",
		"0 2",
		"0 2 * *",
		"0 2 * * * *",
		"61 2 * * *",
		"0 24 * * *",
		"x 2 * * *",
	}
	for _, expr := range cases {
		if _, err := Parse(KindCron, expr); err == nil {
			t.Errorf("Parse(cron, %q): expected error", expr)
		}
	}
}

func TestParseCron_IgnoredFieldsAccepted(t *testing.T) {
	// Day, month, and weekday are accepted but not evaluated.
	if _, err := Parse(KindCron, "0 2 1 6 mon"); err != nil {
		t.Errorf("Parse: unexpected error: %v", err)
	}
}

func TestParse_UnknownKind(t *testing.T) {
	if _, err := Parse("hourly", "1"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
