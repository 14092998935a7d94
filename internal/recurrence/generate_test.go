package recurrence

import (
	"testing"
	"time"

	"github.com/teambition/rrule-go"
)

func TestCandidatesDaily(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	horizon := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	r := Rule{Freq: Daily, Interval: 1}
	got := r.CandidatesBetween(start, start.Add(-time.Second), horizon)

	if len(got) != 4 {
		t.Fatalf("got %d candidates, want 4", len(got))
	}
	for i, c := range got {
		want := start.AddDate(0, 0, i)
		if !c.Equal(want) {
			t.Errorf("candidate[%d] = %v, want %v", i, c, want)
		}
	}
}

func TestCandidatesRespectCount(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	horizon := start.AddDate(1, 0, 0)

	r := Rule{Freq: Daily, Interval: 1, Count: 3}
	got := r.CandidatesBetween(start, start.Add(-time.Second), horizon)
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
}

func TestCandidatesRespectUntil(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 3, 23, 0, 0, 0, time.UTC)
	horizon := start.AddDate(1, 0, 0)

	r := Rule{Freq: Daily, Interval: 1, Until: &until}
	got := r.CandidatesBetween(start, start.Add(-time.Second), horizon)
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	for _, c := range got {
		if c.After(until) {
			t.Errorf("candidate %v exceeds until %v", c, until)
		}
	}
}

func TestCandidatesHorizonBound(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	horizon := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	r := Rule{Freq: Weekly, Interval: 1, ByDay: []time.Weekday{time.Sunday}}
	got := r.CandidatesBetween(start, start.Add(-time.Second), horizon)

	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	for i, c := range got {
		if c.After(horizon) {
			t.Errorf("candidate %v exceeds horizon", c)
		}
		if c.Before(start) {
			t.Errorf("candidate %v precedes series start", c)
		}
		if i > 0 && !got[i-1].Before(c) {
			t.Errorf("candidates not strictly ascending at %d", i)
		}
	}
}

func TestCandidatesAfterIsExclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	horizon := start.AddDate(0, 0, 10)

	r := Rule{Freq: Daily, Interval: 1}
	got := r.CandidatesBetween(start, start.AddDate(0, 0, 3), horizon)
	if len(got) == 0 {
		t.Fatal("expected candidates")
	}
	if want := start.AddDate(0, 0, 4); !got[0].Equal(want) {
		t.Errorf("first candidate = %v, want %v", got[0], want)
	}
}

func TestWeeklyByDaySkipsDaysBeforeStart(t *testing.T) {
	// Series starts on a Wednesday; the Monday of that week must not appear.
	start := time.Date(2026, 3, 4, 19, 30, 0, 0, time.UTC) // Wednesday
	horizon := start.AddDate(0, 0, 14)

	r := Rule{Freq: Weekly, Interval: 1, ByDay: []time.Weekday{time.Monday, time.Wednesday}}
	got := r.CandidatesBetween(start, start.Add(-time.Second), horizon)

	if !got[0].Equal(start) {
		t.Errorf("first candidate = %v, want series start %v", got[0], start)
	}
	if want := time.Date(2026, 3, 9, 19, 30, 0, 0, time.UTC); !got[1].Equal(want) {
		t.Errorf("second candidate = %v, want next Monday %v", got[1], want)
	}
}

func TestMissingDatesSkipsExisting(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) // Sunday
	horizon := start.AddDate(0, 0, 28)
	r := Rule{Freq: Weekly, Interval: 1, ByDay: []time.Weekday{time.Sunday}}

	existing := map[string]bool{
		DateKey(start, time.UTC):                  true,
		DateKey(start.AddDate(0, 0, 7), time.UTC): true,
	}

	got := MissingDates(r, start, horizon, time.UTC, existing)
	if len(got) != 3 {
		t.Fatalf("got %d missing dates, want 3", len(got))
	}
	if want := start.AddDate(0, 0, 14); !got[0].Equal(want) {
		t.Errorf("first missing = %v, want %v", got[0], want)
	}
}

func TestMissingDatesIdempotent(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	horizon := start.AddDate(0, 1, 0)
	r := Rule{Freq: Daily, Interval: 2}

	existing := map[string]bool{DateKey(start, time.UTC): true}
	first := MissingDates(r, start, horizon, time.UTC, existing)
	if len(first) == 0 {
		t.Fatal("expected missing dates on first run")
	}

	for _, d := range first {
		existing[DateKey(d, time.UTC)] = true
	}
	second := MissingDates(r, start, horizon, time.UTC, existing)
	if len(second) != 0 {
		t.Fatalf("second run produced %d dates, want 0", len(second))
	}
}

func TestMissingDatesNoDuplicates(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	horizon := start.AddDate(0, 2, 0)
	r := Rule{Freq: Weekly, Interval: 1, ByDay: []time.Weekday{time.Sunday, time.Wednesday}}

	got := MissingDates(r, start, horizon, time.UTC, nil)
	seen := make(map[string]bool)
	for _, d := range got {
		key := DateKey(d, time.UTC)
		if seen[key] {
			t.Errorf("duplicate date %s", key)
		}
		seen[key] = true
	}
}

func TestMissingDatesEmptyWhenSeriesEnded(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	until := start.AddDate(0, 0, 2)
	horizon := start.AddDate(0, 6, 0)
	r := Rule{Freq: Daily, Interval: 1, Until: &until}

	existing := map[string]bool{
		DateKey(start, time.UTC):                  true,
		DateKey(start.AddDate(0, 0, 1), time.UTC): true,
		DateKey(start.AddDate(0, 0, 2), time.UTC): true,
	}
	got := MissingDates(r, start, horizon, time.UTC, existing)
	if len(got) != 0 {
		t.Fatalf("got %d dates for an exhausted series, want 0", len(got))
	}
}

func TestWeeklyKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 2026-03-08 is the US spring-forward date.
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, loc) // Sunday 10:00 local
	horizon := start.AddDate(0, 1, 0)

	r := Rule{Freq: Weekly, Interval: 1, ByDay: []time.Weekday{time.Sunday}}
	got := r.CandidatesBetween(start, start.Add(-time.Second), horizon)

	if len(got) < 3 {
		t.Fatalf("got %d candidates, want at least 3", len(got))
	}
	for _, c := range got {
		if c.In(loc).Hour() != 10 {
			t.Errorf("occurrence %v is at %02d:00 local, want 10:00", c, c.In(loc).Hour())
		}
	}
}

// Cross-check the walker against rrule-go on rules where both libraries
// define identical semantics.
func TestCandidatesMatchRRuleGo(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // Monday
	horizon := start.AddDate(0, 3, 0)

	tests := []struct {
		name string
		rule Rule
		opt  rrule.ROption
	}{
		{
			"daily",
			Rule{Freq: Daily, Interval: 1},
			rrule.ROption{Freq: rrule.DAILY, Dtstart: start},
		},
		{
			"every third day",
			Rule{Freq: Daily, Interval: 3},
			rrule.ROption{Freq: rrule.DAILY, Interval: 3, Dtstart: start},
		},
		{
			"biweekly monday and wednesday",
			Rule{Freq: Weekly, Interval: 2, ByDay: []time.Weekday{time.Monday, time.Wednesday}},
			rrule.ROption{Freq: rrule.WEEKLY, Interval: 2, Byweekday: []rrule.Weekday{rrule.MO, rrule.WE}, Dtstart: start},
		},
		{
			"monthly on start day",
			Rule{Freq: Monthly, Interval: 1},
			rrule.ROption{Freq: rrule.MONTHLY, Dtstart: start},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, err := rrule.NewRRule(tt.opt)
			if err != nil {
				t.Fatalf("rrule: %v", err)
			}
			want := rr.Between(start, horizon, true)
			got := tt.rule.CandidatesBetween(start, start.Add(-time.Second), horizon)

			if len(got) != len(want) {
				t.Fatalf("got %d candidates, rrule-go produced %d", len(got), len(want))
			}
			for i := range got {
				if !got[i].Equal(want[i]) {
					t.Errorf("candidate[%d] = %v, rrule-go says %v", i, got[i], want[i])
				}
			}
		})
	}
}
