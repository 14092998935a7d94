package recurrence

import (
	"testing"
	"time"
)

func TestParseFreqOnly(t *testing.T) {
	tests := []struct {
		input string
		freq  Freq
	}{
		{"FREQ=DAILY", Daily},
		{"FREQ=WEEKLY", Weekly},
		{"FREQ=MONTHLY", Monthly},
		{"FREQ=YEARLY", Yearly},
	}

	for _, tt := range tests {
		r, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.input, err)
			continue
		}
		if r.Freq != tt.freq {
			t.Errorf("Parse(%q).Freq = %d, want %d", tt.input, r.Freq, tt.freq)
		}
		if r.Interval != 1 {
			t.Errorf("Parse(%q).Interval = %d, want 1", tt.input, r.Interval)
		}
	}
}

func TestParseWithByDayAndInterval(t *testing.T) {
	r, err := Parse("FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE,FR")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if r.Interval != 2 {
		t.Errorf("Interval = %d, want 2", r.Interval)
	}
	want := []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	if len(r.ByDay) != len(want) {
		t.Fatalf("ByDay len = %d, want %d", len(r.ByDay), len(want))
	}
	for i, d := range r.ByDay {
		if d != want[i] {
			t.Errorf("ByDay[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestParseWithUntil(t *testing.T) {
	r, err := Parse("FREQ=DAILY;UNTIL=20261231T000000Z")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if r.Until == nil {
		t.Fatal("Until is nil")
	}
	want := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	if !r.Until.Equal(want) {
		t.Errorf("Until = %v, want %v", r.Until, want)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"FREQ=HOURLY",
		"INTERVAL=2",
		"FREQ=WEEKLY;BYDAY=XX",
		"FREQ=WEEKLY;INTERVAL=0",
		"FREQ=MONTHLY;BYMONTHDAY=32",
		"FREQ=DAILY;COUNT=0",
		"FREQ=DAILY;UNTIL=soon",
		"garbage",
	}
	for _, input := range tests {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should fail", input)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	inputs := []string{
		"FREQ=DAILY",
		"FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE",
		"FREQ=MONTHLY;BYMONTHDAY=15",
		"FREQ=DAILY;COUNT=10",
		"FREQ=WEEKLY;BYDAY=SU;UNTIL=20270101T000000Z",
	}
	for _, input := range inputs {
		r, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if got := r.String(); got != input {
			t.Errorf("round trip %q -> %q", input, got)
		}
	}
}

func TestValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past := start.AddDate(0, -1, 0)
	future := start.AddDate(0, 6, 0)

	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"daily ok", Rule{Freq: Daily, Interval: 1}, false},
		{"zero interval", Rule{Freq: Daily}, true},
		{"weekly without days", Rule{Freq: Weekly, Interval: 1}, true},
		{"weekly with days", Rule{Freq: Weekly, Interval: 1, ByDay: []time.Weekday{time.Sunday}}, false},
		{"until before start", Rule{Freq: Daily, Interval: 1, Until: &past}, true},
		{"until after start", Rule{Freq: Daily, Interval: 1, Until: &future}, false},
		{"count and until", Rule{Freq: Daily, Interval: 1, Count: 5, Until: &future}, true},
	}

	for _, tt := range tests {
		err := tt.rule.Validate(start)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestDescribe(t *testing.T) {
	r := Rule{Freq: Weekly, Interval: 2, ByDay: []time.Weekday{time.Sunday, time.Wednesday}}
	want := "Repeats every 2 weeks on Sun, Wed"
	if got := r.Describe(); got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
