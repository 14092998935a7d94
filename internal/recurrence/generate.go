package recurrence

import (
	"sort"
	"time"
)

// Hard ceiling on candidates walked per call. Callers always bound output
// with an until instant; this guards against degenerate rules.
const maxCandidates = 10000

// DateKey is the calendar-date identity of an occurrence: the start instant
// rendered as YYYY-MM-DD in the given zone. Two occurrences of one series
// may never share a DateKey.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// CandidatesBetween walks the rule's occurrence starts from seriesStart and
// returns those strictly after `after` and not after `until`, in ascending
// order. The sequence is always finite: it is cut off by `until`, by the
// rule's own end condition (Count counted from seriesStart, or Until),
// whichever comes first.
func (r Rule) CandidatesBetween(seriesStart, after, until time.Time) []time.Time {
	var out []time.Time
	seen := 0

	it := newWalker(r, seriesStart)
	for i := 0; i < maxCandidates; i++ {
		t := it.next()
		if t.IsZero() {
			break
		}
		if r.Until != nil && t.After(*r.Until) {
			break
		}
		seen++
		if r.Count > 0 && seen > r.Count {
			break
		}
		if t.After(until) {
			break
		}
		if t.After(after) {
			out = append(out, t)
		}
	}

	return out
}

// MissingDates computes which occurrence starts between the series start and
// the horizon still need concrete event rows. existing holds the DateKeys
// (in loc) of already-materialized occurrences, including the root's own
// date. The result is sorted, duplicate-free, never exceeds the horizon and
// never exceeds the rule's end condition, so re-running with the same
// horizon yields nothing new.
func MissingDates(r Rule, seriesStart, horizon time.Time, loc *time.Location, existing map[string]bool) []time.Time {
	candidates := r.CandidatesBetween(seriesStart, seriesStart.Add(-time.Second), horizon)

	var out []time.Time
	taken := make(map[string]bool, len(existing))
	for k := range existing {
		taken[k] = true
	}
	for _, t := range candidates {
		key := DateKey(t, loc)
		if taken[key] {
			continue
		}
		taken[key] = true
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// walker yields successive occurrence starts for a rule, beginning with the
// series start itself (or the first on-pattern day at or after it for
// weekly BYDAY rules).
type walker struct {
	rule    Rule
	base    time.Time
	current time.Time
	dayIdx  int
	started bool
}

func newWalker(r Rule, seriesStart time.Time) *walker {
	return &walker{rule: r, base: seriesStart, current: seriesStart}
}

func (w *walker) next() time.Time {
	switch w.rule.Freq {
	case Daily:
		return w.step(0, 0, w.rule.Interval)
	case Weekly:
		if len(w.rule.ByDay) > 0 {
			return w.nextWeeklyByDay()
		}
		return w.step(0, 0, 7*w.rule.Interval)
	case Monthly:
		return w.nextMonthly()
	case Yearly:
		return w.nextYearly()
	}
	return time.Time{}
}

// step advances by a fixed year/month/day delta, emitting the base first.
func (w *walker) step(years, months, days int) time.Time {
	if !w.started {
		w.started = true
		return w.current
	}
	w.current = w.current.AddDate(years, months, days)
	return w.current
}

func (w *walker) nextWeeklyByDay() time.Time {
	if !w.started {
		w.started = true
		w.current = weekStart(w.base)
		w.dayIdx = 0
		return w.seekByDay()
	}

	w.dayIdx++
	if w.dayIdx >= len(w.rule.ByDay) {
		w.advanceWeek()
	}
	return w.seekByDay()
}

func (w *walker) advanceWeek() {
	w.current = weekStart(w.current.AddDate(0, 0, 7*w.rule.Interval))
	w.dayIdx = 0
}

// seekByDay returns the occurrence for the current week and day index,
// skipping any day that falls before the series start.
func (w *walker) seekByDay() time.Time {
	for w.dayIdx < len(w.rule.ByDay) {
		day := w.rule.ByDay[w.dayIdx]
		offset := int(day) - int(time.Monday)
		if offset < 0 {
			offset += 7 // Sunday
		}
		candidate := time.Date(
			w.current.Year(), w.current.Month(), w.current.Day()+offset,
			w.base.Hour(), w.base.Minute(), w.base.Second(), 0,
			w.base.Location(),
		)
		if !candidate.Before(w.base) {
			return candidate
		}
		w.dayIdx++
	}

	// Whole week precedes the series start; move on.
	w.advanceWeek()
	return w.seekByDay()
}

func weekStart(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	monday := t.AddDate(0, 0, -offset)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
}

func (w *walker) nextMonthly() time.Time {
	if !w.started {
		w.started = true
		return w.current
	}

	day := w.rule.ByMonthDay
	if day == 0 {
		day = w.base.Day()
	}

	next := w.current.AddDate(0, w.rule.Interval, 0)
	year, month, _ := next.Date()

	// Months without the target day are skipped (e.g. the 31st).
	for day > daysInMonth(year, month) {
		next = next.AddDate(0, w.rule.Interval, 0)
		year, month, _ = next.Date()
	}

	w.current = time.Date(
		year, month, day,
		w.base.Hour(), w.base.Minute(), w.base.Second(), 0,
		w.base.Location(),
	)
	return w.current
}

func (w *walker) nextYearly() time.Time {
	if !w.started {
		w.started = true
		return w.current
	}

	next := w.current.AddDate(w.rule.Interval, 0, 0)
	// Feb 29 series only land on leap years.
	if w.base.Month() == time.February && w.base.Day() == 29 {
		for next.Day() != 29 {
			next = next.AddDate(w.rule.Interval, 0, 0)
		}
	}

	w.current = next
	return w.current
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
