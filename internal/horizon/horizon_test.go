package horizon

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cadenza-app/cadenza/internal/database"
	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/series"
	"github.com/cadenza-app/cadenza/internal/store"
)

func setupTest(t *testing.T) (*sql.DB, *series.Materializer, int64) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := series.NewMaterializer(db, logger, series.Hooks{})

	church, err := store.NewChurchStore(db).Create("St. Cecilia", "America/New_York")
	if err != nil {
		t.Fatalf("create church: %v", err)
	}
	return db, m, church.ID
}

func createDailyRoot(t *testing.T, db *sql.DB, churchID int64, rule string) *model.Event {
	t.Helper()
	start := time.Now().Add(-time.Hour)
	root, err := store.NewEventStore(db).Create(&model.Event{
		ChurchID:       churchID,
		Name:           "Morning Prayer",
		StartsAt:       start,
		EndsAt:         start.Add(30 * time.Minute),
		IsRoot:         true,
		IsRecurring:    true,
		RecurrenceRule: rule,
	})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	return root
}

func TestNewSchedulerRejectsBadCronSpec(t *testing.T) {
	db, m, _ := setupTest(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewScheduler(db, m, "not a cron spec", 180, logger); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
	if _, err := NewScheduler(db, m, "17 3 * * *", 180, logger); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestRunOnceExtendsAllRoots(t *testing.T) {
	db, m, churchID := setupTest(t)
	root := createDailyRoot(t, db, churchID, "FREQ=DAILY")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := NewScheduler(db, m, "17 3 * * *", 7, logger)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	occurrences, err := store.NewEventStore(db).ListSeries(root.ID)
	if err != nil {
		t.Fatalf("list series: %v", err)
	}
	// One occurrence per day after the root's own date, out to the horizon.
	if len(occurrences) != 7 {
		t.Fatalf("occurrences = %d, want 7", len(occurrences))
	}

	// A second run finds nothing missing.
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	again, _ := store.NewEventStore(db).ListSeries(root.ID)
	if len(again) != 7 {
		t.Fatalf("occurrences after rerun = %d, want 7", len(again))
	}
}

func TestRunOnceContinuesPastFailingSeries(t *testing.T) {
	db, m, churchID := setupTest(t)
	// The store never validates rule syntax; a root written with a rule the
	// generator cannot parse must not block other series.
	bad := createDailyRoot(t, db, churchID, "FREQ=FORTNIGHTLY")
	good := createDailyRoot(t, db, churchID, "FREQ=DAILY")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := NewScheduler(db, m, "17 3 * * *", 7, logger)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	err = s.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error from bad series")
	}

	events := store.NewEventStore(db)
	badSeries, _ := events.ListSeries(bad.ID)
	if len(badSeries) != 0 {
		t.Errorf("bad series generated %d occurrences, want 0", len(badSeries))
	}
	goodSeries, _ := events.ListSeries(good.ID)
	if len(goodSeries) != 7 {
		t.Errorf("good series generated %d occurrences, want 7", len(goodSeries))
	}
}
