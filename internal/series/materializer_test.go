package series

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cadenza-app/cadenza/internal/database"
	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

func setupTest(t *testing.T) (*sql.DB, *Materializer, *model.Church) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMaterializer(db, logger, Hooks{})

	church, err := store.NewChurchStore(db).Create("Grace Cathedral", "America/Chicago")
	if err != nil {
		t.Fatalf("create church: %v", err)
	}
	return db, m, church
}

func createWeeklyRoot(t *testing.T, db *sql.DB, churchID int64) *model.Event {
	t.Helper()
	// 2026-03-01 is a Sunday; 10:00 Chicago wall clock.
	loc, _ := time.LoadLocation("America/Chicago")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, loc)
	root, err := store.NewEventStore(db).Create(&model.Event{
		ChurchID:       churchID,
		Name:           "Sunday Service",
		Location:       "Sanctuary",
		StartsAt:       start,
		EndsAt:         start.Add(90 * time.Minute),
		IsRoot:         true,
		IsRecurring:    true,
		RecurrenceRule: "FREQ=WEEKLY;BYDAY=SU",
	})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	return root
}

func TestExtendMaterializesToHorizon(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)

	horizon := root.StartsAt.AddDate(0, 0, 28)
	created, err := m.Extend(root.ID, horizon)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	// Root holds Mar 1; occurrences fill Mar 8, 15, 22, 29.
	if len(created) != 4 {
		t.Fatalf("created %d occurrences, want 4", len(created))
	}
	for _, occ := range created {
		if occ.IsRoot || occ.IsRecurring {
			t.Errorf("occurrence %d carries root flags", occ.ID)
		}
		if occ.GeneratedFrom == nil || *occ.GeneratedFrom != root.ID {
			t.Errorf("occurrence %d not linked to root", occ.ID)
		}
		if occ.Duration() != 90*time.Minute {
			t.Errorf("occurrence %d duration = %v, want 90m", occ.ID, occ.Duration())
		}
	}
	if created[0].OccurrenceDate != "2026-03-08" {
		t.Errorf("first occurrence date = %q, want 2026-03-08", created[0].OccurrenceDate)
	}
}

func TestExtendIsIdempotent(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)

	horizon := root.StartsAt.AddDate(0, 0, 28)
	if _, err := m.Extend(root.ID, horizon); err != nil {
		t.Fatalf("first extend: %v", err)
	}
	again, err := m.Extend(root.ID, horizon)
	if err != nil {
		t.Fatalf("second extend: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second extend created %d occurrences, want 0", len(again))
	}

	// A longer horizon only fills the gap.
	more, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 42))
	if err != nil {
		t.Fatalf("third extend: %v", err)
	}
	if len(more) != 2 {
		t.Fatalf("gap fill created %d occurrences, want 2", len(more))
	}
}

func TestExtendKeepsWallClockAcrossDST(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)

	// US DST starts 2026-03-08. Every occurrence must stay at 10:00 local.
	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 21))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	loc, _ := time.LoadLocation("America/Chicago")
	for _, occ := range created {
		local := occ.StartsAt.In(loc)
		if local.Hour() != 10 || local.Minute() != 0 {
			t.Errorf("occurrence %s starts at %02d:%02d local, want 10:00",
				occ.OccurrenceDate, local.Hour(), local.Minute())
		}
	}
}

func TestExtendClonesRosterAndMusic(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)

	musicians := store.NewMusicianStore(db)
	assignments := store.NewAssignmentStore(db)
	music := store.NewMusicStore(db)

	alice, _ := musicians.Create(church.ID, "Alice", "Organ", "alice@example.com", "")
	slot, _ := assignments.Create(root.ID, "Organist", &alice.ID, nil)
	if _, err := assignments.UpdateStatus(slot.ID, model.AssignmentAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	prelude, _ := music.CreateServicePart(church.ID, "Prelude", 1)
	if _, err := music.CreateItem(root.ID, &prelude.ID, "Toccata in D minor", ""); err != nil {
		t.Fatalf("create music item: %v", err)
	}

	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d occurrences, want 1", len(created))
	}

	cloned, err := assignments.ListByEvent(created[0].ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(cloned) != 1 {
		t.Fatalf("got %d assignments, want 1", len(cloned))
	}
	if cloned[0].Status != model.AssignmentPending {
		t.Errorf("cloned status = %q, want PENDING", cloned[0].Status)
	}
	if cloned[0].MusicianID == nil || *cloned[0].MusicianID != alice.ID {
		t.Error("cloned assignment lost its musician")
	}

	items, err := music.ListByEvent(created[0].ID)
	if err != nil {
		t.Fatalf("list music: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Toccata in D minor" {
		t.Errorf("cloned music = %+v", items)
	}
}

func TestExtendRejectsNonRoot(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)
	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}

	var vErr *ValidationError
	if _, err := m.Extend(created[0].ID, root.StartsAt.AddDate(0, 0, 14)); !errors.As(err, &vErr) {
		t.Fatalf("extending an occurrence: got %v, want ValidationError", err)
	}
}

func TestEditOnlyThisPinsOccurrence(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)
	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 21))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}

	special := "Youth Sunday"
	if _, err := m.EditSeries(created[1].ID, model.ScopeOnlyThis, Changes{Name: &special}, false); err != nil {
		t.Fatalf("edit only this: %v", err)
	}

	// A later bulk rename leaves the pinned occurrence alone.
	renamed := "Morning Worship"
	if _, err := m.EditSeries(root.ID, model.ScopeAll, Changes{Name: &renamed}, false); err != nil {
		t.Fatalf("edit all: %v", err)
	}

	events := store.NewEventStore(db)
	pinned, _ := events.GetByID(created[1].ID)
	if pinned.Name != special {
		t.Errorf("pinned occurrence renamed to %q", pinned.Name)
	}
	if !pinned.IsModified {
		t.Error("pinned occurrence not flagged modified")
	}
	other, _ := events.GetByID(created[0].ID)
	if other.Name != renamed {
		t.Errorf("sibling name = %q, want %q", other.Name, renamed)
	}
	gotRoot, _ := events.GetByID(root.ID)
	if gotRoot.Name != renamed {
		t.Errorf("root name = %q, want %q", gotRoot.Name, renamed)
	}
}

func TestEditAllForcedOverridesPins(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)
	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 21))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}

	special := "Youth Sunday"
	if _, err := m.EditSeries(created[1].ID, model.ScopeOnlyThis, Changes{Name: &special}, false); err != nil {
		t.Fatalf("edit only this: %v", err)
	}

	renamed := "Morning Worship"
	if _, err := m.EditSeries(root.ID, model.ScopeAll, Changes{Name: &renamed}, true); err != nil {
		t.Fatalf("forced edit all: %v", err)
	}

	pinned, _ := store.NewEventStore(db).GetByID(created[1].ID)
	if pinned.Name != renamed {
		t.Errorf("forced rename skipped pinned occurrence, name = %q", pinned.Name)
	}
}

func TestEditThisAndFutureLeavesPast(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)
	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 28))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}

	newLoc := "Chapel"
	edited, err := m.EditSeries(created[2].ID, model.ScopeThisAndFuture, Changes{Location: &newLoc}, false)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	// Target plus the one occurrence after it.
	if len(edited) != 2 {
		t.Fatalf("edited %d events, want 2", len(edited))
	}

	events := store.NewEventStore(db)
	before, _ := events.GetByID(created[0].ID)
	if before.Location != "Sanctuary" {
		t.Errorf("past occurrence moved to %q", before.Location)
	}
	after, _ := events.GetByID(created[3].ID)
	if after.Location != "Chapel" {
		t.Errorf("future occurrence location = %q, want Chapel", after.Location)
	}
}

func TestEditShiftsStartAcrossScope(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)
	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}

	// Move the whole series half an hour later.
	newStart := root.StartsAt.Add(30 * time.Minute)
	if _, err := m.EditSeries(root.ID, model.ScopeAll, Changes{StartsAt: &newStart}, false); err != nil {
		t.Fatalf("edit: %v", err)
	}

	events := store.NewEventStore(db)
	occ, _ := events.GetByID(created[0].ID)
	loc, _ := time.LoadLocation("America/Chicago")
	local := occ.StartsAt.In(loc)
	if local.Hour() != 10 || local.Minute() != 30 {
		t.Errorf("occurrence starts %02d:%02d local, want 10:30", local.Hour(), local.Minute())
	}
	if occ.Duration() != 90*time.Minute {
		t.Errorf("duration = %v, want unchanged 90m", occ.Duration())
	}
}

func TestShrinkBlocksOnAcceptedAssignments(t *testing.T) {
	db, m, church := setupTest(t)
	root := createWeeklyRoot(t, db, church.ID)
	created, err := m.Extend(root.ID, root.StartsAt.AddDate(0, 0, 28))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}

	musicians := store.NewMusicianStore(db)
	assignments := store.NewAssignmentStore(db)
	alice, _ := musicians.Create(church.ID, "Alice", "Organ", "alice@example.com", "")
	last := created[len(created)-1]
	slot, _ := assignments.Create(last.ID, "Organist", &alice.ID, nil)
	if _, err := assignments.UpdateStatus(slot.ID, model.AssignmentAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	cutoff := root.StartsAt.AddDate(0, 0, 14)
	err = m.ShrinkRecurrenceEnd(root.ID, cutoff, false)
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("got %v, want ConflictError", err)
	}
	if len(cErr.EventIDs) != 1 || cErr.EventIDs[0] != last.ID {
		t.Errorf("conflict event ids = %v, want [%d]", cErr.EventIDs, last.ID)
	}

	// Forcing goes through: trailing occurrences drop, rule gains UNTIL.
	if err := m.ShrinkRecurrenceEnd(root.ID, cutoff, true); err != nil {
		t.Fatalf("forced shrink: %v", err)
	}
	events := store.NewEventStore(db)
	gone, _ := events.GetByID(last.ID)
	if gone != nil {
		t.Error("occurrence past cutoff survived forced shrink")
	}
	kept, _ := events.GetByID(created[0].ID)
	if kept == nil {
		t.Error("occurrence before cutoff was deleted")
	}
	gotRoot, _ := events.GetByID(root.ID)
	if !strings.Contains(gotRoot.RecurrenceRule, "UNTIL=") {
		t.Errorf("rule = %q, want UNTIL clause", gotRoot.RecurrenceRule)
	}
}

func TestCancelFiresHook(t *testing.T) {
	db, _, church := setupTest(t)

	var notified *model.Event
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMaterializer(db, logger, Hooks{
		EventCancelled: func(e *model.Event) { notified = e },
	})

	root := createWeeklyRoot(t, db, church.ID)
	cancelled, err := m.Cancel(root.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("status = %q, want CANCELLED", cancelled.Status)
	}
	if notified == nil || notified.ID != root.ID {
		t.Fatal("cancellation hook did not fire")
	}
	// The hook sees the event after the transition, not a stale read.
	if notified.Status != model.StatusCancelled {
		t.Errorf("hook event status = %q, want CANCELLED", notified.Status)
	}
}
