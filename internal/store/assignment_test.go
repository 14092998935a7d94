package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/cadenza-app/cadenza/internal/model"
)

func testEvent(t *testing.T, db *sql.DB, churchID int64, name string) *model.Event {
	t.Helper()
	start := time.Date(2026, 4, 5, 15, 0, 0, 0, time.UTC)
	event, err := NewEventStore(db).Create(&model.Event{
		ChurchID: churchID, Name: name, StartsAt: start, EndsAt: start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

func TestAssignmentCreateOpenSlot(t *testing.T) {
	db := setupTestDB(t)
	church := testChurch(t, db)
	event := testEvent(t, db, church.ID, "Easter Vigil")
	s := NewAssignmentStore(db)

	a, err := s.Create(event.ID, "Organist", nil, nil)
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if !a.Open() {
		t.Error("assignment with no musician should be open")
	}
	if a.Status != model.AssignmentPending {
		t.Errorf("status = %q, want PENDING", a.Status)
	}
}

func TestAssignRejectsFilledSlot(t *testing.T) {
	db := setupTestDB(t)
	church := testChurch(t, db)
	event := testEvent(t, db, church.ID, "Evensong")
	musicians := NewMusicianStore(db)
	s := NewAssignmentStore(db)

	alice, err := musicians.Create(church.ID, "Alice", "Organ", "alice@example.com", "")
	if err != nil {
		t.Fatalf("create musician: %v", err)
	}
	bob, err := musicians.Create(church.ID, "Bob", "Trumpet", "bob@example.com", "")
	if err != nil {
		t.Fatalf("create musician: %v", err)
	}

	slot, err := s.Create(event.ID, "Organist", nil, nil)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	got, err := s.Assign(slot.ID, alice.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.MusicianID == nil || *got.MusicianID != alice.ID {
		t.Fatalf("musician_id = %v, want %d", got.MusicianID, alice.ID)
	}

	if _, err := s.Assign(slot.ID, bob.ID); err == nil {
		t.Fatal("expected error assigning a filled slot")
	}
}

func TestReleaseReopensSlot(t *testing.T) {
	db := setupTestDB(t)
	church := testChurch(t, db)
	event := testEvent(t, db, church.ID, "Lessons and Carols")
	musicians := NewMusicianStore(db)
	s := NewAssignmentStore(db)

	alice, _ := musicians.Create(church.ID, "Alice", "Organ", "alice@example.com", "")
	slot, _ := s.Create(event.ID, "Organist", nil, nil)
	if _, err := s.Assign(slot.ID, alice.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := s.UpdateStatus(slot.ID, model.AssignmentAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	released, err := s.Release(slot.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released.Open() {
		t.Error("released slot should be open")
	}
	if released.Status != model.AssignmentPending {
		t.Errorf("status = %q, want PENDING after release", released.Status)
	}
}

func TestCloneForEventResetsStatus(t *testing.T) {
	db := setupTestDB(t)
	church := testChurch(t, db)
	src := testEvent(t, db, church.ID, "Root Service")
	dst := testEvent(t, db, church.ID, "Occurrence")
	musicians := NewMusicianStore(db)
	s := NewAssignmentStore(db)

	alice, _ := musicians.Create(church.ID, "Alice", "Organ", "alice@example.com", "")
	slot, _ := s.Create(src.ID, "Organist", nil, nil)
	if _, err := s.Assign(slot.ID, alice.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := s.UpdateStatus(slot.ID, model.AssignmentAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := s.Create(src.ID, "Cantor", nil, nil); err != nil {
		t.Fatalf("create open slot: %v", err)
	}

	if err := s.CloneForEvent(src.ID, dst.ID); err != nil {
		t.Fatalf("clone: %v", err)
	}

	cloned, err := s.ListByEvent(dst.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cloned) != 2 {
		t.Fatalf("got %d cloned assignments, want 2", len(cloned))
	}
	for _, a := range cloned {
		// Clones keep the roster but never carry over accept/decline state.
		if a.Status != model.AssignmentPending {
			t.Errorf("%s: status = %q, want PENDING", a.RoleName, a.Status)
		}
	}
}

func TestEventsWithAcceptedAssignments(t *testing.T) {
	db := setupTestDB(t)
	church := testChurch(t, db)
	e1 := testEvent(t, db, church.ID, "One")
	e2 := testEvent(t, db, church.ID, "Two")
	e3 := testEvent(t, db, church.ID, "Three")
	musicians := NewMusicianStore(db)
	s := NewAssignmentStore(db)

	alice, _ := musicians.Create(church.ID, "Alice", "Organ", "alice@example.com", "")

	a1, _ := s.Create(e1.ID, "Organist", &alice.ID, nil)
	if _, err := s.UpdateStatus(a1.ID, model.AssignmentAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
	a2, _ := s.Create(e2.ID, "Organist", &alice.ID, nil)
	if _, err := s.UpdateStatus(a2.ID, model.AssignmentDeclined); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if _, err := s.Create(e3.ID, "Organist", nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.EventsWithAcceptedAssignments([]int64{e1.ID, e2.ID, e3.ID})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0] != e1.ID {
		t.Errorf("got %v, want [%d]", got, e1.ID)
	}
}
