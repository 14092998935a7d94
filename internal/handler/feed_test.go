package handler

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cadenza-app/cadenza/internal/cache"
	"github.com/cadenza-app/cadenza/internal/database"
	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

type feedFixture struct {
	db       *sql.DB
	mux      *http.ServeMux
	church   *model.Church
	sub      *model.Subscription
	event    *model.Event
	musician *model.Musician
}

func setupFeedTest(t *testing.T) *feedFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewFeedHandler(db, cache.New(time.Minute), 180, "https://cadenza.example", logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /feeds/{token}", h.Calendar)
	mux.HandleFunc("GET /feeds/{token}/calendar.ics", h.Calendar)
	mux.HandleFunc("GET /feeds/{token}/schedule", h.Schedule)

	church, err := store.NewChurchStore(db).Create("St. Cecilia", "America/Chicago")
	if err != nil {
		t.Fatalf("create church: %v", err)
	}

	start := time.Now().AddDate(0, 0, 7)
	event, err := store.NewEventStore(db).Create(&model.Event{
		ChurchID:    church.ID,
		Name:        "Choral Evensong",
		Description: "Lent II",
		Location:    "Sanctuary",
		StartsAt:    start,
		EndsAt:      start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	musician, err := store.NewMusicianStore(db).Create(church.ID, "Alice", "Organ", "alice@example.com", "")
	if err != nil {
		t.Fatalf("create musician: %v", err)
	}
	if _, err := store.NewAssignmentStore(db).Create(event.ID, "Organist", &musician.ID, nil); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if _, err := store.NewAssignmentStore(db).Create(event.ID, "Cantor", nil, nil); err != nil {
		t.Fatalf("create open slot: %v", err)
	}

	sub, err := store.NewSubscriptionStore(db).Create(&model.Subscription{
		ChurchID:   church.ID,
		Name:       "Full Schedule",
		Token:      "feedtesttoken",
		FilterType: model.FilterAll,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	return &feedFixture{db: db, mux: mux, church: church, sub: sub, event: event, musician: musician}
}

func (f *feedFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestFeedUnknownTokenIs404(t *testing.T) {
	f := setupFeedTest(t)

	rec := f.get(t, "/feeds/nosuchtoken.ics")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestFeedServesCalendar(t *testing.T) {
	f := setupFeedTest(t)

	rec := f.get(t, "/feeds/feedtesttoken.ics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	if alias := f.get(t, "/feeds/feedtesttoken/calendar.ics"); alias.Code != http.StatusOK {
		t.Errorf("calendar.ics path: status = %d", alias.Code)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n") {
		t.Error("missing calendar envelope")
	}
	if !strings.Contains(body, "SUMMARY:Choral Evensong") {
		t.Error("missing event summary")
	}
	if !strings.Contains(body, "TZID=America/Chicago") {
		t.Error("missing church timezone")
	}
	if !strings.Contains(body, "Organist: Alice Organ") {
		t.Error("missing roster entry")
	}
	if !strings.Contains(body, "Cantor: (open)") {
		t.Error("missing open position")
	}
}

func TestFeedExcludesTentative(t *testing.T) {
	f := setupFeedTest(t)

	start := time.Now().AddDate(0, 0, 3)
	if _, err := store.NewEventStore(f.db).Create(&model.Event{
		ChurchID: f.church.ID,
		Name:     "Draft Concert",
		StartsAt: start,
		EndsAt:   start.Add(time.Hour),
		Status:   model.StatusTentative,
	}); err != nil {
		t.Fatalf("create tentative event: %v", err)
	}

	body := f.get(t, "/feeds/feedtesttoken.ics").Body.String()
	if strings.Contains(body, "Draft Concert") {
		t.Error("tentative event leaked into feed")
	}
}

func TestFeedCachesUntilDirty(t *testing.T) {
	f := setupFeedTest(t)

	first := f.get(t, "/feeds/feedtesttoken.ics")
	if first.Code != http.StatusOK {
		t.Fatalf("first fetch: %d", first.Code)
	}

	// Successful render clears the dirty flag.
	sub, err := store.NewSubscriptionStore(f.db).GetByID(f.sub.ID)
	if err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if sub.NeedsUpdate {
		t.Error("dirty flag not cleared after render")
	}
	if sub.LastUpdated == nil {
		t.Error("last_updated not recorded")
	}

	// A direct row mutation without the dirty flag serves the cached doc.
	events := store.NewEventStore(f.db)
	f.event.Name = "Renamed Evensong"
	if _, err := events.Update(f.event); err != nil {
		t.Fatalf("update event: %v", err)
	}
	cached := f.get(t, "/feeds/feedtesttoken.ics").Body.String()
	if strings.Contains(cached, "Renamed Evensong") {
		t.Error("expected cached document, got a rebuild")
	}

	// Marking dirty forces a rebuild past the cache.
	if err := store.NewSubscriptionStore(f.db).MarkDirtyForChurch(f.church.ID); err != nil {
		t.Fatalf("mark dirty: %v", err)
	}
	fresh := f.get(t, "/feeds/feedtesttoken.ics").Body.String()
	if !strings.Contains(fresh, "Renamed Evensong") {
		t.Error("dirty subscription served a stale document")
	}
}

func TestScheduleJSON(t *testing.T) {
	f := setupFeedTest(t)

	rec := f.get(t, "/feeds/feedtesttoken/schedule")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Events []struct {
			Name        string `json:"name"`
			Assignments []struct {
				RoleName   string `json:"role_name"`
				MusicianID *int64 `json:"musician_id"`
			} `json:"assignments"`
		} `json:"events"`
		Musicians []model.Musician `json:"musicians"`
		Filter    struct {
			Type string `json:"type"`
		} `json:"filter"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(resp.Events))
	}
	if resp.Events[0].Name != "Choral Evensong" {
		t.Errorf("event name = %q", resp.Events[0].Name)
	}
	if len(resp.Events[0].Assignments) != 2 {
		t.Fatalf("assignments = %d, want 2", len(resp.Events[0].Assignments))
	}

	var openSeen, filledSeen bool
	for _, a := range resp.Events[0].Assignments {
		if a.MusicianID == nil {
			openSeen = true
		} else {
			filledSeen = true
		}
	}
	if !openSeen || !filledSeen {
		t.Error("expected one open and one filled assignment")
	}

	if len(resp.Musicians) != 1 || resp.Musicians[0].FirstName != "Alice" {
		t.Errorf("musicians = %+v", resp.Musicians)
	}
	if resp.Filter.Type != "ALL" {
		t.Errorf("filter type = %q", resp.Filter.Type)
	}
}
