package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/recurrence"
	"github.com/cadenza-app/cadenza/internal/series"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/tz"
)

type EventHandler struct {
	events       *store.EventStore
	churches     *store.ChurchStore
	assignments  *store.AssignmentStore
	music        *store.MusicStore
	materializer *series.Materializer
	broadcaster  *Broadcaster
	horizonDays  int
	logger       *slog.Logger
}

func NewEventHandler(db store.DBTX, materializer *series.Materializer, broadcaster *Broadcaster, horizonDays int, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		events:       store.NewEventStore(db),
		churches:     store.NewChurchStore(db),
		assignments:  store.NewAssignmentStore(db),
		music:        store.NewMusicStore(db),
		materializer: materializer,
		broadcaster:  broadcaster,
		horizonDays:  horizonDays,
		logger:       logger,
	}
}

type eventRequest struct {
	ChurchID       int64  `json:"church_id"`
	EventTypeID    *int64 `json:"event_type_id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Location       string `json:"location"`
	StartsAt       string `json:"starts_at"`
	EndsAt         string `json:"ends_at"`
	Status         string `json:"status"`
	RecurrenceRule string `json:"recurrence_rule"`
}

// Create makes a standalone event, or a series root when a recurrence rule
// is given. Roots are materialized out to the rolling horizon immediately so
// the series is visible the moment it is created.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "starts_at must be RFC3339 format"})
		return
	}
	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ends_at must be RFC3339 format"})
		return
	}
	if !startsAt.Before(endsAt) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "starts_at must be before ends_at"})
		return
	}

	church, err := h.churches.GetByID(req.ChurchID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if church == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "church not found"})
		return
	}

	status := model.StatusConfirmed
	if req.Status != "" {
		status = model.EventStatus(req.Status)
		if !status.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
			return
		}
	}

	event := &model.Event{
		ChurchID:    req.ChurchID,
		EventTypeID: req.EventTypeID,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Status:      status,
	}

	if req.RecurrenceRule != "" {
		rule, err := recurrence.Parse(req.RecurrenceRule)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid recurrence rule: " + err.Error()})
			return
		}
		loc, err := tz.Location(church.Timezone)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if err := rule.Validate(startsAt.In(loc)); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid recurrence rule: " + err.Error()})
			return
		}
		event.IsRoot = true
		event.IsRecurring = true
		event.RecurrenceRule = rule.String()
	}

	created, err := h.events.Create(event)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if created.IsRecurring {
		horizon := time.Now().AddDate(0, 0, h.horizonDays)
		if _, err := h.materializer.Extend(created.ID, horizon); err != nil {
			h.logger.Error("materialize new series", "root_id", created.ID, "error", err)
		}
	}

	h.broadcaster.Changed(created.ChurchID, "event", "created", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// eventDetail is the full admin view of one event.
type eventDetail struct {
	Event       *model.Event       `json:"event"`
	Assignments []model.Assignment `json:"assignments"`
	Music       []model.MusicItem  `json:"music"`
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	event, err := h.events.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if event == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}

	assignments, err := h.assignments.ListByEvent(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	music, err := h.music.ListByEvent(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if assignments == nil {
		assignments = []model.Assignment{}
	}
	if music == nil {
		music = []model.MusicItem{}
	}
	writeJSON(w, http.StatusOK, eventDetail{Event: event, Assignments: assignments, Music: music})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	churchID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid church id"})
		return
	}

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start and end query parameters are required"})
		return
	}
	start, err := parseFlexibleTime(startStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be RFC3339 or YYYY-MM-DD format"})
		return
	}
	end, err := parseFlexibleTime(endStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be RFC3339 or YYYY-MM-DD format"})
		return
	}

	events, err := h.events.ListByChurch(churchID, start, end)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

type eventUpdateRequest struct {
	Scope       string  `json:"scope"`
	Force       bool    `json:"force"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	EventTypeID *int64  `json:"event_type_id"`
	StartsAt    *string `json:"starts_at"`
	EndsAt      *string `json:"ends_at"`
}

// Update edits an event. Events that belong to a series take a scope
// (ONLY_THIS, THIS_AND_FUTURE, ALL; default ONLY_THIS) and route through the
// series editor so sibling occurrences and the root template stay coherent.
// ALL with "force" also rewrites occurrences pinned by earlier ONLY_THIS
// edits.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.events.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}

	var req eventUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	changes := series.Changes{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		EventTypeID: req.EventTypeID,
	}
	if req.StartsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.StartsAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "starts_at must be RFC3339 format"})
			return
		}
		changes.StartsAt = &t
	}
	if req.EndsAt != nil {
		t, err := time.Parse(time.RFC3339, *req.EndsAt)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ends_at must be RFC3339 format"})
			return
		}
		changes.EndsAt = &t
	}

	scope := model.ScopeOnlyThis
	if req.Scope != "" {
		scope, err = model.ParseEditScope(req.Scope)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	edited, err := h.materializer.EditSeries(id, scope, changes, req.Force)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcaster.Changed(existing.ChurchID, "event", "updated", id)
	writeJSON(w, http.StatusOK, edited)
}

// Cancel marks the event CANCELLED. The event stays in feeds with its status
// so subscribed calendars retract it; rostered musicians are notified.
func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	event, err := h.materializer.Cancel(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcaster.Changed(event.ChurchID, "event", "cancelled", id)
	writeJSON(w, http.StatusOK, event)
}

type extendRequest struct {
	HorizonDays int `json:"horizon_days"`
}

// Extend materializes a series root's missing occurrences. Without a body it
// uses the configured rolling horizon.
func (h *EventHandler) Extend(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	req := extendRequest{HorizonDays: h.horizonDays}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}
	if req.HorizonDays <= 0 || req.HorizonDays > 366 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "horizon_days must be between 1 and 366"})
		return
	}

	created, err := h.materializer.Extend(id, time.Now().AddDate(0, 0, req.HorizonDays))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if created == nil {
		created = []model.Event{}
	}

	if len(created) > 0 {
		h.broadcaster.Changed(created[0].ChurchID, "event", "created", id)
	}
	writeJSON(w, http.StatusOK, created)
}

type shrinkRequest struct {
	Until string `json:"until"`
	Force bool   `json:"force"`
}

// Shrink moves a series' end date earlier, deleting occurrences past the new
// end. Occurrences that musicians already accepted block the shrink with a
// 409 unless force is set.
func (h *EventHandler) Shrink(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req shrinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	until, err := parseFlexibleTime(req.Until)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "until must be RFC3339 or YYYY-MM-DD format"})
		return
	}

	root, err := h.events.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if root == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}

	if err := h.materializer.ShrinkRecurrenceEnd(id, until, req.Force); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcaster.Changed(root.ChurchID, "event", "updated", id)
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes one event row. Deleting a series root leaves its generated
// occurrences in place as standalone events.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.events.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}

	if err := h.events.Delete(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcaster.Changed(existing.ChurchID, "event", "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}
