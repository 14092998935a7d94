package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cadenza-app/cadenza/internal/email"
	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/push"
	"github.com/cadenza-app/cadenza/internal/store"
)

type AssignmentHandler struct {
	assignments *store.AssignmentStore
	events      *store.EventStore
	musicians   *store.MusicianStore
	notifier    *push.Notifier
	email       *email.Client
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewAssignmentHandler(db store.DBTX, notifier *push.Notifier, emailClient *email.Client, broadcaster *Broadcaster, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignments: store.NewAssignmentStore(db),
		events:      store.NewEventStore(db),
		musicians:   store.NewMusicianStore(db),
		notifier:    notifier,
		email:       emailClient,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

type assignmentRequest struct {
	EventID    int64  `json:"event_id"`
	RoleName   string `json:"role_name"`
	MusicianID *int64 `json:"musician_id"`
	GroupID    *int64 `json:"group_id"`
}

// Create adds a role slot to an event. Leaving musician_id empty makes an
// open position.
func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.RoleName = strings.TrimSpace(req.RoleName)
	if req.RoleName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role_name is required"})
		return
	}

	event, err := h.events.GetByID(req.EventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if event == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event not found"})
		return
	}

	assignment, err := h.assignments.Create(req.EventID, req.RoleName, req.MusicianID, req.GroupID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if assignment.MusicianID != nil {
		h.notifyOffer(assignment, event)
	}
	h.broadcaster.Changed(event.ChurchID, "assignment", "created", assignment.ID)
	writeJSON(w, http.StatusCreated, assignment)
}

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	assignment, err := h.assignments.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if assignment == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

type assignRequest struct {
	MusicianID int64 `json:"musician_id"`
}

// Assign fills an open slot with a musician and sends them the offer.
// Assigning an already-filled slot is rejected; release it first.
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	existing, err := h.assignments.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}
	if !existing.Open() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "assignment is already filled"})
		return
	}

	musician, err := h.musicians.GetByID(req.MusicianID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if musician == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "musician not found"})
		return
	}

	assignment, err := h.assignments.Assign(id, req.MusicianID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	event, err := h.events.GetByID(assignment.EventID)
	if err == nil && event != nil {
		h.notifyOffer(assignment, event)
		h.broadcaster.Changed(event.ChurchID, "assignment", "updated", id)
	}
	writeJSON(w, http.StatusOK, assignment)
}

// Release reopens a slot, clearing the musician and resetting the status.
func (h *AssignmentHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.assignments.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}

	assignment, err := h.assignments.Release(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if event, err := h.events.GetByID(assignment.EventID); err == nil && event != nil {
		h.broadcaster.Changed(event.ChurchID, "assignment", "updated", id)
	}
	writeJSON(w, http.StatusOK, assignment)
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus records a musician's response to an offer.
func (h *AssignmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	status := model.AssignmentStatus(req.Status)
	if !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	existing, err := h.assignments.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}
	if existing.Open() && status != model.AssignmentPending {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "open slots cannot accept or decline"})
		return
	}

	assignment, err := h.assignments.UpdateStatus(id, status)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if event, err := h.events.GetByID(assignment.EventID); err == nil && event != nil {
		h.broadcaster.Changed(event.ChurchID, "assignment", "updated", id)
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.assignments.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignment not found"})
		return
	}

	if err := h.assignments.Delete(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if event, err := h.events.GetByID(existing.EventID); err == nil && event != nil {
		h.broadcaster.Changed(event.ChurchID, "assignment", "deleted", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// notifyOffer delivers the offer over every channel the musician has:
// web push plus email when they have an address on file. Failures are logged
// and never fail the request.
func (h *AssignmentHandler) notifyOffer(a *model.Assignment, event *model.Event) {
	h.notifier.AssignmentOffered(a, event)

	if a.MusicianID == nil || !h.email.Configured() {
		return
	}
	musician, err := h.musicians.GetByID(*a.MusicianID)
	if err != nil || musician == nil || musician.Email == "" {
		return
	}
	if err := h.email.SendAssignmentOffer(musician.Email, musician.FullName(), a.RoleName, event.Name, event.StartsAt); err != nil {
		h.logger.Error("send assignment offer email", "assignment_id", a.ID, "error", err)
	}
}
