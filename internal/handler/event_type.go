package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

type EventTypeHandler struct {
	eventTypes *store.EventTypeStore
	logger     *slog.Logger
}

func NewEventTypeHandler(ts *store.EventTypeStore, logger *slog.Logger) *EventTypeHandler {
	return &EventTypeHandler{eventTypes: ts, logger: logger}
}

type eventTypeRequest struct {
	ChurchID int64  `json:"church_id"`
	Name     string `json:"name"`
}

func (h *EventTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.ChurchID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "church_id is required"})
		return
	}

	eventType, err := h.eventTypes.Create(req.ChurchID, req.Name)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventType)
}

func (h *EventTypeHandler) List(w http.ResponseWriter, r *http.Request) {
	churchID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid church id"})
		return
	}

	types, err := h.eventTypes.ListByChurch(churchID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if types == nil {
		types = []model.EventType{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *EventTypeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.eventTypes.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event type not found"})
		return
	}

	if err := h.eventTypes.Delete(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
