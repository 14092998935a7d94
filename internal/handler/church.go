package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/tz"
)

type ChurchHandler struct {
	churches *store.ChurchStore
	logger   *slog.Logger
}

func NewChurchHandler(cs *store.ChurchStore, logger *slog.Logger) *ChurchHandler {
	return &ChurchHandler{churches: cs, logger: logger}
}

type churchRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

func (h *ChurchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req churchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Timezone != "" {
		if _, err := tz.Location(req.Timezone); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown timezone"})
			return
		}
	}

	church, err := h.churches.Create(req.Name, req.Timezone)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, church)
}

func (h *ChurchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	church, err := h.churches.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if church == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "church not found"})
		return
	}
	writeJSON(w, http.StatusOK, church)
}

type timezoneRequest struct {
	Timezone string `json:"timezone"`
}

// UpdateTimezone changes the church's zone. Existing events keep their
// stored instants; only future materialization and feed rendering pick up
// the new zone.
func (h *ChurchHandler) UpdateTimezone(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req timezoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if _, err := tz.Location(req.Timezone); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown timezone"})
		return
	}

	church, err := h.churches.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if church == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "church not found"})
		return
	}

	if err := h.churches.UpdateTimezone(id, req.Timezone); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	church, err = h.churches.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, church)
}
