package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

type MusicianHandler struct {
	musicians *store.MusicianStore
	logger    *slog.Logger
}

func NewMusicianHandler(ms *store.MusicianStore, logger *slog.Logger) *MusicianHandler {
	return &MusicianHandler{musicians: ms, logger: logger}
}

type musicianRequest struct {
	ChurchID  int64  `json:"church_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (h *MusicianHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req musicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" && req.LastName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a name is required"})
		return
	}
	if req.ChurchID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "church_id is required"})
		return
	}

	musician, err := h.musicians.Create(req.ChurchID, req.FirstName, req.LastName, req.Email, req.Phone)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, musician)
}

func (h *MusicianHandler) List(w http.ResponseWriter, r *http.Request) {
	churchID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid church id"})
		return
	}

	musicians, err := h.musicians.ListByChurch(churchID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if musicians == nil {
		musicians = []model.Musician{}
	}
	writeJSON(w, http.StatusOK, musicians)
}

func (h *MusicianHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	musician, err := h.musicians.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if musician == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "musician not found"})
		return
	}
	writeJSON(w, http.StatusOK, musician)
}

func (h *MusicianHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.musicians.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "musician not found"})
		return
	}

	var req musicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	musician, err := h.musicians.Update(id, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName), req.Email, req.Phone)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, musician)
}

func (h *MusicianHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.musicians.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "musician not found"})
		return
	}

	if err := h.musicians.Delete(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
