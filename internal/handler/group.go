package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

type GroupHandler struct {
	groups    *store.GroupStore
	musicians *store.MusicianStore
	logger    *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, ms *store.MusicianStore, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: gs, musicians: ms, logger: logger}
}

type groupRequest struct {
	ChurchID int64  `json:"church_id"`
	Name     string `json:"name"`
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
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

	group, err := h.groups.Create(req.ChurchID, req.Name)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	churchID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid church id"})
		return
	}

	groups, err := h.groups.ListByChurch(churchID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// Members returns the group's roster as full musician records.
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	group, err := h.groups.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if group == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "group not found"})
		return
	}

	ids, err := h.groups.MemberIDs(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	byID, err := h.musicians.ListByIDs(ids)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	members := make([]model.Musician, 0, len(ids))
	for _, mid := range ids {
		if m, ok := byID[mid]; ok {
			members = append(members, m)
		}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	musicianID, err := strconv.ParseInt(r.PathValue("musicianID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid musician id"})
		return
	}

	group, err := h.groups.GetByID(groupID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if group == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "group not found"})
		return
	}
	musician, err := h.musicians.GetByID(musicianID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if musician == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "musician not found"})
		return
	}
	if musician.ChurchID != group.ChurchID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "musician belongs to a different church"})
		return
	}

	if err := h.groups.AddMember(groupID, musicianID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	musicianID, err := strconv.ParseInt(r.PathValue("musicianID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid musician id"})
		return
	}

	if err := h.groups.RemoveMember(groupID, musicianID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.groups.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "group not found"})
		return
	}

	if err := h.groups.Delete(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
