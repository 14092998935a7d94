package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

type MusicHandler struct {
	music       *store.MusicStore
	events      *store.EventStore
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewMusicHandler(db store.DBTX, broadcaster *Broadcaster, logger *slog.Logger) *MusicHandler {
	return &MusicHandler{
		music:       store.NewMusicStore(db),
		events:      store.NewEventStore(db),
		broadcaster: broadcaster,
		logger:      logger,
	}
}

type servicePartRequest struct {
	ChurchID  int64  `json:"church_id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (h *MusicHandler) CreateServicePart(w http.ResponseWriter, r *http.Request) {
	var req servicePartRequest
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

	part, err := h.music.CreateServicePart(req.ChurchID, req.Name, req.SortOrder)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, part)
}

func (h *MusicHandler) ListServiceParts(w http.ResponseWriter, r *http.Request) {
	churchID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid church id"})
		return
	}

	parts, err := h.music.ListServiceParts(churchID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if parts == nil {
		parts = []model.ServicePart{}
	}
	writeJSON(w, http.StatusOK, parts)
}

type musicItemRequest struct {
	EventID       int64  `json:"event_id"`
	ServicePartID *int64 `json:"service_part_id"`
	Title         string `json:"title"`
	Notes         string `json:"notes"`
}

// CreateItem adds a piece to an event's music list. An empty title is
// allowed; it marks the slot as planned but unchosen.
func (h *MusicHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req musicItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
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
	if req.ServicePartID != nil {
		part, err := h.music.GetServicePart(*req.ServicePartID)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if part == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service part not found"})
			return
		}
	}

	item, err := h.music.CreateItem(req.EventID, req.ServicePartID, strings.TrimSpace(req.Title), req.Notes)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcaster.Changed(event.ChurchID, "music_item", "created", item.ID)
	writeJSON(w, http.StatusCreated, item)
}

func (h *MusicHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event id"})
		return
	}

	items, err := h.music.ListByEvent(eventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []model.MusicItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MusicHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.music.GetItem(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "music item not found"})
		return
	}

	var req musicItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	item, err := h.music.UpdateItem(id, req.ServicePartID, strings.TrimSpace(req.Title), req.Notes)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if event, err := h.events.GetByID(item.EventID); err == nil && event != nil {
		h.broadcaster.Changed(event.ChurchID, "music_item", "updated", id)
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *MusicHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.music.GetItem(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "music item not found"})
		return
	}

	if err := h.music.DeleteItem(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if event, err := h.events.GetByID(existing.EventID); err == nil && event != nil {
		h.broadcaster.Changed(event.ChurchID, "music_item", "deleted", id)
	}
	w.WriteHeader(http.StatusNoContent)
}
