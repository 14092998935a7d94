package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

type SubscriptionHandler struct {
	subscriptions *store.SubscriptionStore
	broadcaster   *Broadcaster
	baseURL       string
	logger        *slog.Logger
}

func NewSubscriptionHandler(ss *store.SubscriptionStore, broadcaster *Broadcaster, baseURL string, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: ss, broadcaster: broadcaster, baseURL: baseURL, logger: logger}
}

type subscriptionRequest struct {
	ChurchID    int64   `json:"church_id"`
	Name        string  `json:"name"`
	FilterType  string  `json:"filter_type"`
	FilterIDs   []int64 `json:"filter_ids"`
	WindowStart *string `json:"window_start"`
	WindowEnd   *string `json:"window_end"`
}

// subscriptionResponse wraps a subscription with its ready-to-paste feed URL.
type subscriptionResponse struct {
	*model.Subscription
	FeedURL string `json:"feed_url"`
}

func (h *SubscriptionHandler) respond(sub *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		Subscription: sub,
		FeedURL:      h.baseURL + "/feeds/" + sub.Token + ".ics",
	}
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
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

	filterType := model.FilterAll
	if req.FilterType != "" {
		var err error
		filterType, err = model.ParseFilterType(req.FilterType)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	if filterType.RequiresIDs() && len(req.FilterIDs) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "filter_ids is required for this filter type"})
		return
	}

	sub := &model.Subscription{
		ChurchID:   req.ChurchID,
		Name:       req.Name,
		Token:      newToken(),
		FilterType: filterType,
		FilterIDs:  req.FilterIDs,
	}
	if req.WindowStart != nil {
		t, err := parseFlexibleTime(*req.WindowStart)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window_start must be RFC3339 or YYYY-MM-DD format"})
			return
		}
		sub.WindowStart = &t
	}
	if req.WindowEnd != nil {
		t, err := parseFlexibleTime(*req.WindowEnd)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window_end must be RFC3339 or YYYY-MM-DD format"})
			return
		}
		sub.WindowEnd = &t
	}
	if sub.WindowStart != nil && sub.WindowEnd != nil && !sub.WindowStart.Before(*sub.WindowEnd) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window_start must be before window_end"})
		return
	}

	created, err := h.subscriptions.Create(sub)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.respond(created))
}

func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	churchID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid church id"})
		return
	}

	subs, err := h.subscriptions.ListByChurch(churchID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, h.respond(&subs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	sub, err := h.subscriptions.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
		return
	}
	writeJSON(w, http.StatusOK, h.respond(sub))
}

// Regenerate replaces the subscription's token. The old feed URL stops
// working immediately; anything cached under it is dropped.
func (h *SubscriptionHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.subscriptions.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
		return
	}

	sub, err := h.subscriptions.Regenerate(id, newToken())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
		return
	}

	h.broadcaster.InvalidateFeed(existing.Token)
	h.logger.Info("feed token regenerated", "subscription_id", id)
	writeJSON(w, http.StatusOK, h.respond(sub))
}

func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.subscriptions.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
		return
	}

	if err := h.subscriptions.Delete(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcaster.InvalidateFeed(existing.Token)
	w.WriteHeader(http.StatusNoContent)
}
