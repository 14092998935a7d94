package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cadenza-app/cadenza/internal/cache"
	"github.com/cadenza-app/cadenza/internal/feed"
	"github.com/cadenza-app/cadenza/internal/series"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/websocket"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDomainError maps service-layer errors onto HTTP statuses. Validation
// problems are the caller's to fix; conflicts report the blocking events so
// the client can offer a forced retry.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *series.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": verr.Msg})
		return
	}
	var cerr *series.ConflictError
	if errors.As(err, &cerr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     cerr.Msg,
			"event_ids": cerr.EventIDs,
		})
		return
	}
	var ferr *feed.TooManyEventsError
	if errors.As(err, &ferr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": ferr.Error(),
			"count": ferr.Count,
			"limit": ferr.Limit,
		})
		return
	}
	logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// Broadcaster fans event-data mutations out to everything that watches:
// feed subscriptions go dirty so their next fetch regenerates, and connected
// admin clients get a live update over the websocket hub.
type Broadcaster struct {
	subscriptions *store.SubscriptionStore
	hub           *websocket.Hub
	feedCache     *cache.Cache
	logger        *slog.Logger
}

func NewBroadcaster(subs *store.SubscriptionStore, hub *websocket.Hub, feedCache *cache.Cache, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{subscriptions: subs, hub: hub, feedCache: feedCache, logger: logger}
}

// Changed records a mutation to calendar data for one church.
func (b *Broadcaster) Changed(churchID int64, entity, action string, id int64) {
	if err := b.subscriptions.MarkDirtyForChurch(churchID); err != nil {
		b.logger.Error("mark subscriptions dirty", "church_id", churchID, "error", err)
	}
	b.hub.Broadcast(churchID, websocket.NewMessage(entity, action, id, nil))
}

// InvalidateFeed drops one token's cached feed document.
func (b *Broadcaster) InvalidateFeed(token string) {
	b.feedCache.Invalidate(token)
}
