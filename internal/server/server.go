// Package server wires stores, services, and handlers into the HTTP API.
package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/cadenza-app/cadenza/internal/cache"
	"github.com/cadenza-app/cadenza/internal/config"
	"github.com/cadenza-app/cadenza/internal/docstore"
	"github.com/cadenza-app/cadenza/internal/email"
	"github.com/cadenza-app/cadenza/internal/handler"
	"github.com/cadenza-app/cadenza/internal/middleware"
	"github.com/cadenza-app/cadenza/internal/push"
	"github.com/cadenza-app/cadenza/internal/series"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/websocket"
)

type Server struct {
	db          *sql.DB
	logger      *slog.Logger
	hub         *websocket.Hub
	rateLimiter *middleware.RateLimiter

	churchH       *handler.ChurchHandler
	musicianH     *handler.MusicianHandler
	groupH        *handler.GroupHandler
	eventTypeH    *handler.EventTypeHandler
	eventH        *handler.EventHandler
	assignmentH   *handler.AssignmentHandler
	musicH        *handler.MusicHandler
	subscriptionH *handler.SubscriptionHandler
	feedH         *handler.FeedHandler
	documentH     *handler.DocumentHandler
	pushH         *handler.PushHandler
}

// Deps carries the services the server composes but does not own.
type Deps struct {
	Materializer *series.Materializer
	Notifier     *push.Notifier
	PushService  *push.Service
	Email        *email.Client
	Storage      *docstore.Store
	FeedCache    *cache.Cache
	Hub          *websocket.Hub
}

func New(db *sql.DB, cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	subscriptions := store.NewSubscriptionStore(db)
	broadcaster := handler.NewBroadcaster(subscriptions, deps.Hub, deps.FeedCache, logger)

	return &Server{
		db:          db,
		logger:      logger,
		hub:         deps.Hub,
		rateLimiter: middleware.NewRateLimiter(),

		churchH:       handler.NewChurchHandler(store.NewChurchStore(db), logger),
		musicianH:     handler.NewMusicianHandler(store.NewMusicianStore(db), logger),
		groupH:        handler.NewGroupHandler(store.NewGroupStore(db), store.NewMusicianStore(db), logger),
		eventTypeH:    handler.NewEventTypeHandler(store.NewEventTypeStore(db), logger),
		eventH:        handler.NewEventHandler(db, deps.Materializer, broadcaster, cfg.Feed.HorizonDays, logger),
		assignmentH:   handler.NewAssignmentHandler(db, deps.Notifier, deps.Email, broadcaster, logger),
		musicH:        handler.NewMusicHandler(db, broadcaster, logger),
		subscriptionH: handler.NewSubscriptionHandler(subscriptions, broadcaster, cfg.Server.BaseURL, logger),
		feedH:         handler.NewFeedHandler(db, deps.FeedCache, cfg.Feed.HorizonDays, cfg.Server.BaseURL, logger),
		documentH:     handler.NewDocumentHandler(db, deps.Storage, broadcaster, logger),
		pushH:         handler.NewPushHandler(store.NewPushStore(db), deps.PushService, logger),
	}
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Public, token-gated surfaces. Rate limited per IP since the token is
	// the only credential.
	mux.HandleFunc("GET /feeds/{token}", s.rateLimited(s.feedH.Calendar))
	mux.HandleFunc("GET /feeds/{token}/calendar.ics", s.rateLimited(s.feedH.Calendar))
	mux.HandleFunc("GET /feeds/{token}/schedule", s.rateLimited(s.feedH.Schedule))
	mux.HandleFunc("GET /events/{id}/documents", s.rateLimited(s.documentH.List))

	mux.Handle("GET /ws/{churchID}", websocket.HandleWebSocket(s.hub, s.logger))

	s.registerAPIRoutes(mux)

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Churches
	mux.HandleFunc("POST /api/churches", s.churchH.Create)
	mux.HandleFunc("GET /api/churches/{id}", s.churchH.Get)
	mux.HandleFunc("PUT /api/churches/{id}/timezone", s.churchH.UpdateTimezone)

	// Musicians
	mux.HandleFunc("POST /api/musicians", s.musicianH.Create)
	mux.HandleFunc("GET /api/churches/{id}/musicians", s.musicianH.List)
	mux.HandleFunc("GET /api/musicians/{id}", s.musicianH.Get)
	mux.HandleFunc("PUT /api/musicians/{id}", s.musicianH.Update)
	mux.HandleFunc("DELETE /api/musicians/{id}", s.musicianH.Delete)

	// Groups
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("GET /api/churches/{id}/groups", s.groupH.List)
	mux.HandleFunc("GET /api/groups/{id}/members", s.groupH.Members)
	mux.HandleFunc("PUT /api/groups/{id}/members/{musicianID}", s.groupH.AddMember)
	mux.HandleFunc("DELETE /api/groups/{id}/members/{musicianID}", s.groupH.RemoveMember)
	mux.HandleFunc("DELETE /api/groups/{id}", s.groupH.Delete)

	// Event types
	mux.HandleFunc("POST /api/event-types", s.eventTypeH.Create)
	mux.HandleFunc("GET /api/churches/{id}/event-types", s.eventTypeH.List)
	mux.HandleFunc("DELETE /api/event-types/{id}", s.eventTypeH.Delete)

	// Events and series operations
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/churches/{id}/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("POST /api/events/{id}/cancel", s.eventH.Cancel)
	mux.HandleFunc("POST /api/events/{id}/extend", s.eventH.Extend)
	mux.HandleFunc("PUT /api/events/{id}/recurrence-end", s.eventH.Shrink)

	// Assignments
	mux.HandleFunc("POST /api/assignments", s.assignmentH.Create)
	mux.HandleFunc("GET /api/assignments/{id}", s.assignmentH.Get)
	mux.HandleFunc("POST /api/assignments/{id}/assign", s.assignmentH.Assign)
	mux.HandleFunc("POST /api/assignments/{id}/release", s.assignmentH.Release)
	mux.HandleFunc("PUT /api/assignments/{id}/status", s.assignmentH.UpdateStatus)
	mux.HandleFunc("DELETE /api/assignments/{id}", s.assignmentH.Delete)

	// Music
	mux.HandleFunc("POST /api/service-parts", s.musicH.CreateServicePart)
	mux.HandleFunc("GET /api/churches/{id}/service-parts", s.musicH.ListServiceParts)
	mux.HandleFunc("POST /api/music-items", s.musicH.CreateItem)
	mux.HandleFunc("GET /api/events/{id}/music", s.musicH.ListItems)
	mux.HandleFunc("PUT /api/music-items/{id}", s.musicH.UpdateItem)
	mux.HandleFunc("DELETE /api/music-items/{id}", s.musicH.DeleteItem)

	// Feed subscriptions
	mux.HandleFunc("POST /api/subscriptions", s.subscriptionH.Create)
	mux.HandleFunc("GET /api/churches/{id}/subscriptions", s.subscriptionH.List)
	mux.HandleFunc("GET /api/subscriptions/{id}", s.subscriptionH.Get)
	mux.HandleFunc("POST /api/subscriptions/{id}/regenerate", s.subscriptionH.Regenerate)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.subscriptionH.Delete)

	// Documents
	mux.HandleFunc("POST /api/events/{id}/documents", s.documentH.Upload)
	mux.HandleFunc("DELETE /api/documents/{id}", s.documentH.Delete)

	// Web push
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(middleware.RealIP(r), 60, time.Minute) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		h(w, r)
	}
}
