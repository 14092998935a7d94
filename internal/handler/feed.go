package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cadenza-app/cadenza/internal/cache"
	"github.com/cadenza-app/cadenza/internal/feed"
	"github.com/cadenza-app/cadenza/internal/ics"
	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

// FeedHandler serves subscription feeds. The token in the URL is the only
// credential; unknown tokens get a bare 404 with no hint of whether the
// token ever existed.
type FeedHandler struct {
	subscriptions *store.SubscriptionStore
	churches      *store.ChurchStore
	assignments   *store.AssignmentStore
	musicians     *store.MusicianStore
	music         *store.MusicStore
	documents     *store.DocumentStore
	selector      *feed.Selector
	feedCache     *cache.Cache
	horizon       time.Duration
	baseURL       string
	logger        *slog.Logger
}

func NewFeedHandler(db store.DBTX, feedCache *cache.Cache, horizonDays int, baseURL string, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		subscriptions: store.NewSubscriptionStore(db),
		churches:      store.NewChurchStore(db),
		assignments:   store.NewAssignmentStore(db),
		musicians:     store.NewMusicianStore(db),
		music:         store.NewMusicStore(db),
		documents:     store.NewDocumentStore(db),
		selector:      feed.NewSelector(db),
		feedCache:     feedCache,
		horizon:       time.Duration(horizonDays) * 24 * time.Hour,
		baseURL:       baseURL,
		logger:        logger,
	}
}

// Calendar handles GET /feeds/{token}.ics. Documents regenerate lazily: a
// clean subscription serves from cache, a dirty one rebuilds and clears its
// flag.
func (h *FeedHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSuffix(r.PathValue("token"), ".ics")

	sub, err := h.subscriptions.GetByToken(token)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if sub == nil {
		http.NotFound(w, r)
		return
	}

	if !sub.NeedsUpdate {
		if doc, ok := h.feedCache.Get(sub.Token); ok {
			serveCalendar(w, doc)
			return
		}
	}

	doc, err := h.render(sub)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.feedCache.Set(sub.Token, doc)
	if err := h.subscriptions.ClearDirty(sub.ID, time.Now()); err != nil {
		h.logger.Error("clear subscription dirty flag", "subscription_id", sub.ID, "error", err)
	}
	serveCalendar(w, doc)
}

func serveCalendar(w http.ResponseWriter, doc string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(doc))
}

func (h *FeedHandler) render(sub *model.Subscription) (string, error) {
	events, err := h.selector.Select(sub, time.Now(), h.horizon)
	if err != nil {
		return "", err
	}

	church, err := h.churches.GetByID(sub.ChurchID)
	if err != nil {
		return "", err
	}
	tzid := ""
	calName := sub.Name
	if church != nil {
		tzid = church.Timezone
		if calName == "" {
			calName = church.Name
		}
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	assignmentsByEvent, err := h.assignments.ListByEvents(ids)
	if err != nil {
		return "", err
	}
	musicByEvent, err := h.music.ListByEvents(ids)
	if err != nil {
		return "", err
	}
	partNames, err := h.servicePartNames(sub.ChurchID)
	if err != nil {
		return "", err
	}
	musicianNames, err := h.musicianNames(assignmentsByEvent)
	if err != nil {
		return "", err
	}

	now := time.Now()
	cal := ics.Calendar{Name: calName, TZID: tzid}
	for _, e := range events {
		docsURL, err := h.documentsURL(e.ID)
		if err != nil {
			return "", err
		}

		cal.Events = append(cal.Events, ics.VEvent{
			UID:      ics.UID(e.ID, e.UpdatedAt),
			Summary:  ics.Sanitize(e.Name),
			Location: ics.Sanitize(e.Location),
			Status:   string(e.Status),
			Start:    e.StartsAt,
			End:      e.EndsAt,
			TZID:     tzid,
			DTStamp:  now,
			Description: ics.ComposeDescription(
				e.Description,
				rosterEntries(assignmentsByEvent[e.ID], musicianNames),
				musicEntries(musicByEvent[e.ID], partNames),
				docsURL,
			),
		})
	}
	return cal.Render(), nil
}

func (h *FeedHandler) servicePartNames(churchID int64) (map[int64]string, error) {
	parts, err := h.music.ListServiceParts(churchID)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(parts))
	for _, p := range parts {
		names[p.ID] = p.Name
	}
	return names, nil
}

func (h *FeedHandler) musicianNames(byEvent map[int64][]model.Assignment) (map[int64]string, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, assignments := range byEvent {
		for _, a := range assignments {
			if a.MusicianID != nil && !seen[*a.MusicianID] {
				seen[*a.MusicianID] = true
				ids = append(ids, *a.MusicianID)
			}
		}
	}

	musicians, err := h.musicians.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(musicians))
	for id, m := range musicians {
		names[id] = m.FullName()
	}
	return names, nil
}

// documentsURL returns the event's document-page link when it has documents.
// Feeds never embed storage URLs; the page resolves fresh time-limited links
// on view.
func (h *FeedHandler) documentsURL(eventID int64) (string, error) {
	docs, err := h.documents.ListByEvent(eventID)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return h.baseURL + "/events/" + formatID(eventID) + "/documents", nil
}

func rosterEntries(assignments []model.Assignment, names map[int64]string) []ics.RosterEntry {
	var out []ics.RosterEntry
	for _, a := range assignments {
		entry := ics.RosterEntry{Role: a.RoleName, Open: a.Open()}
		if a.MusicianID != nil {
			entry.Name = names[*a.MusicianID]
		}
		out = append(out, entry)
	}
	return out
}

func musicEntries(items []model.MusicItem, partNames map[int64]string) []ics.MusicEntry {
	var out []ics.MusicEntry
	for _, m := range items {
		entry := ics.MusicEntry{Title: m.Title}
		if m.ServicePartID != nil {
			entry.Part = partNames[*m.ServicePartID]
		}
		out = append(out, entry)
	}
	return out
}

// scheduleResponse is the JSON rendition of a feed for the public schedule
// page. Open positions surface as assignments with a null musician.
type scheduleResponse struct {
	Events    []scheduleEvent  `json:"events"`
	Musicians []model.Musician `json:"musicians"`
	Filter    scheduleFilter   `json:"filter"`
	TimeRange scheduleRange    `json:"time_range"`
}

type scheduleEvent struct {
	model.Event
	Assignments []model.Assignment `json:"assignments"`
	Music       []model.MusicItem  `json:"music"`
}

type scheduleFilter struct {
	Type model.FilterType `json:"type"`
	IDs  []int64          `json:"ids"`
}

type scheduleRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Schedule handles GET /feeds/{token}/schedule, the same selection as the
// calendar feed rendered as JSON for the public schedule page.
func (h *FeedHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.GetByToken(r.PathValue("token"))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if sub == nil {
		http.NotFound(w, r)
		return
	}

	now := time.Now()
	events, err := h.selector.Select(sub, now, h.horizon)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	assignmentsByEvent, err := h.assignments.ListByEvents(ids)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	musicByEvent, err := h.music.ListByEvents(ids)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	seen := make(map[int64]bool)
	var musicianIDs []int64
	out := scheduleResponse{
		Events:    make([]scheduleEvent, 0, len(events)),
		Musicians: []model.Musician{},
		Filter:    scheduleFilter{Type: sub.FilterType, IDs: sub.FilterIDs},
	}
	for _, e := range events {
		assignments := assignmentsByEvent[e.ID]
		if assignments == nil {
			assignments = []model.Assignment{}
		}
		music := musicByEvent[e.ID]
		if music == nil {
			music = []model.MusicItem{}
		}
		out.Events = append(out.Events, scheduleEvent{Event: e, Assignments: assignments, Music: music})

		for _, a := range assignments {
			if a.MusicianID != nil && !seen[*a.MusicianID] {
				seen[*a.MusicianID] = true
				musicianIDs = append(musicianIDs, *a.MusicianID)
			}
		}
	}

	musicians, err := h.musicians.ListByIDs(musicianIDs)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	for _, id := range musicianIDs {
		if m, ok := musicians[id]; ok {
			out.Musicians = append(out.Musicians, m)
		}
	}

	from := now.Add(-feed.DefaultLookback)
	if sub.WindowStart != nil {
		from = *sub.WindowStart
	}
	to := now.Add(h.horizon)
	if sub.WindowEnd != nil {
		to = *sub.WindowEnd
	}
	out.TimeRange = scheduleRange{From: from, To: to}

	writeJSON(w, http.StatusOK, out)
}
