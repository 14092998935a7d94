package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cadenza-app/cadenza/internal/docstore"
	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

const maxDocumentBytes = 25 << 20 // 25 MiB

type DocumentHandler struct {
	documents   *store.DocumentStore
	events      *store.EventStore
	storage     *docstore.Store
	broadcaster *Broadcaster
	logger      *slog.Logger
}

func NewDocumentHandler(db store.DBTX, storage *docstore.Store, broadcaster *Broadcaster, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		documents:   store.NewDocumentStore(db),
		events:      store.NewEventStore(db),
		storage:     storage,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (h *DocumentHandler) storageConfigured(w http.ResponseWriter) bool {
	if h.storage == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "document storage is not configured"})
		return false
	}
	return true
}

// Upload handles POST /api/events/{id}/documents with a multipart form
// carrying one "file" field.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.storageConfigured(w) {
		return
	}

	eventID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event id"})
		return
	}

	event, err := h.events.GetByID(eventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if event == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a file field is required"})
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == "/" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid filename"})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := docstore.Key(eventID, filename)
	if err := h.storage.Upload(r.Context(), key, contentType, file, header.Size); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	doc, err := h.documents.Create(eventID, filename, key, contentType, header.Size)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	h.broadcaster.Changed(event.ChurchID, "document", "created", doc.ID)
	writeJSON(w, http.StatusCreated, doc)
}

// documentResponse pairs a document record with a fresh time-limited
// download URL.
type documentResponse struct {
	model.Document
	URL string `json:"url"`
}

// List handles GET /events/{id}/documents, the page feed descriptions link
// to. Every response carries freshly presigned URLs so stale links never
// outlive their TTL.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.storageConfigured(w) {
		return
	}

	eventID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid event id"})
		return
	}

	event, err := h.events.GetByID(eventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if event == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event not found"})
		return
	}

	docs, err := h.documents.ListByEvent(eventID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	forceDownload := r.URL.Query().Get("download") == "1"
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		url, err := h.storage.TimeLimitedURL(r.Context(), d.StorageKey, 15*time.Minute, forceDownload, d.Filename)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		out = append(out, documentResponse{Document: d, URL: url})
	}

	// Calendar clients link people here from feed descriptions, so a
	// browser gets a plain listing page instead of JSON.
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := documentPage.Execute(w, documentPageData{EventName: event.Name, Documents: out}); err != nil {
			h.logger.Error("render document page", "event_id", eventID, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type documentPageData struct {
	EventName string
	Documents []documentResponse
}

var documentPage = template.Must(template.New("documents").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.EventName}} documents</title></head>
<body>
<h1>{{.EventName}}</h1>
{{if .Documents}}<ul>
{{range .Documents}}<li><a href="{{.URL}}">{{.Filename}}</a></li>
{{end}}</ul>{{else}}<p>No documents attached.</p>{{end}}
</body>
</html>
`))

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.storageConfigured(w) {
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	doc, err := h.documents.GetByID(id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	if err := h.storage.Delete(r.Context(), doc.StorageKey); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := h.documents.Delete(id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if event, err := h.events.GetByID(doc.EventID); err == nil && event != nil {
		h.broadcaster.Changed(event.ChurchID, "document", "deleted", id)
	}
	w.WriteHeader(http.StatusNoContent)
}
