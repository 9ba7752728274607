// Package httpapi exposes the reading assessment state over a local
// JSON API, serving dashboards and admin tooling.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/gateway"
	"github.com/iqralabs/iqra/internal/mirror"
	"github.com/iqralabs/iqra/internal/progress"
	"github.com/iqralabs/iqra/internal/syncer"
)

// Handler bundles the API endpoints over the persistence gateway and
// the sync coordinator. Writes run on the update loop so they never
// interleave with inbound remote reconciliation.
type Handler struct {
	gw      *gateway.Gateway
	loop    *syncer.Loop
	tracker *progress.Tracker
	coord   *syncer.Coordinator
}

// NewHandler creates the endpoint set.
func NewHandler(gw *gateway.Gateway, loop *syncer.Loop, tracker *progress.Tracker, coord *syncer.Coordinator) *Handler {
	return &Handler{gw: gw, loop: loop, tracker: tracker, coord: coord}
}

func jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

// save runs a gateway write on the update loop, serialized against
// inbound remote snapshots.
func (h *Handler) save(fn func() error) error {
	var saveErr error
	if err := h.loop.Do(func() { saveErr = fn() }); err != nil {
		return err
	}
	return saveErr
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]any{
		"status": "ok",
		"cloud":  h.coord.Status().State,
	}, http.StatusOK)
}

// === History and progress ===

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history := h.gw.History()
	if history == nil {
		history = []exam.Result{}
	}
	jsonResponse(w, history, http.StatusOK)
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = "en"
	}
	parsed, err := exam.ParseLanguage(lang)
	if err != nil {
		errorResponse(w, "unrecognized language tag", http.StatusBadRequest)
		return
	}
	jsonResponse(w, h.tracker.Progress(parsed), http.StatusOK)
}

// === News ===

func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	news := h.gw.News()
	if news == nil {
		news = []exam.NewsItem{}
	}
	jsonResponse(w, news, http.StatusOK)
}

func (h *Handler) PutNews(w http.ResponseWriter, r *http.Request) {
	var items []exam.NewsItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		errorResponse(w, "malformed news payload", http.StatusBadRequest)
		return
	}
	if err := h.save(func() error { return h.gw.SaveNews(items) }); err != nil {
		errorResponse(w, "saving news failed", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, items, http.StatusOK)
}

// === Settings ===

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, ok := h.gw.Settings()
	if !ok {
		errorResponse(w, "no settings stored", http.StatusNotFound)
		return
	}
	jsonResponse(w, settings, http.StatusOK)
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings exam.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		errorResponse(w, "malformed settings payload", http.StatusBadRequest)
		return
	}
	if err := h.save(func() error { return h.gw.SaveSettings(settings) }); err != nil {
		errorResponse(w, "saving settings failed", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, settings, http.StatusOK)
}

// === Cloud mirror ===

func (h *Handler) GetCloudStatus(w http.ResponseWriter, r *http.Request) {
	status := h.coord.Status()
	jsonResponse(w, map[string]any{
		"state":     status.State,
		"lastError": status.LastError,
		"category":  status.Category,
	}, http.StatusOK)
}

func (h *Handler) ConnectCloud(w http.ResponseWriter, r *http.Request) {
	var cfg mirror.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		errorResponse(w, "malformed mirror config", http.StatusBadRequest)
		return
	}
	if err := h.coord.Connect(r.Context(), cfg); err != nil {
		status := http.StatusBadGateway
		switch mirror.Classify(err) {
		case mirror.CategoryInvalidKey:
			status = http.StatusUnauthorized
		case mirror.CategoryDuplicateSession:
			status = http.StatusConflict
		}
		if cfg.Validate() != nil {
			status = http.StatusBadRequest
		}
		errorResponse(w, err.Error(), status)
		return
	}
	h.GetCloudStatus(w, r)
}

func (h *Handler) DisconnectCloud(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.Disconnect(); err != nil {
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.GetCloudStatus(w, r)
}
