package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamkitdev/streamkit/internal/bus"
	"github.com/streamkitdev/streamkit/internal/command"
	"github.com/streamkitdev/streamkit/internal/event"
	"github.com/streamkitdev/streamkit/internal/pipeline"
	"github.com/streamkitdev/streamkit/internal/rules"
	"github.com/streamkitdev/streamkit/internal/sink"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	bus      *bus.Bus
	pipeline *pipeline.Pipeline
	store    *rules.Store
	hub      *sink.Hub
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(b *bus.Bus, p *pipeline.Pipeline, store *rules.Store, hub *sink.Hub, logger *slog.Logger) http.Handler {
	h := &Handler{bus: b, pipeline: p, store: store, hub: hub, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/chat", h.ingestChat)
	h.mux.HandleFunc("POST /v1/events", h.ingestEvent)
	h.mux.HandleFunc("GET /v1/rules", h.listRules)
	h.mux.HandleFunc("POST /v1/rules/reload", h.reloadRules)
	h.mux.Handle("GET /ws", hub)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return h.logging(h.mux)
}

type chatRequest struct {
	StreamerID string              `json:"streamer_id"`
	Platform   string              `json:"platform"`
	Channel    string              `json:"channel"`
	User       command.UserContext `json:"user"`
	Message    string              `json:"message"`
}

// POST /v1/chat — chat line ingress from platform connectors.
func (h *Handler) ingestChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.StreamerID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "streamer_id and message are required")
		return
	}
	if req.Platform == "" {
		req.Platform = "twitch"
	}

	h.pipeline.HandleChat(req.StreamerID, req.Platform, req.Channel, req.User, req.Message)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// POST /v1/events — generic event ingress (redemptions, follows, scene
// changes, anything a connector forwards).
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if ev.StreamerID == "" || ev.Topic == "" {
		writeError(w, http.StatusBadRequest, "streamerId and topic are required")
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	h.bus.Publish(ev.StreamerID, ev.Topic, ev.Payload)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": ev.ID, "status": "accepted"})
}

// GET /v1/rules?streamer_id= — resolved view of one streamer's rules.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	streamerID := r.URL.Query().Get("streamer_id")
	if streamerID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"streamers": h.store.Streamers()})
		return
	}
	b := h.store.Resolve(streamerID)
	writeJSON(w, http.StatusOK, map[string]any{
		"streamer_id": streamerID,
		"commands":    h.store.CommandsSnapshot(streamerID),
		"automations": b.Automations,
		"moderation":  h.store.Policy(streamerID),
	})
}

// POST /v1/rules/reload — hot-reload rules from disk.
func (h *Handler) reloadRules(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reload(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("http", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
	})
}
