package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wastewise/disposal-assistant/internal/config"
	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/core/ports"
)

type Router struct {
	dialogue ports.DialogueService
	metrics  http.Handler
	logger   *slog.Logger
}

func NewRouter(dialogue ports.DialogueService, metrics http.Handler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		dialogue: dialogue,
		metrics:  metrics,
		logger:   logger,
	}
}

func (rt *Router) Handler(cfg config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/turns", rt.postTurn)
	mux.HandleFunc("/v1/sessions/", rt.sessionHistory)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, cfg.APIRateLimitRPS, cfg.APIRateLimitBurst)
	handler = backpressureMiddleware(handler, cfg.APIMaxInFlight, time.Duration(cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) postTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
		Region    string `json:"region"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	result, err := rt.dialogue.Respond(r.Context(), domain.TurnRequest{
		SessionID: req.SessionID,
		Question:  req.Question,
		Region:    domain.ParseRegion(req.Region),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) sessionHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "turns" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	state, ok := rt.dialogue.History(parts[0])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("turn_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
