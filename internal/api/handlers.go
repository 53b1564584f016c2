package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shubhsaxena/search-layout/internal/models"
	"github.com/shubhsaxena/search-layout/internal/orchestrator"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type Handler struct {
	orchestrator *orchestrator.Orchestrator
	logger       *zap.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: orch,
		logger:       logger,
	}
}

// Classify never rejects a query for its content: an empty or unmatched query
// is answered with the general layout.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := RequestIDFromContext(ctx)

	req, err := h.parseClassifyRequest(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.RequestID = requestID

	h.writeJSON(w, http.StatusOK, h.orchestrator.Classify(ctx, req))
}

func (h *Handler) ListIntents(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"intents": h.orchestrator.ListIntents(),
	})
}

// IntentExamples answers unknown intents with an empty list, not a 404.
func (h *Handler) IntentExamples(w http.ResponseWriter, r *http.Request) {
	intent := models.Intent(chi.URLParam(r, "intent"))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"intent":   intent,
		"examples": h.orchestrator.Examples(intent),
	})
}

func (h *Handler) IntentLayout(w http.ResponseWriter, r *http.Request) {
	intent := models.Intent(chi.URLParam(r, "intent"))
	if !intent.Valid() {
		h.writeError(w, http.StatusNotFound, "unknown_intent", "Unknown intent '"+string(intent)+"'")
		return
	}
	layout := h.orchestrator.Layout(intent)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"intent":       layout.Intent,
		"layout":       layout.Modules,
		"render_order": orchestrator.RenderOrder(layout.Modules),
	})
}

func (h *Handler) Trending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	region := r.URL.Query().Get("region")
	if region == "" {
		region = "global"
	}
	limit := intParam(r, "limit", 0)

	results, err := h.orchestrator.Trending(ctx, region, limit)
	if errors.Is(err, orchestrator.ErrUnavailable) {
		h.writeError(w, http.StatusServiceUnavailable, "analytics_unavailable", "Trending intents are not available")
		return
	}
	if err != nil {
		h.logger.Warn("trending lookup error", zap.String("region", region), zap.Error(err))
		results = nil
	}
	if results == nil {
		results = []models.IntentCount{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"trending": results,
		"region":   region,
	})
}

func (h *Handler) IntentBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var window time.Duration
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_window", "Query parameter 'window' must be a positive duration such as 24h")
			return
		}
		window = d
	}

	resp, err := h.orchestrator.Breakdown(ctx, window)
	if err != nil {
		h.writeAnalyticsError(w, r, "breakdown", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) UnmatchedQueries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := &models.CurationRequest{
		Query:  r.URL.Query().Get("q"),
		Region: r.URL.Query().Get("region"),
		Size:   intParam(r, "size", 0),
	}

	resp, err := h.orchestrator.SearchUnmatched(ctx, req)
	if err != nil {
		h.writeAnalyticsError(w, r, "unmatched search", err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) parseClassifyRequest(r *http.Request) (*models.ClassifyRequest, error) {
	if r.Method == http.MethodPost {
		var req models.ClassifyRequest
		limited := io.LimitReader(r.Body, maxRequestBodySize)
		if err := json.NewDecoder(limited).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	return &models.ClassifyRequest{
		Query:  r.URL.Query().Get("q"),
		Region: r.URL.Query().Get("region"),
		UserID: r.URL.Query().Get("user_id"),
	}, nil
}

func (h *Handler) writeAnalyticsError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, orchestrator.ErrUnavailable) {
		h.writeError(w, http.StatusServiceUnavailable, "analytics_unavailable", "Analytics backend is not configured")
		return
	}
	h.logger.Error(op+" failed",
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.Error(err),
	)
	h.writeError(w, http.StatusBadGateway, "analytics_error", "Analytics backend temporarily unavailable")
}

// intParam returns def for a missing, malformed or negative value.
func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorBody(w, status, code, message)
}
