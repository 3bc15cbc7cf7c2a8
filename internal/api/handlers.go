package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tfl-bus-metrics/poller/internal/db"
	"github.com/tfl-bus-metrics/poller/internal/models"
)

const (
	defaultLineDays = 30
	maxLineDays     = 365
)

// MetricsRepository is the read side of the local metrics store
type MetricsRepository interface {
	MetricsByDate(ctx context.Context, date time.Time) ([]models.MetricsRow, error)
	MetricsByLine(ctx context.Context, lineID string, limit int) ([]models.MetricsRow, error)
	LatestMetricsDate(ctx context.Context) (*time.Time, error)
	LatestRun(ctx context.Context) (*db.StatusRun, error)
	Ping(ctx context.Context) error
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MetricsResponse wraps a list of metrics rows
type MetricsResponse struct {
	Date    string              `json:"date,omitempty"`
	LineID  string              `json:"lineId,omitempty"`
	Metrics []models.MetricsRow `json:"metrics"`
	Count   int                 `json:"count"`
}

// MetricsHandler serves stored line metrics and run metadata
type MetricsHandler struct {
	repo MetricsRepository
}

// NewMetricsHandler creates a new handler with the given repository
func NewMetricsHandler(repo MetricsRepository) *MetricsHandler {
	return &MetricsHandler{repo: repo}
}

// GetMetrics handles GET /api/metrics
// Query params: date (optional, YYYY-MM-DD, default latest stored day)
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var date time.Time
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.Parse(models.DateLayout, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "date must be YYYY-MM-DD"})
			return
		}
		date = d
	} else {
		latest, err := h.repo.LatestMetricsDate(ctx)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to get latest metrics date"})
			return
		}
		if latest == nil {
			writeJSON(w, http.StatusOK, MetricsResponse{Metrics: []models.MetricsRow{}})
			return
		}
		date = *latest
	}

	rows, err := h.repo.MetricsByDate(ctx, date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to get metrics"})
		return
	}

	writeJSON(w, http.StatusOK, MetricsResponse{
		Date:    date.Format(models.DateLayout),
		Metrics: rows,
		Count:   len(rows),
	})
}

// GetLineMetrics handles GET /api/metrics/lines/{lineId}
// Query params: days (optional, default 30, max 365)
func (h *MetricsHandler) GetLineMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	lineID := chi.URLParam(r, "lineId")
	if lineID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "lineId is required"})
		return
	}

	days := defaultLineDays
	if s := r.URL.Query().Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLineDays {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "days must be between 1 and 365"})
			return
		}
		days = n
	}

	rows, err := h.repo.MetricsByLine(ctx, lineID, days)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to get line metrics"})
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "No metrics for line " + lineID})
		return
	}

	writeJSON(w, http.StatusOK, MetricsResponse{
		LineID:  lineID,
		Metrics: rows,
		Count:   len(rows),
	})
}

// GetLatestRun handles GET /api/runs/latest
func (h *MetricsHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	run, err := h.repo.LatestRun(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to get latest run"})
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "No runs recorded yet"})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// Health handles GET /health with a database check
func (h *MetricsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// *db.DB is the production repository
var _ MetricsRepository = (*db.DB)(nil)
