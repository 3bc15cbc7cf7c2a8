package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfl-bus-metrics/poller/internal/db"
	"github.com/tfl-bus-metrics/poller/internal/models"
)

type fakeRepo struct {
	rows      []models.MetricsRow
	run       *db.StatusRun
	err       error
	lastLimit int
}

func (f *fakeRepo) MetricsByDate(ctx context.Context, date time.Time) ([]models.MetricsRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.MetricsRow{}
	for _, r := range f.rows {
		if r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) MetricsByLine(ctx context.Context, lineID string, limit int) ([]models.MetricsRow, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	out := []models.MetricsRow{}
	for _, r := range f.rows {
		if r.LineID == lineID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) LatestMetricsDate(ctx context.Context) (*time.Time, error) {
	if f.err != nil {
		return nil, f.err
	}
	var latest *time.Time
	for i := range f.rows {
		if latest == nil || f.rows[i].Date.After(*latest) {
			latest = &f.rows[i].Date
		}
	}
	return latest, nil
}

func (f *fakeRepo) LatestRun(ctx context.Context) (*db.StatusRun, error) {
	return f.run, f.err
}

func (f *fakeRepo) Ping(ctx context.Context) error {
	return f.err
}

func day(s string) time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return d
}

func sampleRepo() *fakeRepo {
	return &fakeRepo{
		rows: []models.MetricsRow{
			{LineID: "3", Date: day("2025-01-02"), DelayFrequency: 2, TotalReports: 4, GoodServiceCount: 2, UptimePercentage: 50},
			{LineID: "3", Date: day("2025-01-01"), AvgDelayDuration: 30, DelayFrequency: 1, TotalReports: 4, GoodServiceCount: 2, UptimePercentage: 50},
			{LineID: "12", Date: day("2025-01-01"), DelayFrequency: 1, TotalReports: 1},
		},
		run: &db.StatusRun{RunID: "abc", PolledAt: time.Date(2025, 1, 2, 6, 0, 0, 0, time.UTC), LinesDiscovered: 700},
	}
}

func serve(t *testing.T, repo MetricsRepository, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	NewRouter(repo, []string{"*"}).ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestGetMetricsByDate(t *testing.T) {
	rec := serve(t, sampleRepo(), "/api/metrics?date=2025-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[MetricsResponse](t, rec)
	assert.Equal(t, "2025-01-01", resp.Date)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Metrics, 2)
}

func TestGetMetricsDefaultsToLatestDay(t *testing.T) {
	rec := serve(t, sampleRepo(), "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[MetricsResponse](t, rec)
	assert.Equal(t, "2025-01-02", resp.Date)
	require.Len(t, resp.Metrics, 1)
	assert.Equal(t, "3", resp.Metrics[0].LineID)
}

func TestGetMetricsEmptyStore(t *testing.T) {
	rec := serve(t, &fakeRepo{}, "/api/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[MetricsResponse](t, rec)
	assert.Zero(t, resp.Count)
	assert.NotNil(t, resp.Metrics)
}

func TestGetMetricsBadDate(t *testing.T) {
	rec := serve(t, sampleRepo(), "/api/metrics?date=01/02/2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "YYYY-MM-DD")
}

func TestGetMetricsRepositoryError(t *testing.T) {
	rec := serve(t, &fakeRepo{err: errors.New("locked")}, "/api/metrics?date=2025-01-01")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetLineMetrics(t *testing.T) {
	repo := sampleRepo()

	rec := serve(t, repo, "/api/metrics/lines/3")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[MetricsResponse](t, rec)
	assert.Equal(t, "3", resp.LineID)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, defaultLineDays, repo.lastLimit)

	rec = serve(t, repo, "/api/metrics/lines/3?days=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[MetricsResponse](t, rec).Count)
	assert.Equal(t, 1, repo.lastLimit)
}

func TestGetLineMetricsErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown line", "/api/metrics/lines/999", http.StatusNotFound},
		{"days not a number", "/api/metrics/lines/3?days=week", http.StatusBadRequest},
		{"days too large", "/api/metrics/lines/3?days=1000", http.StatusBadRequest},
		{"days zero", "/api/metrics/lines/3?days=0", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, sampleRepo(), tc.target)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetLatestRun(t *testing.T) {
	rec := serve(t, sampleRepo(), "/api/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	run := decode[db.StatusRun](t, rec)
	assert.Equal(t, "abc", run.RunID)
	assert.Equal(t, 700, run.LinesDiscovered)

	rec = serve(t, &fakeRepo{}, "/api/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeRepo{}, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", body["status"])

	rec = serve(t, &fakeRepo{err: errors.New("gone")}, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body = decode[map[string]interface{}](t, rec)
	assert.Equal(t, "disconnected", body["database"])
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/metrics", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()

	NewRouter(&fakeRepo{}, []string{"http://localhost:5173"}).ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
