package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/calls"
	"voice-auth-ivr/internal/reporting"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Health)
	r.GET("/readyz", h.Ready)
	r.GET("/v1/reports/summary", h.Summary)
	r.GET("/v1/calls/:call_id/events", h.CallEvents)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReady_ReportsFailingCheck(t *testing.T) {
	r := newRouter(Handlers{Checks: map[string]func(context.Context) error{
		"redis":   func(context.Context) error { return nil },
		"voiceit": func(context.Context) error { return errors.New("unreachable") },
	}})

	w := get(r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Checks["redis"])
	assert.Equal(t, "unreachable", body.Checks["voiceit"])

	assert.Equal(t, http.StatusOK, get(newRouter(Handlers{}), "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
}

func TestSummary(t *testing.T) {
	repo := calls.NewMemoryRepo()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(context.Background(), calls.Call{CallID: "a", StartedAt: start, Outcome: calls.OutcomeVerified, Confidence: 88}))

	r := newRouter(Handlers{Reports: reporting.NewService(repo, 3)})

	w := get(r, "/v1/reports/summary?from=2026-02-01T00:00:00Z&to=2026-02-02T00:00:00Z")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out reporting.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 1, out.TotalCalls)
	assert.Equal(t, 1, out.ByOutcome[calls.OutcomeVerified])
	assert.Equal(t, 88.0, out.AverageConfidence)

	assert.Equal(t, http.StatusBadRequest, get(r, "/v1/reports/summary?from=yesterday&to=2026-02-02T00:00:00Z").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/v1/reports/summary?from=2026-02-02T00:00:00Z&to=2026-02-01T00:00:00Z").Code)
}

func TestCallEvents(t *testing.T) {
	repo := audit.NewMemoryRepo()
	svc := audit.NewService(repo)
	require.NoError(t, svc.Append(context.Background(), audit.Event{CallID: "c1", Type: audit.EventTypeCallStarted}))
	require.NoError(t, svc.Append(context.Background(), audit.Event{CallID: "c1", Type: audit.EventTypeCallEnded, Message: "verified"}))

	r := newRouter(Handlers{Journal: svc})

	w := get(r, "/v1/calls/c1/events")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		CallID string        `json:"call_id"`
		Events []audit.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "c1", body.CallID)
	require.Len(t, body.Events, 2)
	assert.Equal(t, audit.EventTypeCallEnded, body.Events[1].Type)

	assert.Equal(t, http.StatusNotFound, get(r, "/v1/calls/missing/events").Code)
}

func TestHandlers_NotConfigured(t *testing.T) {
	r := newRouter(Handlers{})
	assert.Equal(t, http.StatusInternalServerError, get(r, "/v1/reports/summary").Code)
	assert.Equal(t, http.StatusInternalServerError, get(r, "/v1/calls/c1/events").Code)
}
