package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/auth"
	"voice-auth-ivr/internal/reporting"
	"voice-auth-ivr/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Reports *reporting.Service
	Journal *audit.Service

	// Checks are dependency probes run by Ready, keyed by dependency name.
	Checks       map[string]func(ctx context.Context) error
	CheckTimeout time.Duration
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready runs every dependency check and reports 503 if any fails.
func (h Handlers) Ready(c *gin.Context) {
	timeout := h.CheckTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(gin.H, len(names))
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			logger.FromGin(c).Warn("readiness check failed", "check", name, "err", err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"checks": results})
}

// --- Identity ---

func (h Handlers) Me(c *gin.Context) {
	sub, _ := auth.Subject(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"subject": sub, "role": role})
}

// --- Reporting ---

// Summary aggregates call outcomes for calls started in [from, to).
// Query: from, to (RFC3339). RBAC: operator.
func (h Handlers) Summary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}

	out, err := h.Reports.Summary(c.Request.Context(), reporting.SummaryRequest{
		Range: reporting.TimeRange{From: from.UTC(), To: to.UTC()},
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		logger.FromGin(c).Error("summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// CallEvents returns the journal of one call. RBAC: operator.
func (h Handlers) CallEvents(c *gin.Context) {
	if h.Journal == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "journal not configured"})
		return
	}
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	events, err := h.Journal.CallEvents(c.Request.Context(), callID)
	if err != nil {
		logger.FromGin(c).Error("journal lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "journal lookup failed"})
		return
	}
	if len(events) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "events": events})
}
