package main

import (
	"context"
	"database/sql"
	"time"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/auth"
	"voice-auth-ivr/internal/httpapi"
	"voice-auth-ivr/internal/ivr"
	"voice-auth-ivr/internal/rbac"
	"voice-auth-ivr/internal/reporting"
	"voice-auth-ivr/internal/telephony"
	"voice-auth-ivr/internal/voiceit"
	"voice-auth-ivr/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type deps struct {
	auth    *auth.Manager
	flow    *ivr.Flow
	journal *audit.Service
	calls   reporting.Repository
	checks  map[string]func(ctx context.Context) error
	tracker *telephony.CallTracker

	enrollmentsRequired int
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	h := httpapi.Handlers{
		Reports: reporting.NewService(d.calls, d.enrollmentsRequired),
		Journal: d.journal,
		Checks:  d.checks,
	}

	// public
	r.GET("/healthz", h.Health)
	r.GET("/readyz", h.Ready)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireToken(d.auth))
	{
		v1.GET("/me", h.Me)

		// Media gateway call legs. Admin tokens are not accepted here.
		gw := telephony.GatewayHandler{
			Runner: d.tracker.Track(telephony.CallRunnerFunc(func(ctx context.Context, s telephony.Session) {
				d.flow.Run(ctx, s)
			})),
		}
		gateway := v1.Group("/gateway")
		gateway.Use(rbac.RequireExactRole(rbac.RoleGateway))
		gateway.GET("/calls", gw.HandleCall)

		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		reports.GET("/summary", h.Summary)

		callsGroup := v1.Group("/calls")
		callsGroup.Use(rbac.RequireAnyRole(rbac.RoleOperator))
		callsGroup.GET("/:call_id/events", h.CallEvents)
	}
}

// readinessChecks probes every dependency a call needs. db may be nil.
func readinessChecks(rdb *redis.Client, bio *voiceit.Client, db *sql.DB, lang string) map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"redis": func(ctx context.Context) error {
			return utils.PingRedis(ctx, rdb, 2*time.Second)
		},
		"voiceit": func(ctx context.Context) error {
			return bio.HealthCheck(ctx, lang)
		},
	}
	if db != nil {
		checks["postgres"] = func(ctx context.Context) error {
			return utils.HealthCheck(ctx, db, 2*time.Second)
		}
	}
	return checks
}
