package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-auth-ivr/internal/audit"
	"voice-auth-ivr/internal/auth"
	"voice-auth-ivr/internal/calls"
	"voice-auth-ivr/internal/config"
	"voice-auth-ivr/internal/ivr"
	"voice-auth-ivr/internal/mapping"
	"voice-auth-ivr/internal/telephony"
	"voice-auth-ivr/internal/voiceit"
	"voice-auth-ivr/pkg/logger"
	"voice-auth-ivr/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(runToken(os.Args[2:]))
	}

	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	bio, err := voiceit.New(voiceit.Config{
		APIKey:   cfg.VoiceIt.APIKey,
		APIToken: cfg.VoiceIt.APIToken,
		BaseURL:  cfg.VoiceIt.BaseURL,
		Timeout:  cfg.VoiceIt.Timeout,
	})
	if err != nil {
		log.Error("voiceit init failed", "err", err)
		os.Exit(1)
	}

	// Journal and call records live in Postgres when configured.
	var (
		db         *sql.DB
		journalRep audit.Repository = audit.NewMemoryRepo()
		callRep    calls.Repository = calls.NewMemoryRepo()
	)
	if cfg.HasDatabase() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		schema := append(append([]string{}, audit.Schema...), calls.Schema...)
		if err := utils.EnsureSchema(rootCtx, db, schema...); err != nil {
			log.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		journalRep = audit.NewPostgresRepo(db)
		callRep = calls.NewPostgresRepo(db)
	} else {
		log.Warn("DB_HOST not set, keeping call journal in memory")
	}

	journal := audit.NewService(journalRep)
	writer := audit.NewAsyncWriter(journal, 1024, log)

	opts := []ivr.Option{
		ivr.WithJournal(writer),
		ivr.WithCallRecords(callRep),
		ivr.WithLogger(log),
	}
	if cfg.Flow.MaxActiveCalls > 0 {
		opts = append(opts, ivr.WithGate(ivr.NewRedisGate(rdb, cfg.Redis.KeyPrefix, cfg.Flow.MaxActiveCalls)))
	}
	flow := ivr.NewFlow(bio, mapping.NewRedisStore(rdb, cfg.Redis.KeyPrefix), ivr.Settings{
		Phrase:              cfg.Flow.Phrase,
		ContentLanguage:     cfg.Flow.ContentLanguage,
		Voice:               cfg.Flow.Voice,
		RecordingMax:        cfg.Flow.RecordingMax,
		ToneWindow:          cfg.Flow.ToneWindow,
		MappingTTL:          cfg.Flow.MappingTTL,
		EnrollmentsRequired: cfg.Flow.EnrollmentsRequired,
		MaxAttempts:         cfg.Flow.MaxAttempts,
	}, opts...)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	tracker := &telephony.CallTracker{}
	registerRoutes(r, deps{
		auth:                authManager,
		flow:                flow,
		journal:             journal,
		calls:               callRep,
		checks:              readinessChecks(rdb, bio, db, flow.Settings().ContentLanguage),
		enrollmentsRequired: flow.Settings().EnrollmentsRequired,
	})

	// Calls hold their websocket for minutes, so only the header read is
	// bounded here. The gateway session sets its own deadlines.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(rootCtx))
	g.Go(func() error { return writer.Run(gctx) })

	go func() {
		log.Info("ivr listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	// Active calls see rootCtx cancelled and hang up. Their final journal
	// events and call records must land before the writer and db close.
	if err := tracker.Drain(shutdownCtx); err != nil {
		log.Error("active calls did not finish", "err", err)
	}
	if err := writer.Close(shutdownCtx); err != nil {
		log.Error("journal flush failed", "err", err)
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("journal writer failed", "err", err)
	}
}
