package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assist-platform/internal/audit"
	"assist-platform/internal/auth"
	"assist-platform/internal/capability"
	"assist-platform/internal/cases"
	"assist-platform/internal/config"
	"assist-platform/internal/diagnosis"
	"assist-platform/internal/httpapi"
	"assist-platform/internal/transport"
	"assist-platform/pkg/logger"
	"assist-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// regenSlotTTL bounds how long a workshop link regeneration slot can stay
// held if a process dies mid-issue.
const regenSlotTTL = 30 * time.Second

func main() {
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

	keychain, err := capability.NewKeychain(cfg.Link)
	if err != nil {
		log.Error("keychain init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Outbound diagnosis client. The credential chain starts with the shared
	// service token; operator sessions and scoped link tokens are layered on
	// per request by the middleware.
	creds := transport.NewChain(cfg.Diagnosis.ServiceToken)
	diagClient := diagnosis.NewClient(transport.NewClient(transport.ClientConfig{
		Name:    "diagnosis",
		BaseURL: cfg.Diagnosis.BaseURL,
	}, creds, log))

	caseService, err := cases.NewService(cases.NewPostgresRepo(db), keychain, cases.ServiceConfig{
		PublicBaseURL: cfg.Link.PublicBaseURL,
		TokenParam:    cfg.Link.TokenParam,
		Cache:         cases.NewRedisLinkCache(rdb),
		Limiter:       redisLimiter(rdb),
	})
	if err != nil {
		log.Error("case service init failed", "err", err)
		os.Exit(1)
	}

	auditService := audit.NewService(audit.NewPostgresRepo(db))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:      authManager,
		Cases:     caseService,
		Diagnosis: diagClient,
		Audit:     auditService,
	}
	registerRoutes(r, h, routeDeps{
		keychain: keychain,
		creds:    creds,
		authMW:   auth.RequireAccessToken(authManager),
		audit:    auditService,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
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
}

// redisLimiter adapts the Redis slot helpers into the single-holder limiter
// the case service uses to serialize workshop link regeneration.
func redisLimiter(rdb *redis.Client) cases.Limiter {
	return func(ctx context.Context, key string) (func(), bool, error) {
		ok, err := utils.AcquireSlot(ctx, rdb, key, 1, regenSlotTTL)
		if err != nil || !ok {
			return nil, false, err
		}
		release := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := utils.ReleaseSlot(ctx, rdb, key); err != nil {
				slog.Warn("slot release failed", "key", key, "err", err)
			}
		}
		return release, true, nil
	}
}
