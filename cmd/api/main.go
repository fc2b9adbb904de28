package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/2611006/TeamUp26/internal/app/migrate"
	"github.com/2611006/TeamUp26/internal/gemini"
	"github.com/2611006/TeamUp26/internal/github"
	httpx "github.com/2611006/TeamUp26/internal/http"
	"github.com/2611006/TeamUp26/internal/repository/postgres"
	"github.com/2611006/TeamUp26/internal/service/auth"
	"github.com/2611006/TeamUp26/internal/service/feed"
	"github.com/2611006/TeamUp26/internal/service/invitation"
	"github.com/2611006/TeamUp26/internal/service/messaging"
	"github.com/2611006/TeamUp26/internal/service/notification"
	"github.com/2611006/TeamUp26/internal/service/profile"
	"github.com/2611006/TeamUp26/internal/service/task"
	"github.com/2611006/TeamUp26/internal/service/team"
	"github.com/2611006/TeamUp26/internal/service/verification"
	"github.com/2611006/TeamUp26/internal/ws"
	"github.com/2611006/TeamUp26/pkg/config"
	"github.com/2611006/TeamUp26/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	notifyHub := ws.NewHub()

	// One redis client serves both the rate limiter and the stats cache.
	var redisClient *redis.Client
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RateLimitRedisPass,
			DB:       cfg.RateLimitRedisDB,
		})
	}

	externalHTTP := &http.Client{Timeout: cfg.ExternalCallTimeout}
	ghClient := github.New(cfg.GitHubAPIBaseURL, cfg.GitHubOAuthBaseURL, github.WithHTTPClient(externalHTTP))
	geminiClient := gemini.New(cfg.GeminiBaseURL, cfg.GeminiAPIKey, gemini.WithHTTPClient(externalHTTP))

	notifySvc := notification.New(repo, notifyHub, log)
	authSvc := auth.New(repo, log, cfg)
	profileSvc := profile.New(repo, log)
	messagingSvc := messaging.New(repo, repo, notifySvc, log)
	teamSvc := team.New(repo, repo, repo, notifySvc, log)
	invitationSvc := invitation.New(repo, repo, repo, notifySvc, messagingSvc, log)
	feedSvc := feed.New(repo, log)
	taskSvc := task.New(repo, repo, repo, log)
	var statsCache verification.StatsCache
	if redisClient != nil {
		statsCache = verification.NewRedisStatsCache(redisClient)
	}
	verificationSvc := verification.New(repo, repo, ghClient, geminiClient, statsCache, log, cfg)

	limiter := httpx.NewMemoryRateLimiter()
	if redisClient != nil {
		redisLimiter, err := httpx.NewRedisRateLimiter(redisClient, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, httpx.Deps{
		Auth:          authSvc,
		Profiles:      profileSvc,
		Teams:         teamSvc,
		Invitations:   invitationSvc,
		Feed:          feedSvc,
		Tasks:         taskSvc,
		Messaging:     messagingSvc,
		Notifications: notifySvc,
		Verification:  verificationSvc,
		Limiter:       limiter,
		DBHealth:      pool.Ping,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
