package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/research-archive-api/internal/handler"
	"github.com/noah-isme/research-archive-api/internal/repository"
	"github.com/noah-isme/research-archive-api/internal/service"
	"github.com/noah-isme/research-archive-api/pkg/cache"
	"github.com/noah-isme/research-archive-api/pkg/config"
	"github.com/noah-isme/research-archive-api/pkg/database"
	"github.com/noah-isme/research-archive-api/pkg/extract"
	"github.com/noah-isme/research-archive-api/pkg/jobs"
	"github.com/noah-isme/research-archive-api/pkg/logger"
	"github.com/noah-isme/research-archive-api/pkg/markdown"
	"github.com/noah-isme/research-archive-api/pkg/storage"
)

// @title Research Archive API
// @version 1.0.0
// @description Search and visibility engine for the student research archive
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const (
	cacheKeyPrefix  = "archive:"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfgStore, err := config.LoadStore("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := cfgStore.Current()

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	cfgStore.Watch(logr)

	if err := run(cfgStore, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfgStore *config.Store, logr *zap.Logger) error {
	cfg := cfgStore.Current()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using in-process session counters without ranking cache", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("prepare upload dir: %w", err)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	renderer := markdown.New()

	studyRepo := repository.NewStudyRepository(db)
	fileRepo := repository.NewFileRepository(db)
	tagRepo := repository.NewTagRepository(db)
	newsRepo := repository.NewNewsRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	graveRepo := repository.NewGraveRepository(db)
	rankingRepo := repository.NewRankingRepository(db)
	searchRepo := repository.NewSearchRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	sessions := repository.NewSessionCounterRepository(redisClient, cfg.Session.TTL)
	cacheRepo := repository.NewCacheRepository(redisClient, cacheKeyPrefix, logr)

	historyWorker := service.NewHistoryWorker(historyRepo, logr)
	historyQueue := jobs.NewQueue("history", historyWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.History.Workers,
		MaxRetries: cfg.History.Retries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	historyQueue.Start(ctx)
	defer historyQueue.Stop()
	history := service.NewHistoryService(historyQueue, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Ranking.CacheTTL, logr, func() bool {
		return cfgStore.Current().Ranking.CacheEnabled
	})
	tagSvc := service.NewTagService(tagRepo, studyRepo, fileRepo, nil, validate, logr)
	studySvc := service.NewStudyService(studyRepo, fileRepo, tagSvc, voteRepo, userRepo, files, renderer, cacheSvc, validate, logr)
	fileSvc := service.NewFileService(fileRepo, studyRepo, files,
		storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		sessions, history, extract.NewPDFExtractor(cfg.Uploads.MaxFileSizeBytes), cfgStore, metrics, validate, logr)
	newsSvc := service.NewNewsService(newsRepo, renderer, validate, logr)
	voteSvc := service.NewVoteService(studyRepo, voteRepo, cacheSvc, metrics, logr)
	moderationSvc := service.NewModerationService(graveRepo, fileRepo, files, newsRepo, tagRepo, cacheSvc, metrics, validate, logr)
	rankingSvc := service.NewRankingService(rankingRepo, newsRepo, cacheSvc, cfgStore, metrics, logr)
	searchSvc := service.NewSearchService(searchRepo, fileRepo, cfgStore, metrics, logr)
	exportSvc := service.NewExportService(searchSvc, logr)
	userSvc := service.NewUserService(userRepo, studyRepo, fileRepo, historyRepo, validate, logr)
	authSvc := service.NewAuthService(userRepo, sessions, history, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	if err := userSvc.EnsureAdmin(ctx, cfg.Site.AdminName, cfg.Site.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = redisPinger{client: redisClient}
	}

	r := newRouter(cfg, logr, metrics, authSvc, routeHandlers{
		auth:       handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(userSvc),
		home:       handler.NewHomeHandler(rankingSvc),
		search:     handler.NewSearchHandler(searchSvc, exportSvc),
		studies:    handler.NewStudyHandler(studySvc, voteSvc),
		files:      handler.NewFileHandler(fileSvc),
		tags:       handler.NewTagHandler(tagSvc),
		news:       handler.NewNewsHandler(newsSvc, renderer),
		moderation: handler.NewModerationHandler(moderationSvc),
		metrics:    handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
