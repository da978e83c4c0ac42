package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"productradar/internal/bus"
	"productradar/internal/cache"
	"productradar/internal/cleaner"
	"productradar/internal/client/llm"
	"productradar/internal/config"
	cronrunner "productradar/internal/cron"
	"productradar/internal/db"
	"productradar/internal/handler"
	"productradar/internal/jobs"
	"productradar/internal/lock"
	"productradar/internal/logger"
	"productradar/internal/middleware"
	"productradar/internal/notify"
	"productradar/internal/recommend"
	"productradar/internal/repository"
	gormrepository "productradar/internal/repository/gorm"
	memoryrepository "productradar/internal/repository/memory"
	"productradar/internal/resolver"
	"productradar/internal/scoring"
	"productradar/internal/service"
	signalhub "productradar/internal/signal"

	_ "productradar/docs"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("PR_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PR_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	var (
		store  repository.Repository
		gormDB *gorm.DB
	)
	if dbConn == nil {
		logger.Warn("using in-memory store; data is lost on restart")
		store = memoryrepository.New()
	} else {
		defer db.Close(dbConn)
		if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		gormDB = dbConn.Gorm
		store = gormrepository.New(dbConn.Gorm)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		redisClient redis.UniversalClient
		locker      jobs.Locker
		resultCache cache.Store = cache.NewMemoryStore()
	)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis ping failed; continuing with reconnects", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		defer rdb.Close()
		redisClient = rdb
		locker = jobs.NewRedisLocker(lock.NewLocker(rdb, ""))
		resultCache = cache.NewRedisStore(rdb, "")
	}

	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = bus.Connect(cfg.NATS, logger)
		if err != nil {
			logger.Fatal("nats connect failed", zap.Error(err))
		}
		defer natsConn.Close()
	}

	settingsSvc := &service.SystemSettingsService{Repo: store}

	var completer llm.Completer
	if cfg.LLM.Enabled {
		if client := llm.NewAnthropic(cfg.LLM); client != nil {
			completer = client
		} else {
			logger.Warn("llm enabled without api key; using rule-based fallbacks")
		}
	}

	var nameCleaner signalhub.NameCleaner = cleaner.Passthrough{}
	if completer != nil {
		nameCleaner = service.SwitchedCleaner{
			Settings: settingsSvc,
			Key:      service.FeatureLLMCleaner,
			Cleaner:  cleaner.NewAnthropicCleaner(completer, cfg.LLM.BatchSize, logger),
		}
	}

	ingestor := &signalhub.Ingestor{
		Resolver: &resolver.Resolver{
			Repo:       store,
			Logger:     logger,
			Threshold:  cfg.Resolver.MatchThreshold,
			MaxRetries: cfg.Resolver.MaxRetries,
		},
		Store:   store,
		Cleaner: nameCleaner,
		Logger:  logger,
	}

	hub := signalhub.NewHub(ingestor, store, logger)
	hub.BatchSize = cfg.Ingest.BatchSize
	hub.FlushInterval = cfg.Ingest.FlushInterval
	hub.DedupWindow = cfg.Ingest.DedupWindow
	hub.HealthInterval = cfg.Ingest.HealthInterval
	if natsConn != nil {
		hub.Register(signalhub.NewNATSCollector(natsConn, cfg.NATS.EventSubject, logger))
	}

	broadcaster := notify.NewBroadcaster(logger)
	notifiers := []scoring.Notifier{broadcaster}
	if natsConn != nil {
		notifiers = append(notifiers, notify.NewNATSNotifier(natsConn, cfg.NATS.ScoreSubject, logger))
	}
	engine := &scoring.Engine{
		Store:        store,
		Logger:       logger,
		WindowDays:   cfg.Scoring.WindowDays,
		HistoryDepth: cfg.Scoring.HistoryDepth,
		Notifiers:    notifiers,
	}

	recommender := &recommend.Recommender{
		Store:    store,
		Cache:    resultCache,
		CacheTTL: cfg.Recommend.CacheTTL,
		Logger:   logger,
	}
	if completer != nil {
		recommender.Analyst = service.SwitchedAnalyst{
			Settings: settingsSvc,
			Key:      service.FeatureLLMAnalyst,
			Analyst:  recommend.AnthropicAnalyst{LLM: completer},
		}
	}

	cycles := &service.CycleService{
		Guard:          jobs.NewGuard(locker, cfg.Redis.LockTTL, logger),
		Engine:         engine,
		Hub:            hub,
		Settings:       settingsSvc,
		Recommender:    recommender,
		RecommendLimit: cfg.Recommend.Limit,
		Logger:         logger,
	}
	for _, feed := range cfg.Collectors.Feeds {
		if strings.TrimSpace(feed.Name) == "" || strings.TrimSpace(feed.URL) == "" {
			logger.Warn("skipping feed collector without name or url", zap.String("name", feed.Name))
			continue
		}
		var interval time.Duration
		if d, err := time.ParseDuration(strings.TrimPrefix(feed.Schedule, "@every ")); err == nil {
			interval = d
		}
		cycles.RegisterCollector(signalhub.NewFeedCollector(feed.Name, feed.URL, feed.Timeout, interval, logger))
	}
	if err := settingsSvc.EnsureDefaultSwitches(ctx, cycles.Sources()...); err != nil {
		logger.Warn("init default feature switches failed", zap.Error(err))
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequireToken(cfg.Server.APIToken))
	router.Use(middleware.WriteAudit(logger))

	healthHandler := &handler.HealthHandler{DB: gormDB, Redis: redisClient, NATS: natsConn}
	healthHandler.Register(router)
	middleware.RegisterDocs(router)

	productHandler := &handler.ProductHandler{Repo: store, WindowDays: cfg.Scoring.WindowDays}
	productHandler.Register(router)
	signalHandler := &handler.SignalHandler{Repo: store, Ingest: ingestor, Logger: logger}
	signalHandler.Register(router)
	cycleHandler := &handler.CycleHandler{Cycles: cycles, Repo: store, Logger: logger}
	cycleHandler.Register(router)
	recommendationHandler := &handler.RecommendationHandler{
		Recommender:  recommender,
		Settings:     settingsSvc,
		DefaultLimit: cfg.Recommend.Limit,
	}
	recommendationHandler.Register(router)
	settingsHandler := &handler.SettingsHandler{Settings: settingsSvc}
	settingsHandler.Register(router)
	streamHandler := &handler.StreamHandler{Stream: broadcaster}
	streamHandler.Register(router)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		addJob := func(name, spec string, job func(context.Context) error) {
			if strings.TrimSpace(spec) == "" {
				return
			}
			if _, err := cronRunner.Add(name, spec, job); err != nil {
				logger.Warn("cron register failed", zap.String("job", name), zap.String("spec", spec), zap.Error(err))
			}
		}
		addJob(service.JobScoring, cfg.Cron.Scoring, func(ctx context.Context) error {
			_, err := cycles.RunScoring(ctx)
			if errors.Is(err, service.ErrFeatureDisabled) {
				return nil
			}
			return err
		})
		addJob(service.JobRecommendation, cfg.Cron.Recommendation, func(ctx context.Context) error {
			err := cycles.RefreshRecommendations(ctx)
			if errors.Is(err, service.ErrFeatureDisabled) {
				return nil
			}
			return err
		})

		scheduled := map[string]bool{}
		for _, feed := range cfg.Collectors.Feeds {
			source := strings.ToLower(strings.TrimSpace(feed.Name))
			if source == "" || strings.TrimSpace(feed.Schedule) == "" {
				continue
			}
			scheduled[source] = true
			addJob(service.CollectJob(source), feed.Schedule, func(ctx context.Context) error {
				_, err := cycles.Collect(ctx, source)
				if errors.Is(err, service.ErrFeatureDisabled) {
					return nil
				}
				return err
			})
		}
		addJob("collect", cfg.Cron.Collect, func(ctx context.Context) error {
			for _, source := range cycles.Sources() {
				if scheduled[source] {
					continue
				}
				if _, err := cycles.Collect(ctx, source); err != nil &&
					!errors.Is(err, service.ErrFeatureDisabled) && !errors.Is(err, jobs.ErrAlreadyRunning) {
					logger.Warn("scheduled collect failed", zap.String("source", source), zap.Error(err))
				}
			}
			return nil
		})
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("signal hub stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
