package main

// @title SupportDesk Backend API
// @version 0.9.0
// @description 支持邮件分流系统后端 API 文档
// @contact.name API Support
// @contact.email support@example.com
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 使用格式：Bearer {token}

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"supportdesk/backend/internal/auth"
	jwtpkg "supportdesk/backend/internal/auth/jwt"
	"supportdesk/backend/internal/classifier"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/crypto"
	"supportdesk/backend/internal/health"
	"supportdesk/backend/internal/ingest"
	"supportdesk/backend/internal/logger"
	"supportdesk/backend/internal/mailbox"
	"supportdesk/backend/internal/monitoring"
	"supportdesk/backend/internal/service"
	"supportdesk/backend/internal/storage"
	"supportdesk/backend/internal/storage/memory"
	redisstore "supportdesk/backend/internal/storage/redis"
	sqlstore "supportdesk/backend/internal/storage/sql"
	httptransport "supportdesk/backend/internal/transport/http"
)

// main 启动 HTTP API 与邮件采集调度器。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     "",
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting supportdesk server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		sqlStore, err := sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		if err := sqlStore.Migrate(); err != nil {
			panic(fmt.Sprintf("failed to run migrations: %v", err))
		}
		store = sqlStore
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 初始化 Redis 统计缓存（可选）
	var redisClient *redisstore.Client
	if cfg.Redis.Address != "" {
		redisClient, err = redisstore.New(&cfg.Redis)
		if err != nil {
			log.Warn("failed to connect redis, stats cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			log.Info("redis stats cache enabled", zap.String("address", cfg.Redis.Address))
		}
	}

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, redisClient, log)

	// 凭证加密
	cipher, err := crypto.New(cfg.Crypto.Key)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize credential cipher: %v", err))
	}

	// 初始化服务层
	emailService := service.NewEmailService(store, log)
	if redisClient != nil {
		emailService.SetStatsCache(redisstore.NewStatsCache(redisClient))
	}
	userService := service.NewUserService(store, cipher)

	// 初始化认证服务
	authService := auth.NewService(store)
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// 初始化采集管线
	cls, err := classifier.New(&cfg.Classifier, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize classifier: %v", err))
	}
	fetcher := mailbox.NewClient(cfg.Ingest.Keywords, cfg.Ingest.Folder, cfg.Ingest.AuthTimeout, log)
	orchestrator := ingest.NewOrchestrator(store, fetcher, cls, cipher, &cfg.Ingest, cfg.Classifier.RPS, metrics, log)
	scheduler := ingest.NewScheduler(orchestrator, cfg.Ingest.Interval, log)

	log.Info("ingestion pipeline initialized",
		zap.Duration("interval", cfg.Ingest.Interval),
		zap.Strings("keywords", cfg.Ingest.Keywords),
		zap.String("classifier", cls.Name()),
	)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		AuthService:   authService,
		EmailService:  emailService,
		UserService:   userService,
		JWTManager:    jwtManager,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 邮件采集调度器 goroutine
	group.Go(func() error {
		if err := scheduler.Start(groupCtx); err != nil && err != context.Canceled {
			log.Error("ingestion scheduler error", zap.Error(err))
			return err
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}

		if err := store.Close(); err != nil {
			log.Warn("storage close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
