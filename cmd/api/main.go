package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/ulule/limiter/v3"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	fraudapp "fraud-risk-engine/internal/application/fraud"
	txapp "fraud-risk-engine/internal/application/transaction"
	"fraud-risk-engine/internal/domain/fraud"
	"fraud-risk-engine/internal/domain/transaction"
	"fraud-risk-engine/internal/infrastructure/cache/redis"
	"fraud-risk-engine/internal/infrastructure/database/memory"
	"fraud-risk-engine/internal/infrastructure/database/postgres"
	"fraud-risk-engine/internal/infrastructure/http/router"
	"fraud-risk-engine/internal/infrastructure/messaging/kafka"
	"fraud-risk-engine/internal/infrastructure/metrics"
	"fraud-risk-engine/internal/infrastructure/rules"
	"fraud-risk-engine/internal/interfaces/http/handler"
	"fraud-risk-engine/internal/pkg/config"
	"fraud-risk-engine/internal/pkg/logger"
)

const version = "1.0.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	envFile := flag.String("env", ".env", "Path to dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	zl, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server failed", zap.Error(err))
	}
}

// storage is the persistence backend the use cases run against
type storage struct {
	txRepo    transaction.Repository
	snapshots fraud.SnapshotReader
	uow       fraud.UnitOfWork
	health    handler.HealthChecker
	close     func() error
}

func run(cfg *config.Config, zl *zap.Logger) error {
	zl.Info("starting fraud risk engine",
		zap.String("version", version),
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
	)

	ctx := context.Background()

	// Risk engine
	loc, err := cfg.Fraud.Location()
	if err != nil {
		return err
	}
	engine := rules.NewEngine(loc)

	txService := transaction.NewService()
	txService.SetMaxTransactionAmount(cfg.Fraud.GetMaxAmount())
	txService.SetMinTransactionAmount(cfg.Fraud.GetMinAmount())
	txService.SetDefaultCurrency(transaction.Currency(cfg.Fraud.DefaultCurrency))
	currencies := make([]transaction.Currency, 0, len(cfg.Fraud.SupportedCurrencies))
	for _, c := range cfg.Fraud.SupportedCurrencies {
		currencies = append(currencies, transaction.Currency(c))
	}
	txService.SetSupportedCurrencies(currencies)

	// Persistence
	store, err := openStorage(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			zl.Warn("failed to close store", zap.Error(err))
		}
	}()

	healthHandler := handler.NewHealthHandler(version)
	if store.health != nil {
		healthHandler.AddCheck("database", store.health)
	}

	// Writer lock, shared through Redis when enabled
	var locker transaction.Locker = memory.NewKeyedLocker(cfg.Fraud.LockWait)
	var rateStore limiter.Store
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			zl.Warn("redis connection failed, using in-process locks", zap.Error(err))
		} else {
			defer redisClient.Close()
			zl.Info("connected to redis", zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))

			locker = redis.NewLocker(redisClient, redis.LockConfig{TTL: cfg.Fraud.LockTTL, Wait: cfg.Fraud.LockWait})
			healthHandler.AddCheck("redis", redisClient)

			rateStore, err = sredis.NewStoreWithOptions(redisClient.Redis(), limiter.StoreOptions{
				Prefix: "fraud:ratelimit",
			})
			if err != nil {
				return fmt.Errorf("failed to create rate limit store: %w", err)
			}
		}
	}

	// Risk event publishing
	var publisher fraud.EventPublisher
	if cfg.Kafka.Enabled {
		kp, err := kafka.NewPublisher(kafka.Config{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.RiskEventsTopic,
			WriteTimeout:     cfg.Kafka.WriteTimeout,
			FailureThreshold: cfg.Kafka.BreakerFailures,
			OpenTimeout:      cfg.Kafka.BreakerOpenTimeout,
		}, zl)
		if err != nil {
			return fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		defer kp.Close()
		publisher = kp
		zl.Info("publishing risk events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.RiskEventsTopic))
	}

	// Metrics
	var (
		instruments *metrics.Collectors
		gatherer    prometheus.Gatherer
		metricsPath string
	)
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		instruments, err = metrics.New(registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		gatherer = registry
		metricsPath = cfg.Metrics.Path
	}

	// Use cases
	processUseCase := txapp.NewProcessTransactionUseCase(
		txService,
		engine,
		store.txRepo,
		store.uow,
		locker,
		publisher,
		instruments,
		zl.Named("process"),
	)
	processUseCase.SetMaxWriteRetries(cfg.Fraud.MaxWriteRetries)

	auditUseCase := fraudapp.NewAuditTrailUseCase(store.txRepo, store.snapshots, zl.Named("audit"))

	// Initialize handlers
	transactionHandler := handler.NewTransactionHandler(processUseCase, auditUseCase, zl.Named("http"))

	// Create router
	r, err := router.NewRouter(transactionHandler, healthHandler, router.Options{
		RateLimit:   cfg.Server.RateLimit,
		RateStore:   rateStore,
		MetricsPath: metricsPath,
		Gatherer:    gatherer,
		Metrics:     instruments,
		Logger:      zl.Named("http"),
	})
	if err != nil {
		return err
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Serve until a signal arrives or the listener fails
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		zl.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down server")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zl.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	zl.Info("server stopped")
	return nil
}

// openStorage connects to PostgreSQL when configured. An unreachable
// database is fatal unless fraud.allow_memory_fallback is set, in which case
// the service runs in standalone mode on the memory store.
func openStorage(ctx context.Context, cfg *config.Config, zl *zap.Logger) (storage, error) {
	if cfg.Fraud.Store == config.StorePostgres {
		client, err := connectPostgres(ctx, cfg)
		if err == nil {
			zl.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.Int("port", cfg.Database.Port))
			uow := postgres.NewUnitOfWork(client)
			return storage{
				txRepo:    postgres.NewTransactionRepository(client),
				snapshots: uow,
				uow:       uow,
				health:    client,
				close:     client.Close,
			}, nil
		}
		if !cfg.Fraud.AllowMemoryFallback {
			return storage{}, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		zl.Warn("database unavailable, running in standalone mode on the memory store", zap.Error(err))
	}

	mem := memory.NewStore()
	return storage{
		txRepo:    mem.Transactions(),
		snapshots: mem,
		uow:       mem,
		close:     func() error { return nil },
	}, nil
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Client, error) {
	client, err := postgres.NewClient(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		LogQueries:      cfg.Database.LogQueries,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return client, nil
}
