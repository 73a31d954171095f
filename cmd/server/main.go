package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/adapter/handler"
	"github.com/rl1809/cart-sync/internal/adapter/notify"
	"github.com/rl1809/cart-sync/internal/adapter/stockfeed"
	"github.com/rl1809/cart-sync/internal/adapter/storage"
	"github.com/rl1809/cart-sync/internal/config"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
)

func main() {
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	logger, err := newLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.Server.UserID, cfg.Validator.HardCooldown)
	logger.Info("connected to redis")

	// Core engine
	cart := store.NewCartStore()
	stock := store.NewStockStore()

	coalescer := service.NewWriteCoalescer(mysqlAdapter, logger)
	coalescer.SetDebounceDelay(cfg.Engine.DebounceDelay)

	sessionFn := func() port.Session {
		return port.Session{UserID: cfg.Server.UserID, Authenticated: true}
	}
	corrector := service.NewCartCorrector(cart, mysqlAdapter, coalescer, sessionFn, logger)

	validator := service.NewCartValidator(
		cart, stock,
		redisAdapter, // stock feed
		redisAdapter, // validation stamp
		notify.NewLogNotifier(logger),
		corrector.Apply,
		service.ValidatorConfig{
			SoftCooldown: cfg.Validator.SoftCooldown,
			HardCooldown: cfg.Validator.HardCooldown,
		},
		logger,
	)

	triggers := service.NewTriggerOrchestrator(validator, cart, coalescer, service.TriggerConfig{
		ForegroundSettle: cfg.Engine.ForegroundSettle,
		FocusSettle:      cfg.Engine.FocusSettle,
		StockReaction:    cfg.Engine.StockReaction,
		PeriodicInterval: cfg.Engine.PeriodicInterval,
		StaleAfter:       cfg.Engine.StaleAfter,
	}, logger)
	go triggers.Start(ctx)

	// Stock delta consumer feeds the orchestrator
	consumer := stockfeed.NewConsumer(stock, triggers, logger, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	go consumer.Run(ctx)
	logger.Info("stock consumer started", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))

	// HTTP server
	cartHandler := handler.NewCartHandler(cart, stock, coalescer, validator, triggers, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: cartHandler.Routes(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Startup counts as coming to the foreground
	triggers.HandleAppForeground()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	cancel()
	consumer.Close()

	// Flush any debounced writes before exit
	result := triggers.HandleAppBackground(shutdownCtx)
	logger.Info("pending writes flushed", zap.Int("succeeded", result.Succeeded), zap.Int("failed", result.Failed))
}

func newLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	if cfg.Encoding == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
