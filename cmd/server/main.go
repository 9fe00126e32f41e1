package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/adapter/handler"
	"github.com/rl1809/pos-checkout/internal/adapter/notify"
	"github.com/rl1809/pos-checkout/internal/adapter/storage"
	"github.com/rl1809/pos-checkout/internal/config"
	"github.com/rl1809/pos-checkout/internal/core/service"
	"github.com/rl1809/pos-checkout/internal/logger"
	"github.com/rl1809/pos-checkout/internal/port"
	"github.com/rl1809/pos-checkout/internal/telemetry"
)

const (
	natsQueueSize  = 1000
	healthInterval = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer lg.Sync()

	policy, err := service.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		lg.Fatal("invalid failure policy", zap.Error(err))
	}
	requantity := service.KeepDiscount
	if cfg.RequantityPolicy == "drop" {
		requantity = service.DropDiscount
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		lg.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.MySQLMaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQLMaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		lg.Fatal("failed to ping mysql", zap.Error(err))
	}
	if err := storage.RunMigrations(db); err != nil {
		lg.Fatal("migrations failed", zap.Error(err))
	}
	lg.Info("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	var catalog port.CatalogRepository = mysqlAdapter
	var cache port.CacheRepository
	var observers notify.Observers

	// Initialize Redis
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			lg.Fatal("failed to connect redis", zap.Error(err))
		}
		lg.Info("connected to redis")

		redisAdapter := storage.NewRedisAdapter(rdb)
		cached := storage.NewCachedCatalog(mysqlAdapter, redisAdapter, cfg.BarcodeCacheTTL, lg)
		catalog, cache = cached, redisAdapter
		observers = append(observers, cached)
	}

	// Initialize NATS
	var nc *nats.Conn
	var natsNotifier *notify.NATSNotifier
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL, nats.Name("pos-checkout"), nats.MaxReconnects(-1))
		if err != nil {
			lg.Fatal("failed to connect nats", zap.Error(err))
		}
		natsNotifier = notify.NewNATSNotifier(nc, cfg.NATSSubject, natsQueueSize, lg)
		observers = append(observers, natsNotifier)
		lg.Info("connected to nats", zap.String("subject", cfg.NATSSubject))
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	// Initialize services
	ledger := service.NewStockLedger(catalog, lg, metrics)
	if err := ledger.Refresh(ctx); err != nil {
		lg.Fatal("failed to load catalog", zap.Error(err))
	}
	lg.Info("catalog loaded", zap.Int("products", len(ledger.Products())))

	scanner := service.NewScanner(catalog, ledger, lg, metrics)

	var reconciler service.StockReconciler = service.OptimisticReconciler{Ledger: ledger}
	if cfg.StockReconcile == "refetch" {
		reconciler = service.RefetchReconciler{Ledger: ledger}
	}

	logNotifier := notify.NewLogNotifier(lg)
	factory := func(id string, events port.Notifier) *service.Terminal {
		notifiers := notify.Multi{logNotifier, events}
		if natsNotifier != nil {
			notifiers = append(notifiers, natsNotifier)
		}
		sequencer := service.NewCheckoutSequencer(mysqlAdapter, ledger, reconciler,
			service.WithFailurePolicy(policy),
			service.WithNotifier(notifiers),
			service.WithSaleObserver(observers),
			service.WithLogger(lg.With(zap.String("session_id", id))),
			service.WithMetrics(metrics),
		)
		return service.NewTerminal(id, service.TerminalDeps{
			Ledger:    ledger,
			Scanner:   scanner,
			Sequencer: sequencer,
			Notifier:  notifiers,
			Metrics:   metrics,
		}, service.WithRequantityPolicy(requantity))
	}

	checks := map[string]handler.Check{
		"mysql": db.PingContext,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if nc != nil {
		checks["nats"] = func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}
	health := handler.NewHealthChecker(checks, lg)
	go health.Run(ctx, healthInterval)

	// Initialize gRPC server
	grpcServer := handler.NewGRPCServer(health)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		lg.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		lg.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			lg.Error("gRPC server error", zap.Error(err))
		}
	}()

	// Initialize HTTP server
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(lg))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	httpHandler := handler.NewHTTPHandler(handler.HandlerConfig{
		Catalog:        catalog,
		Ledger:         ledger,
		Scanner:        scanner,
		Sessions:       handler.NewSessions(factory),
		Cache:          cache,
		History:        mysqlAdapter,
		IdempotencyTTL: cfg.IdempotencyTTL,
		SaleTimeout:    cfg.SaleTimeout,
		Health:         health,
		Logger:         lg,
	})
	httpHandler.Register(router)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		lg.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			lg.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down...")

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	lg.Info("HTTP server stopped")

	// Stop gRPC server
	cancel()
	grpcServer.GracefulStop()
	lg.Info("gRPC server stopped")

	// Drain the event queue
	if natsNotifier != nil {
		natsNotifier.Close()
		nc.Drain()
		lg.Info("nats drained")
	}

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	lg.Info("connections closed")
}

func requestLogger(lg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lg.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
