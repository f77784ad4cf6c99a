package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_storefront/internal/cache"
	h "github.com/fjod/go_storefront/internal/http"
	"github.com/fjod/go_storefront/internal/logger"
	"github.com/fjod/go_storefront/internal/publisher"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/internal/store"
)

type backend struct {
	products repository.ProductRepository
	stock    repository.StockLedger
	orders   repository.OrderRepository
	outbox   repository.OutboxRepository
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newMemoryBackend() *backend {
	s := store.NewMemoryStore()
	return &backend{products: s, stock: s, orders: s, outbox: s}
}

func newPersistentBackend(ctx context.Context, cfg *Config) (*backend, error) {
	b := &backend{}

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			slog.Error("failed to disconnect from MongoDB", "error", err)
		}
	})
	slog.Info("connected to MongoDB", "db", cfg.MongoDBName)

	products := repository.NewMongoProductRepository(mongoDB)
	if err := products.CreateIndexes(ctx); err != nil {
		b.Close()
		return nil, err
	}
	b.products, b.stock = products, products

	orders, err := repository.NewPostgresOrderRepository(cfg.Postgres)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.closers = append(b.closers, func() { _ = orders.Close() })

	if err := orders.RunMigrations(cfg.Postgres); err != nil {
		b.Close()
		return nil, err
	}
	slog.Info("database migrations completed")
	b.orders, b.outbox = orders, orders
	return b, nil
}

type services struct {
	catalog *service.CatalogService
	carts   *service.CartService
	orders  *service.OrderService
}

// newServices wires placement to the catalog store itself. The product cache serves browsing
// only, so a stale entry can never become an order's price snapshot.
func newServices(b *backend, productCache cache.ProductCache, cartStore cache.CartStore, cfg *Config) *services {
	catalog := service.NewCatalogService(b.products, productCache)
	return &services{
		catalog: catalog,
		carts:   service.NewCartService(cartStore, catalog),
		orders: service.NewOrderService(b.orders, b.products, b.stock, catalog, service.OrderOptions{
			Mode:      cfg.Placement,
			Shortfall: cfg.Shortfall,
			Lifecycle: cfg.Lifecycle,
		}),
	}
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(os.Stdout, cfg.LogLevel)
	slog.Info("storefront starting", "backend", cfg.StorageBackend, "placement", cfg.Placement, "shortfall", cfg.Shortfall)

	ctx := context.Background()
	var wg sync.WaitGroup

	var b *backend
	if cfg.StorageBackend == BackendPersistent {
		b, err = newPersistentBackend(ctx, cfg)
		if err != nil {
			slog.Error("failed to initialise storage", "error", err)
			os.Exit(1)
		}
	} else {
		b = newMemoryBackend()
	}
	defer b.Close()

	if err := store.Seed(ctx, b.products); err != nil {
		slog.Error("failed to seed catalog", "error", err)
		os.Exit(1)
	}

	var (
		productCache cache.ProductCache = cache.NoopProductCache{}
		cartStore    cache.CartStore    = cache.NewMemoryCartStore()
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		slog.Info("redis ping succeeded", "addr", cfg.RedisAddr)

		productCache = cache.NewGuardedCache(cache.NewRedisProductCache(redisClient))
		cartStore = cache.NewRedisCartStore(redisClient)
	}

	svcs := newServices(b, productCache, cartStore, cfg)

	var poller *publisher.OutboxPoller
	if len(cfg.KafkaBrokers) > 0 {
		poller = publisher.NewOutboxPoller(b.outbox, cfg.KafkaBrokers...)
		slog.Info("publishing order events to kafka", "brokers", cfg.KafkaBrokers, "topic", publisher.OrderEventsTopic)
	} else {
		poller = publisher.NewOutboxPollerWithWriter(b.outbox, publisher.NewLogWriter())
		slog.Info("KAFKA_BROKERS not set, order events are logged only")
	}
	pollerCtx, pollerCancel := context.WithCancel(ctx)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollerCtx)
	}()

	router := h.NewRouter(h.Handlers{
		Products: h.NewProductHandler(svcs.catalog, cfg.RequestTimeout),
		Carts:    h.NewCartHandler(svcs.carts, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(svcs.orders, svcs.carts, cfg.RequestTimeout),
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("storefront listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	pollerCancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		slog.Info("outbox poller stopped cleanly")
	case <-shutdownCtx.Done():
		slog.Warn("outbox poller didn't stop in time")
	}

	if err := poller.Close(); err != nil {
		slog.Error("failed to close event writer", "error", err)
	}
	slog.Info("server exited")
}
