package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kahramana.bh/site/internal/broadcast"
	"kahramana.bh/site/internal/cart"
	"kahramana.bh/site/internal/cms"
	"kahramana.bh/site/internal/handlers"
	"kahramana.bh/site/internal/health"
	"kahramana.bh/site/internal/i18n"
	"kahramana.bh/site/internal/middleware"
	"kahramana.bh/site/internal/order"
	"kahramana.bh/site/internal/platform/config"
	pfirestore "kahramana.bh/site/internal/platform/firestore"
	"kahramana.bh/site/internal/platform/observability"
	"kahramana.bh/site/internal/platform/secrets"
	"kahramana.bh/site/internal/repositories/firestore"
	"kahramana.bh/site/internal/repositories/memory"
	"kahramana.bh/site/internal/repositories/sqlstore"
	"kahramana.bh/site/internal/site"
)

// slotBackend is a cart slot that can report readiness.
type slotBackend interface {
	cart.Slot
	Ping(ctx context.Context) error
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	logger = logger.Named("web")
	started := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := secrets.NewResolver(
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(os.Getenv("KAHRAMANA_SECRET_PROJECT_ID")),
	)
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("failed to close secret resolver", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger = logger.With(zap.String("env", cfg.Server.Environment))

	catalog, err := site.Load(cfg.Site.DataFile)
	if err != nil {
		logger.Fatal("failed to load site data", zap.Error(err))
	}

	slot, closeSlot, err := openSlot(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open cart storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeSlot()

	metrics, err := observability.NewCartMetrics(otel.Meter("kahramana.bh/site/cart"))
	if err != nil {
		logger.Fatal("failed to create cart metrics", zap.Error(err))
	}

	store, err := cart.NewStore(slot, catalog, logger.Named("cart.store"))
	if err != nil {
		logger.Fatal("failed to create cart store", zap.Error(err))
	}
	bus := cart.NewBus(logger.Named("cart.bus"))
	if err := observability.ObserveSubscribers(otel.Meter("kahramana.bh/site/cart"), bus.Subscribers); err != nil {
		logger.Fatal("failed to register stream gauge", zap.Error(err))
	}
	cartService, err := cart.NewService(cart.ServiceDeps{
		Store:       store,
		Bus:         bus,
		Catalog:     catalog,
		AddDebounce: cfg.Cart.AddDebounce,
		Metrics:     metrics,
		Logger:      logger.Named("cart"),
	})
	if err != nil {
		logger.Fatal("failed to create cart service", zap.Error(err))
	}

	broadcaster, closeBroadcaster, err := openBroadcaster(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open broadcaster", zap.String("backend", cfg.Broadcast.Backend), zap.Error(err))
	}
	defer closeBroadcaster()
	instance := uuid.NewString()
	relay, err := broadcast.Attach(bus, broadcaster, instance, logger.Named("broadcast"))
	if err != nil {
		logger.Fatal("failed to attach broadcaster", zap.Error(err))
	}

	ids := order.NewIDGenerator(nil, nil)
	formatter := order.NewFormatter(catalog, ids.Next)
	dispatcher, err := order.NewDispatcher(catalog, formatter, metrics, logger.Named("order"))
	if err != nil {
		logger.Fatal("failed to create order dispatcher", zap.Error(err))
	}

	bundle, err := i18n.Load(cfg.Site.LocalesDir, cfg.Site.DefaultLocale, cfg.Site.Locales)
	if err != nil {
		logger.Fatal("failed to load locales", zap.Error(err))
	}
	views, err := handlers.NewRenderer(os.DirFS(cfg.Site.TemplatesDir), cfg.Server.Dev)
	if err != nil {
		logger.Fatal("failed to parse templates", zap.Error(err))
	}
	var cmsOpts []cms.Option
	if cfg.Server.Dev {
		cmsOpts = append(cmsOpts, cms.WithCacheTTL(0))
	}
	content := cms.NewStore(cfg.Site.ContentDir, []string{cfg.Site.DefaultLocale}, cmsOpts...)

	sessions, err := middleware.NewSessions(cfg.Session.SigningKey, cfg.Session.Secure, logger.Named("session"))
	if err != nil {
		logger.Fatal("failed to configure sessions", zap.Error(err))
	}

	checker, err := health.NewChecker([]health.Check{
		{Name: "cart_slot", Check: slot.Ping},
		{Name: "broadcast", Check: broadcaster.Ping},
	})
	if err != nil {
		logger.Fatal("failed to configure health checks", zap.Error(err))
	}

	router, err := handlers.NewRouter(handlers.Deps{
		Catalog:       catalog,
		Cart:          cartService,
		Bus:           bus,
		Dispatcher:    dispatcher,
		Content:       content,
		Bundle:        bundle,
		Views:         views,
		Sessions:      sessions,
		Health:        checker,
		LocateTimeout: cfg.Cart.LocateTimeout,
		Logger:        logger,
	},
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Trace.ProjectID),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithAllowedOrigins(cfg.CORS.AllowedOrigins...),
		handlers.WithAssets(os.DirFS(filepath.Join(cfg.Site.PublicDir, "assets"))),
		handlers.WithBuildInfo(buildInfoFromEnv(cfg, started)),
	)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		serverLogger.Info("kahramana web listening",
			zap.String("storage", cfg.Storage.Backend),
			zap.String("broadcast", cfg.Broadcast.Backend),
			zap.String("instance", instance),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func openSlot(ctx context.Context, cfg config.Config, logger *zap.Logger) (slotBackend, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageFirestore:
		provider := pfirestore.NewProvider(cfg.Firestore)
		slot, err := firestore.NewSlot(provider, cfg.Firestore.Collection)
		if err != nil {
			_ = provider.Close()
			return nil, nil, err
		}
		return slot, func() {
			if err := provider.Close(); err != nil {
				logger.Warn("failed to close firestore provider", zap.Error(err))
			}
		}, nil
	case config.StoragePostgres, config.StorageMySQL:
		dialect := sqlstore.Dialect(cfg.Storage.Backend)
		db, err := sqlstore.Open(ctx, dialect, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Storage.Migrate {
			if _, err := sqlstore.Migrate(db, dialect, logger.Named("sqlstore")); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		slot, err := sqlstore.NewSlot(db, dialect)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return slot, func() {
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database", zap.Error(err))
			}
		}, nil
	default:
		logger.Warn("cart storage is in-memory; carts are lost on restart")
		return memory.NewSlot(), func() {}, nil
	}
}

func openBroadcaster(ctx context.Context, cfg config.Config, logger *zap.Logger) (broadcast.Broadcaster, func(), error) {
	bl := logger.Named("broadcast")
	closer := func(b broadcast.Broadcaster, extra func() error) func() {
		return func() {
			if err := b.Close(); err != nil {
				bl.Warn("failed to close broadcaster", zap.Error(err))
			}
			if extra == nil {
				return
			}
			if err := extra(); err != nil {
				bl.Warn("failed to close broadcast client", zap.Error(err))
			}
		}
	}
	switch cfg.Broadcast.Backend {
	case config.BroadcastPubSub:
		client, err := pubsub.NewClient(ctx, cfg.Broadcast.PubSubProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub client: %w", err)
		}
		b, err := broadcast.NewPubSub(client, cfg.Broadcast.PubSubTopic, cfg.Broadcast.PubSubSubscription, bl)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return b, closer(b, client.Close), nil
	case config.BroadcastAMQP:
		b, err := broadcast.DialAMQP(cfg.Broadcast.AMQPURL, cfg.Broadcast.AMQPExchange, bl)
		if err != nil {
			return nil, nil, err
		}
		return b, closer(b, nil), nil
	default:
		b := broadcast.NewLocal()
		return b, closer(b, nil), nil
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("KAHRAMANA_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   strings.TrimSpace(os.Getenv("KAHRAMANA_BUILD_COMMIT_SHA")),
		Environment: cfg.Server.Environment,
		StartedAt:   started,
	}
}
