package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "portfolio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg.Server.Environment); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer syncLogger()

	if cfg.isProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	sqlStore := NewSQLStore(db)

	checks := map[string]func(context.Context) error{"sqlite": sqlStore.Ping}
	var kv KVStore = sqlStore
	if cfg.Redis.Addr != "" {
		client, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		redisStore := NewRedisStore(client, cfg.Redis.TTL)
		kv = redisStore
		checks["redis"] = redisStore.Ping
		logger().Info("preferences stored in redis", zap.String("addr", cfg.Redis.Addr))
	}

	content, err := LoadCanonicalContent()
	if err != nil {
		return err
	}
	retranslator := NewRetranslator(NewGoogleTranslator(cfg.Translation), cfg.Translation.SourceLanguage, cfg.Translation.Concurrency)
	localizers := NewLocalizerRegistry(kv, retranslator, content, cfg.Server.LocalizerIdleTTL)
	games := NewGameManager(cfg.Game, nil, sqlStore)
	counter := NewVisitorCounter(kv)

	srv := &Server{
		cfg:          cfg,
		kv:           kv,
		sql:          sqlStore,
		retranslator: retranslator,
		localizers:   localizers,
		games:        games,
		counter:      counter,
		mailer:       newSMTPMailer(cfg.SMTP),
		checks:       checks,
	}
	if cfg.Server.TrackVisitors {
		srv.tracker = NewVisitorTracker(sqlStore, counter)
		logger().Info("visitor tracking enabled with hashed IP addresses")
	}
	srv.admin = newAdminAuth(cfg.Admin, cfg.isProduction())

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		localizers.Run(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		games.Run(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		runVisitCleanup(gctx, sqlStore, 24*time.Hour)
		return nil
	})
	g.Go(func() error {
		logger().Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("environment", cfg.Server.Environment),
			zap.String("source_language", cfg.Translation.SourceLanguage),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger().Error("server stopped with error", zap.Error(err))
		return err
	}
	logger().Info("server stopped")
	return nil
}

// runVisitCleanup drops page views past the retention window, once at
// startup and then on every tick.
func runVisitCleanup(ctx context.Context, store *SQLStore, every time.Duration) {
	cleanup := func() {
		removed, err := store.CleanupVisits(ctx, visitRetention)
		if err != nil {
			logger().Warn("error cleaning up old visitor data", zap.Error(err))
			return
		}
		if removed > 0 {
			logger().Info("privacy cleanup removed old visitor records", zap.Int64("removed", removed))
		}
	}

	cleanup()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanup()
		}
	}
}
