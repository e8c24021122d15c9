package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/config"
	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/gateway"
	"github.com/spinsa/inventario/internal/handler"
	"github.com/spinsa/inventario/internal/queue"
	"github.com/spinsa/inventario/internal/repository"
	"github.com/spinsa/inventario/internal/router"
	queuepublisher "github.com/spinsa/inventario/internal/service"
	"github.com/spinsa/inventario/internal/session"
	"github.com/spinsa/inventario/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := config.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn := database.NewProvider(database.Options{
		Driver:  cfg.DBDriver,
		User:    cfg.DBUser,
		Pass:    cfg.DBPass,
		Host:    cfg.DBHost,
		Port:    cfg.DBPort,
		Name:    cfg.DBName,
		Path:    cfg.DBPath,
		Migrate: cfg.DBMigrate,
	}, logger)
	defer conn.Close()
	// Connect eagerly so a bad configuration shows up in the startup log;
	// the failure is memoized and every command reports it.
	if _, err := conn.Get(ctx); err != nil {
		logger.Error("database unavailable, commands will report it", slog.Any("error", err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Info("redis disabled or unreachable; throttle, rate limit and cache pass through")
	} else {
		defer rdb.Close()
	}

	store := session.NewStore(cfg.DataDir, logger)
	users := repository.NewUserRepo(conn)
	throttle := auth.NewThrottle(config.LoadLoginThrottleConfig(), rdb, logger)
	authSvc := auth.NewService(users, store, throttle, logger)
	hub := handler.NewHub(logger)

	deps := gateway.Deps{
		Auth:             authSvc,
		Sessions:         store,
		Users:            users,
		Brands:           repository.NewBrandRepo(conn),
		Pieces:           repository.NewPieceRepo(conn),
		Inventories:      repository.NewInventoryRepo(conn),
		Productions:      repository.NewProductionRepo(conn),
		Shell:            hub,
		Logger:           logger,
		ViewReadyTimeout: cfg.ViewReadyTimeout,
	}
	if cfg.AMQPEnabled {
		deps.Publisher = queuepublisher.New(cfg.RabbitMQURL, logger)
	}
	gw := gateway.New(deps)
	defer gw.Close()

	tok, err := utils.NewBridgeToken(cfg.BridgeSecret, cfg.BridgeTokenTTL)
	if err != nil {
		log.Fatalf("mint bridge token: %v", err)
	}
	tokenPath, err := utils.WriteTokenFile(cfg.DataDir, tok)
	if err != nil {
		log.Fatalf("write bridge token: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	router.RegisterRoutes(e, router.Deps{
		Invoke:       handler.NewInvokeHandler(gw, logger),
		Hub:          hub,
		Health:       handler.NewHealthHandler(conn),
		Sessions:     store,
		BridgeSecret: cfg.BridgeSecret,
		RateLimit:    config.LoadRateLimitConfig(),
		Cache:        config.LoadCacheConfig(),
		Redis:        rdb,
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			slog.String("addr", cfg.Addr),
			slog.String("env", cfg.Env),
			slog.String("token_file", tokenPath),
			slog.Time("token_expires", tok.Exp))
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.AMQPEnabled {
		g.Go(func() error {
			err := queue.StartMovementConsumer(gctx, cfg.RabbitMQURL, filepath.Join(cfg.DataDir, "logs"), logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		hub.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
