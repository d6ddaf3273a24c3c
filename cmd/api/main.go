package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/flicky/storefront-api/internal/cache"
	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/handler"
	"github.com/flicky/storefront-api/internal/middleware"
	"github.com/flicky/storefront-api/internal/repository"
	"github.com/flicky/storefront-api/internal/service"
	"github.com/flicky/storefront-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.App.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if cfg.DB.Migrate {
		if err := repository.Migrate(ctx, dbPool); err != nil {
			return err
		}
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to Redis: %w", err)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	var (
		amqpConn  *amqp.Connection
		amqpCh    *amqp.Channel
		publisher service.Publisher
	)
	if cfg.RabbitMQ.Enabled {
		amqpConn, err = amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		defer amqpConn.Close()

		amqpCh, err = amqpConn.Channel()
		if err != nil {
			return fmt.Errorf("open RabbitMQ channel: %w", err)
		}
		defer amqpCh.Close()

		if err := worker.SetupRabbitMQ(amqpCh); err != nil {
			return fmt.Errorf("setup RabbitMQ: %w", err)
		}
		publisher = amqpCh
		log.Info("connected to RabbitMQ")
	} else {
		log.Info("RabbitMQ disabled, inventory is applied inline")
	}

	// Repositories
	adminRepo := repository.NewAdminRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	inventoryRepo := repository.NewInventoryRepository(dbPool)
	settingsRepo := repository.NewSettingsRepository(dbPool)
	cartRepo := repository.NewCartRepository(redisClient, cfg.Cart.TTL)
	tagCache := cache.New(redisClient, cfg.Cache.TTL)

	// Services
	authSvc := service.NewAuthService(adminRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, tagCache, log)
	cartSvc := service.NewCartService(cartRepo, productRepo)
	inventorySvc := service.NewInventoryService(inventoryRepo, tagCache, log)
	orderSvc := service.NewOrderService(orderRepo, cartSvc, inventorySvc, publisher, log)
	settingsSvc := service.NewSettingsService(settingsRepo)

	// Handlers
	secure := cfg.App.Production()
	cartH := handler.NewCartHandler(cartSvc, cfg.Cart.TTL, secure)
	router, err := handler.NewRouter(log, authSvc,
		middleware.RedisRateLimit(redisClient, "login", cfg.Login.RateLimit, cfg.Login.RateWindow),
		handler.Handlers{
			Auth:         handler.NewAuthHandler(authSvc, secure),
			Cart:         cartH,
			Product:      handler.NewProductHandler(productSvc, log),
			AdminProduct: handler.NewAdminProductHandler(productSvc, inventorySvc),
			Order:        handler.NewOrderHandler(orderSvc, cartH),
			Settings:     handler.NewSettingsHandler(settingsSvc, tagCache),
			Health:       handler.NewHealthHandler(dbPool, redisClient, amqpConn),
		})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if amqpCh != nil {
		inventoryWorker := worker.NewInventoryWorker(amqpCh, inventorySvc, redisClient, log)
		g.Go(func() error {
			return inventoryWorker.Run(gctx)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
