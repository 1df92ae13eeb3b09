package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/rl1809/shop-order/internal/adapter/event"
	"github.com/rl1809/shop-order/internal/adapter/handler"
	"github.com/rl1809/shop-order/internal/adapter/storage"
	"github.com/rl1809/shop-order/internal/config"
	"github.com/rl1809/shop-order/internal/core/service"
	"github.com/rl1809/shop-order/internal/logger"
	"github.com/rl1809/shop-order/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(config.Path())
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.Env)

	// Initialize database
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	if cfg.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate schema")
		}
	}

	// Initialize Redis, optional
	var (
		rdb    *redis.Client
		idem   port.IdempotencyRepository
		images port.ImageRepository = store.Images()
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")

		redisAdapter := storage.NewRedisAdapter(rdb, cfg.Redis.IdempotencyTTL, cfg.Redis.ImageCacheTTL)
		idem = redisAdapter
		images = storage.NewCachedImageRepository(images, redisAdapter, log)
	}

	// Initialize event publisher
	var publisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = event.NewKafkaPublisher(event.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			MaxAttempts:  cfg.Kafka.MaxAttempts,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create kafka publisher")
		}
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing events to kafka")
	} else {
		publisher = event.NewLogPublisher(log)
	}

	// Initialize services
	orderService := service.NewOrderService(store, idem, cfg.Order.EventQueueSize, log)
	historyService := service.NewHistoryService(store.Orders(), images)

	// Start event workers
	dispatcher := event.NewDispatcher(publisher, log)
	dispatcher.Start(cfg.Order.EventWorkers, orderService.GetEventQueue())

	auth := handler.NewTokenAuthority(cfg.Auth.Secret)

	// Initialize gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.AuthInterceptor(auth)))
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(orderService, historyService, cfg.Order.PageSize, log))

	grpcAddr := net.JoinHostPort("", strconv.Itoa(cfg.GRPC.Port))
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", grpcAddr).Msg("failed to listen")
	}

	go func() {
		log.Info().Str("addr", grpcAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orderService, historyService, cfg.Order.PageSize, cfg.Order.MaxPage)
	e := handler.NewEcho(httpHandler, auth, log)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(cfg.HTTP.Port)),
		Handler:      e,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	log.Info().Msg("HTTP server stopped")

	// Stop gRPC server
	grpcServer.GracefulStop()
	log.Info().Msg("gRPC server stopped")

	// Close event queue and wait for workers
	orderService.Close()
	dispatcher.Wait()
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close publisher")
	}
	log.Info().Msg("workers stopped")

	// Close connections
	if rdb != nil {
		rdb.Close()
	}
	store.Close()
	log.Info().Msg("connections closed")
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*storage.SQLStore, error) {
	if cfg.Driver == "mysql" {
		return storage.OpenMySQL(ctx, cfg.DSN, storage.PoolOptions{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	}
	return storage.OpenSQLite(ctx, cfg.DSN)
}
