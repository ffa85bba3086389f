package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medbook/appointment-pipeline/internal/api"
	"github.com/medbook/appointment-pipeline/internal/appointment"
	"github.com/medbook/appointment-pipeline/internal/config"
	"github.com/medbook/appointment-pipeline/internal/db"
	"github.com/medbook/appointment-pipeline/internal/logger"
	"github.com/medbook/appointment-pipeline/internal/messaging"
	redisclient "github.com/medbook/appointment-pipeline/internal/redis"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zl.Sync()

	zl.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Mongo
	mongoCtx, cancelMongo := context.WithTimeout(rootCtx, 10*time.Second)
	mongoClient, err := db.ConnectMongo(mongoCtx, cfg.MongoURI)
	cancelMongo()
	if err != nil {
		zl.Fatal("mongo connection error", zap.Error(err))
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			zl.Warn("error closing mongo", zap.Error(err))
		}
	}()
	zl.Info("connected to Mongo")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		zl.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			zl.Warn("error closing redis", zap.Error(err))
		}
	}()
	zl.Info("connected to Redis")

	// Connect RabbitMQ
	conn, err := messaging.Connect(cfg.RabbitURL)
	if err != nil {
		zl.Fatal("rabbitmq connection error", zap.Error(err))
	}
	defer conn.Close()
	if err := messaging.DeclareTopology(conn, []string{"PE", "CL"}); err != nil {
		zl.Fatal("rabbitmq topology error", zap.Error(err))
	}
	publisher, err := messaging.NewPublisher(conn, zl)
	if err != nil {
		zl.Fatal("rabbitmq publisher error", zap.Error(err))
	}
	defer publisher.Close()
	zl.Info("connected to RabbitMQ")

	store := appointment.NewMongoStore(mongoClient.Database(cfg.MongoDatabase), cfg.RetentionTTL)
	idxCtx, cancelIdx := context.WithTimeout(rootCtx, 10*time.Second)
	err = store.EnsureIndexes(idxCtx)
	cancelIdx()
	if err != nil {
		zl.Fatal("mongo index error", zap.Error(err))
	}

	cache := redisclient.NewAppointmentCache(rdb, cfg.CacheTTL, zl)
	svc := appointment.NewService(store, publisher, cache, zl)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Mongo:   mongoClient,
		Redis:   rdb,
		Log:     zl,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server error", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	zl.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown error", zap.Error(err))
	}
}
