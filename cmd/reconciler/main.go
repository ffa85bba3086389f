package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medbook/appointment-pipeline/internal/appointment"
	"github.com/medbook/appointment-pipeline/internal/config"
	"github.com/medbook/appointment-pipeline/internal/db"
	"github.com/medbook/appointment-pipeline/internal/logger"
	"github.com/medbook/appointment-pipeline/internal/messaging"
	"github.com/medbook/appointment-pipeline/internal/reconcile"
	redisclient "github.com/medbook/appointment-pipeline/internal/redis"
)

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

	zl.Info("reconciler starting up", zap.String("env", cfg.Env))

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

	consumer, err := messaging.NewConsumer(conn, messaging.QueueOutcomes, cfg.Prefetch, zl)
	if err != nil {
		zl.Fatal("rabbitmq consumer error", zap.Error(err))
	}
	defer consumer.Close()
	zl.Info("connected to RabbitMQ")

	store := appointment.NewMongoStore(mongoClient.Database(cfg.MongoDatabase), cfg.RetentionTTL)
	cache := redisclient.NewAppointmentCache(rdb, cfg.CacheTTL, zl)
	rec := reconcile.New(store, cache, zl)

	if err := consumer.Run(rootCtx, rec.Handle); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("consumer stopped", zap.Error(err))
	}

	zl.Info("shutting down reconciler")
}
