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
	"github.com/medbook/appointment-pipeline/internal/schedule"
	"github.com/medbook/appointment-pipeline/internal/worker"
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

	country := appointment.CountryISO(cfg.CountryISO)
	if !country.Valid() {
		zl.Fatal("COUNTRY_ISO must be PE or CL", zap.String("countryISO", cfg.CountryISO))
	}

	zl.Info("reservation-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("countryISO", string(country)))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect this country's schedule store
	dsn, err := cfg.PostgresDSN(string(country))
	if err != nil {
		zl.Fatal("schedule store config error", zap.Error(err))
	}
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, dsn)
	cancelPg()
	if err != nil {
		zl.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	zl.Info("connected to schedule store")

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

	consumer, err := messaging.NewConsumer(conn, messaging.CountryQueue(string(country)), cfg.Prefetch, zl)
	if err != nil {
		zl.Fatal("rabbitmq consumer error", zap.Error(err))
	}
	defer consumer.Close()
	zl.Info("connected to RabbitMQ")

	w := worker.New(country, schedule.NewPgStore(pgPool), publisher, zl)

	if err := consumer.Run(rootCtx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
		zl.Error("consumer stopped", zap.Error(err))
	}

	zl.Info("shutting down reservation-worker")
}
