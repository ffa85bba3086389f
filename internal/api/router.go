package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/medbook/appointment-pipeline/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	Mongo   *mongo.Client
	Redis   *redis.Client
	Log     *zap.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	validate := validator.New()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.Mongo, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Appointment endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Service, validate))
	r.Get("/appointments/{insuredId}", listAppointmentsHandler(cfg.Service))

	return r
}
