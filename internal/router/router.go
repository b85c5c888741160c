package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-upload-stream/internal/config"
	"go-upload-stream/internal/handler"
	"go-upload-stream/internal/middleware"
	"go-upload-stream/internal/websocket"
)

func New(
	cfg *config.Config,
	logger *slog.Logger,
	authMiddleware *middleware.AuthMiddleware,
	uploadHandler *handler.UploadHandler,
	hub *websocket.Hub,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, "/health")

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", handler.Health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(authMiddleware.RequireAuth)

		api.Get("/events", hub.ServeWS(cfg.CORSOrigins))

		api.Group(func(uploads chi.Router) {
			uploads.Use(middleware.Timeout(cfg.RequestTimeout))

			uploads.Get("/uploads/status", uploadHandler.Status)
			uploads.Post("/uploads", uploadHandler.Submit)
			uploads.Post("/uploads/pause", uploadHandler.Pause)
			uploads.Post("/uploads/resume", uploadHandler.Resume)
			uploads.Post("/uploads/cancel", uploadHandler.Cancel)
			uploads.Post("/uploads/close", uploadHandler.Close)
		})
	})

	return r
}
