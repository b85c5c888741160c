package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go-upload-stream/internal/config"
	"go-upload-stream/internal/engine/tus"
	"go-upload-stream/internal/handler"
	"go-upload-stream/internal/middleware"
	"go-upload-stream/internal/router"
	"go-upload-stream/internal/service"
	"go-upload-stream/internal/source"
	"go-upload-stream/internal/uploader"
	"go-upload-stream/internal/websocket"
)

var (
	ErrNothingToUpload = errors.New("no paths given and the control API is disabled")
	ErrInterrupted     = errors.New("upload interrupted")
)

type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	uploader *uploader.Uploader
	service  *service.UploadService
	reporter *Reporter
	hub      *websocket.Hub
	server   *http.Server
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.ValidateUpload(); err != nil {
		return nil, err
	}

	up, err := uploader.New(tus.Constructor, cfg.EngineOptions(logger), uploader.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize uploader: %w", err)
	}

	resolver, err := source.NewResolver(cfg.SourceRoot)
	if err != nil {
		_ = up.Close()
		return nil, fmt.Errorf("failed to initialize source root: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		uploader: up,
		service:  service.NewUploadService(up, resolver, service.OpenTusFile, logger),
		reporter: NewReporter(logger, cfg.ProgressLogInterval),
	}

	if cfg.ControlEnabled() {
		authMiddleware := middleware.NewAuthMiddleware(nil)
		if cfg.ControlJWTSecret != "" {
			tokens, err := service.NewTokenService(cfg.ControlJWTSecret)
			if err != nil {
				_ = up.Close()
				return nil, fmt.Errorf("failed to initialize token service: %w", err)
			}
			authMiddleware = middleware.NewAuthMiddleware(tokens)
		} else {
			logger.Warn("control API authentication disabled", "addr", cfg.ControlAddr)
		}

		a.hub = websocket.NewHub(up.Events(), logger)
		a.server = &http.Server{
			Addr:              cfg.ControlAddr,
			Handler:           router.New(cfg, logger, authMiddleware, handler.NewUploadHandler(a.service), a.hub),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}

	return a, nil
}

// Run submits patterns and blocks until the event stream terminates or ctx
// is done. Without the control API submissions are closed right after the
// initial submit; with it, POST /api/v1/uploads/close ends the session.
func (a *App) Run(ctx context.Context, patterns []string) error {
	detach := a.reporter.Attach(a.uploader.Events())
	defer detach()
	defer a.uploader.Close()

	if a.server == nil && len(patterns) == 0 {
		return ErrNothingToUpload
	}

	serverErr := make(chan error, 1)
	if a.server != nil {
		hubCtx, cancelHub := context.WithCancel(context.Background())
		defer cancelHub()
		go a.hub.Run(hubCtx)

		listener, err := net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
		}
		go func() {
			a.logger.Info("control API listening", "addr", listener.Addr().String())
			if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
		defer a.shutdown()
	}

	if len(patterns) > 0 {
		if _, err := a.service.Submit(ctx, patterns); err != nil {
			return fmt.Errorf("failed to submit files: %w", err)
		}
	}

	if a.server == nil {
		if err := a.service.CloseSubmissions(); err != nil {
			return err
		}
	}

	select {
	case <-a.reporter.Done():
		return a.reporter.Err()
	case <-ctx.Done():
		a.logger.Warn("interrupted, cancelling uploads")
		a.uploader.Cancel()
		return ErrInterrupted
	case err := <-serverErr:
		a.uploader.Cancel()
		return fmt.Errorf("control API failed: %w", err)
	}
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("graceful shutdown failed", "error", err)
		return
	}
	a.logger.Info("control API stopped")
}
