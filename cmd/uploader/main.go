package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"go-upload-stream/internal/app"
	"go-upload-stream/internal/config"
	"go-upload-stream/internal/logger"
	"go-upload-stream/internal/service"
)

type CLI struct {
	Upload UploadCmd `cmd:"" default:"withargs" help:"Upload files to the tus endpoint."`
	Token  TokenCmd  `cmd:"" help:"Print a bearer token for the control API."`
}

type UploadCmd struct {
	Paths []string `arg:"" optional:"" help:"Files or glob patterns, relative to UPLOAD_SOURCE_ROOT."`
}

type TokenCmd struct {
	Subject string        `default:"${USER}" help:"Token subject."`
	TTL     time.Duration `default:"24h" help:"Token lifetime."`

	out io.Writer `kong:"-"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("uploader"),
		kong.Description("Resumable tus uploads with a live event stream."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"USER": userName()},
	)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cfg.Level())
	slog.SetDefault(log)

	if err := ctx.Run(cfg, log); err != nil {
		if errors.Is(err, app.ErrInterrupted) {
			os.Exit(130)
		}
		log.Error("uploader failed", "error", err)
		os.Exit(1)
	}
}

func (c *UploadCmd) Run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	return application.Run(ctx, c.Paths)
}

func (c *TokenCmd) Run(cfg *config.Config) error {
	tokens, err := service.NewTokenService(cfg.ControlJWTSecret)
	if err != nil {
		return fmt.Errorf("CONTROL_JWT_SECRET: %w", err)
	}

	token, err := tokens.IssueToken(c.Subject, c.TTL)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func userName() string {
	u, err := user.Current()
	if err != nil {
		return "operator"
	}
	return u.Username
}
