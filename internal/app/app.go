package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter/openaichat"
	"github.com/jhagel/anthropic-relay/internal/proxy"
)

// App orchestrates the lifecycle of the proxy server and related services.
type App struct {
	cfg    *Config
	proxy  *proxy.Proxy
	health *Health
}

// New wires the token store, outbound transport, adapter, and proxy from the
// validated configuration.
func New(ctx context.Context, cfg *Config) (*App, error) {
	transport, err := cfg.Backend.Auth.NewTransport(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend transport: %w", err)
	}

	health := NewHealth()

	proxyServer, err := proxy.New(proxy.Options{
		Adapter: &openaichat.ChatCompletionAdapter{
			BaseURL: cfg.Backend.URL,
			Model:   cfg.Backend.Model,
		},
		Transport:       transport,
		AllowedKeys:     cfg.AllowedKeys,
		MaxRequestBytes: cfg.MaxRequestBytes,
		Readiness:       health,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:    cfg,
		proxy:  proxyServer,
		health: health,
	}, nil
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection
// for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting proxy server",
		"listen", a.cfg.Listen,
		"backend_url", a.cfg.Backend.URL,
		"backend_model", a.cfg.Backend.Model,
	)
	proxyErrCh, err := a.proxy.Start(gCtx, a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)
	a.health.SetReady(true)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()
	a.health.SetReady(false)

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
