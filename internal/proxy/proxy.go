package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
	"github.com/jhagel/anthropic-relay/internal/observability/middleware"
)

// ReadinessChecker reports whether the application is ready to serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Options configures a Proxy.
type Options struct {
	// Adapter performs the protocol translation for both API operations.
	Adapter anthropicadapter.MessagesAdapter
	// Transport is the authenticated outbound transport for backend calls.
	Transport http.RoundTripper
	// AllowedKeys is the inbound API key allow-list.
	AllowedKeys []string
	// MaxRequestBytes caps inbound request bodies.
	MaxRequestBytes int64
	// Readiness backs the readiness probe.
	Readiness ReadinessChecker
}

// Proxy is the HTTP front of the translator: authenticated API routes on the
// Anthropic-style paths, plus unauthenticated probes and a static model list.
type Proxy struct {
	server *http.Server
}

// New assembles the proxy's handler chain and server.
func New(opts Options) (*Proxy, error) {
	if opts.Adapter == nil {
		return nil, errors.New("adapter is required")
	}
	if len(opts.AllowedKeys) == 0 {
		return nil, errors.New("at least one allowed key is required")
	}
	if opts.MaxRequestBytes <= 0 {
		return nil, errors.New("max request bytes must be positive")
	}

	messages := &MessagesHandler{
		Adapter:   opts.Adapter,
		Transport: opts.Transport,
	}
	api := applyMiddlewares(messages,
		BearerAuth(opts.AllowedKeys),
		RequestSizeLimit(opts.MaxRequestBytes),
	)

	mux := http.NewServeMux()
	// Both inbound forms are accepted on both paths; clients pick the
	// path matching their SDK vintage.
	mux.Handle("POST /v1/messages", api)
	mux.Handle("POST /v1/completions", api)
	mux.Handle("GET /v1/models", applyMiddlewares(modelsHandler(), BearerAuth(opts.AllowedKeys)))
	mux.Handle("GET /healthz/live", livenessHandler())
	mux.Handle("GET /healthz/ready", readinessHandler(opts.Readiness))

	handler := applyMiddlewares(mux,
		middleware.RequestIDGeneration,
		middleware.TraceContextExtraction,
		middleware.Logging(slog.Default()),
		middleware.RequestIDPropagation,
		Recovery,
	)

	return &Proxy{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      0, // allow long-running SSE responses
			IdleTimeout:       60 * time.Second,
		},
	}, nil
}

// Start binds addr and serves in the background. Runtime failures after a
// successful bind are delivered on the returned channel.
func (p *Proxy) Start(ctx context.Context, addr string) (<-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}

	slog.InfoContext(ctx, "proxy listening", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := p.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh, nil
}

// Shutdown drains in-flight requests until ctx expires.
func (p *Proxy) Shutdown(ctx context.Context) error {
	return p.server.Shutdown(ctx)
}
