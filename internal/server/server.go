package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vllm-relay/internal/config"
	"vllm-relay/internal/upstream"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readHeaderTimeout   = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	client  *upstream.Client
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, client *upstream.Client) (*Server, error) {
	if client == nil {
		return nil, errors.New("upstream client must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = relayErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	srv := &Server{
		cfg:     cfg,
		client:  client,
		app:     e,
		address: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the HTTP handler for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg)
	slog.Info("starting server", "addr", s.address, "tls", s.cfg.Server.TLSEnabled())

	// No write deadline: streamed generations are long-lived.
	for _, hs := range []*http.Server{s.app.Server, s.app.TLSServer} {
		hs.ReadHeaderTimeout = readHeaderTimeout
		hs.IdleTimeout = idleTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.Server.TLSEnabled() {
			err = s.app.StartTLS(s.address, s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
		} else {
			err = s.app.Start(s.address)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	// RootPath supports path-based routing behind a reverse proxy; the
	// empty prefix registers routes at the root.
	g := s.app.Group(s.cfg.Server.RootPath)
	g.GET("/health", s.handleHealth)
	g.PUT("/generate", s.handleGenerate)
	g.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// requestError pairs an HTTP status with the message written to the client.
type requestError struct {
	Status  int
	Message string
}

func (e requestError) Error() string {
	return e.Message
}

type errorResponse struct {
	Error string `json:"error"`
}

func relayErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.JSON(reqErr.Status, errorResponse{Error: reqErr.Message})
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		_ = c.JSON(httpErr.Code, errorResponse{Error: fmt.Sprintf("%v", httpErr.Message)})
		return
	}

	_ = c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func printStartupBanner(cfg config.Config) {
	scheme := "http"
	if cfg.Server.TLSEnabled() {
		scheme = "https"
	}
	prefix := cfg.Server.RootPath

	fmt.Println()
	fmt.Println("vllm-relay ready")
	fmt.Printf("Listening on %s://%s:%d\n", scheme, cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Endpoints:")
	fmt.Printf("  GET %s/health\n", prefix)
	fmt.Printf("  PUT %s/generate\n", prefix)
	fmt.Printf("  GET %s/metrics\n", prefix)
	if cfg.Upstream.BaseURL == "" {
		fmt.Println("Warning: no vLLM server URL configured; /generate will fail until one is set.")
	} else {
		fmt.Printf("Forwarding to %s\n", cfg.Upstream.BaseURL)
	}
	fmt.Println()
}
