package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"nodebase/backend/internal/api"
	"nodebase/backend/internal/auth"
	"nodebase/backend/internal/config"
	"nodebase/backend/internal/logging"
	"nodebase/backend/internal/mcp"
	"nodebase/backend/internal/observability"
	"nodebase/backend/internal/repository"
	"nodebase/backend/internal/services"
	"nodebase/backend/internal/slug"
	"nodebase/backend/internal/tls"
)

const serviceName = "nodebase"

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"okta_client_id", cfg.Auth.ClientID,
		"okta_domain", cfg.Auth.OktaDomain,
		"secret_len", len(cfg.Auth.ClientSecret),
		"swagger_client_id", cfg.Auth.SwaggerClientID,
	)
	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client ID matches the backend client ID; PKCE login from /docs will fail if the backend app requires a secret")
	}

	pool, err := repository.OpenPool(ctx, repository.PoolConfig{
		DSN:      cfg.DSN(),
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	defer pool.Close()
	logger.Info("Database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)

	store := repository.NewPostgresStore(pool, logger)
	if cfg.DB.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
	}

	metricsProvider, err := observability.NewPrometheusProvider()
	if err != nil {
		return err
	}
	defer func() { _ = metricsProvider.Shutdown(context.Background()) }()

	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	defer func() { _ = tracerProvider.Shutdown(context.Background()) }()

	metrics, err := observability.NewMetrics(metricsProvider.Meter())
	if err != nil {
		return err
	}

	workflowService := services.NewWorkflowService(store, slug.NewPetname(), cfg.Pagination, metrics, logger)
	logger.Info("Service layer initialized")

	authz, err := auth.New(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}
	if authz.Bypass() {
		logger.Warn("Authentication bypass is active; every request acts as the dev tenant", "subject", auth.DevSubject)
	}

	e := newEcho(cfg, logger)

	e.GET("/healthz", api.NewHandler(store).HandleHealth)
	e.GET("/metrics", echo.WrapHandler(metricsProvider.Handler))

	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))

	apiGroup := e.Group("/api/v1",
		middleware.ContextTimeout(cfg.Server.RequestTimeout),
		echo.WrapMiddleware(authz.Authenticate),
	)
	api.RegisterHandlers(apiGroup, api.NewServer(workflowService))
	logger.Info("REST API handlers mounted")

	mcpServer := mcp.NewServer(workflowService, api.Version)
	e.Any(mcp.EndpointPath, echo.WrapHandler(authz.Authenticate(mcpServer.Handler())))
	logger.Info("MCP protocol handlers mounted", "path", mcp.EndpointPath)

	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.OktaDomain)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.OktaDomain, cfg.Auth.SwaggerClientID, auth.AllScopes)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(api.OAuthRedirectHandler)))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			generated, err := tls.EnsureCertificate(tls.CertRequest{
				CertFile: cfg.TLS.CertFile,
				KeyFile:  cfg.TLS.KeyFile,
				Hosts:    cfg.TLS.Hostnames,
				ValidFor: cfg.TLS.ValidFor,
			})
			if err != nil {
				serverErrors <- err
				return
			}
			if generated {
				logger.Info("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
			}
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("Server close error", "error", err)
		}
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func newEcho(cfg *config.Config, logger *logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Error("request", append(fields, "error", v.Error)...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.IsDev() {
		e.Debug = true
	}
	return e
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool, err := repository.OpenPool(ctx, repository.PoolConfig{DSN: cfg.DSN()})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.NewPostgresStore(pool, logger).Migrate(ctx); err != nil {
		return err
	}
	logger.Info("Migrations applied")
	return nil
}
