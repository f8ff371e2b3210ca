package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammadpnp/bulk-import/internal/config"
	httpecho "github.com/mohammadpnp/bulk-import/internal/interfaces/http/echo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type ServerDeps struct {
	Queue    httpecho.ImportQueue
	Registry httpecho.ErrorRegistry
	Archive  httpecho.ErrorArchive
	Checks   map[string]HealthCheck
}

func NewHTTPServer(cfg config.ServerConfig, deps ServerDeps) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit(cfg.BodyLimit))

	importHandler := httpecho.NewImportHandler(deps.Queue)
	errorHandler := httpecho.NewErrorHandler(deps.Registry, deps.Archive)
	httpecho.RegisterRoutes(server, importHandler, errorHandler)

	server.GET("/healthz", healthHandler(deps.Checks))
	server.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return server
}

func healthHandler(checks map[string]HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		return c.JSON(status, body)
	}
}
