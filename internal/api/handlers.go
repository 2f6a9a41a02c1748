package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"nodebase/backend/internal/apperror"
	"nodebase/backend/pkg/models"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains the operational HTTP handlers
type Handler struct {
	db Pinger
}

// NewHandler creates a new Handler with required dependencies
func NewHandler(db Pinger) *Handler {
	return &Handler{db: db}
}

// HandleHealth reports service health, pinging the database.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := models.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "nodebase",
		Version:   Version,
		Checks:    map[string]string{"database": "ok"},
	}
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		status.Status = "degraded"
		status.Checks["database"] = "unreachable"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

var kindStatus = map[apperror.Kind]int{
	apperror.KindUnauthenticated: http.StatusUnauthorized,
	apperror.KindForbidden:       http.StatusForbidden,
	apperror.KindNotFound:        http.StatusNotFound,
	apperror.KindValidation:      http.StatusBadRequest,
	apperror.KindConflict:        http.StatusConflict,
	apperror.KindStore:           http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind apperror.Kind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders every error as an RFC 7807 problem document.
func ErrorHandler(logger Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		problem := models.ProblemDetails{
			Type:     "about:blank",
			Instance: c.Request().URL.Path,
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			problem.Status = he.Code
			if msg, ok := he.Message.(string); ok {
				problem.Detail = msg
			} else {
				problem.Detail = http.StatusText(he.Code)
			}
		} else {
			appErr := apperror.As(err)
			problem.Status = StatusFor(appErr.Kind)
			problem.Kind = string(appErr.Kind)
			problem.Detail = appErr.Message
			if appErr.Kind == apperror.KindStore {
				logger.Error("request failed", "path", c.Request().URL.Path, "error", err)
			}
		}
		problem.Title = http.StatusText(problem.Status)

		if sc := trace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
			problem.TraceID = sc.TraceID().String()
		}

		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(problem.Status)
		} else {
			err = c.JSON(problem.Status, problem)
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}
