package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/hilstonwill/contact-api/internal/config"
	"github.com/hilstonwill/contact-api/internal/contact"
	"github.com/hilstonwill/contact-api/internal/logging"
	"github.com/hilstonwill/contact-api/internal/origin"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
)

const tracerName = "github.com/hilstonwill/contact-api/internal/api"

// SubmissionHandler is the contact use case the server delegates to.
type SubmissionHandler interface {
	Handle(ctx context.Context, s contact.Submission) (contact.Outcome, error)
}

type Server struct {
	config  config.HTTPConfig
	contact SubmissionHandler
	origins *origin.Policy
	logger  *slog.Logger
	echo    *echo.Echo
}

func NewServer(cfg config.HTTPConfig, handler SubmissionHandler, origins *origin.Policy, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	server := &Server{
		config:  cfg,
		contact: handler,
		origins: origins,
		logger:  logger,
		echo:    e,
	}
	e.HTTPErrorHandler = server.handleError

	server.setupMiddleware()
	server.setupRoutes()
	return server
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Use(tracing(otel.Tracer(tracerName)))
	s.echo.Use(requestLogger(s.logger))
	s.echo.Use(accessLog(s.logger))

	// The gate runs before CORS so rejected origins never get CORS headers.
	s.echo.Use(originGate(s.origins))
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(o string) (bool, error) {
			return s.origins.Allow(o), nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	if s.config.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.config.BodyLimit))
	}
}

func (s *Server) setupRoutes() {
	s.echo.GET("/", s.handleLiveness)
	for _, path := range s.config.ContactPaths {
		s.echo.POST(path, s.handleContact)
	}
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// handleError keeps framework errors (404, 405, 413, recovered panics) in the
// same {ok, message} envelope as the contact route.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("request failed", "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, response{OK: false, Message: message})
}
