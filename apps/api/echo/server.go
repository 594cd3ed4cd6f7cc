package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/yles/portal/core"
	"github.com/yles/portal/core/access"
	"github.com/yles/portal/core/module"
	"github.com/yles/portal/core/progress"
	"github.com/yles/portal/core/team"
	metricsvc "github.com/yles/portal/services/metrics"
)

type (
	Deps struct {
		Logger      core.Logger
		Validate    *validator.Validate
		Translator  ut.Translator
		Metrics     *metricsvc.Manager
		TeamSvc     *team.Service
		ModuleSvc   *module.Service
		ProgressSvc *progress.Service
		Guard       *access.Guard
		StatusCheck func(ctx context.Context) error // store readiness; nil means always ready
	}

	Server struct {
		conf     *core.Config
		deps     *Deps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(conf *core.Config, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", home)
	s.app.GET("/health", s.health)

	jwt := middleware.JWTWithConfig(newJWTConfig(s.conf))
	v1 := s.app.Group("/v1", jwt, actorMiddleware(s.conf.JWTAudience))

	registerTeamAPI(v1, s.deps.TeamSvc, s.deps.ProgressSvc, s.deps.Guard)
	registerLedgerAPI(v1, s.deps.Guard)
	registerModuleAPI(v1, s.deps.ModuleSvc, s.deps.Validate)
	registerProgressAPI(v1, s.deps.Guard, s.deps.Validate)
}

// Start listens until the server is shut down; listener errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// health reports whether the store can be reached.
func (s *Server) health(ctx echo.Context) error {
	if s.deps.StatusCheck != nil {
		if err := s.deps.StatusCheck(ctx.Request().Context()); err != nil {
			return errors.Wrap(core.ErrStorageUnavailable, err.Error())
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to the event portal API!")
}
