package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/auth"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Logger     core.Logger
		UserSvc    *user.Service
		AuthSvc    *auth.Service
		CareerSvc  *career.Service
		PlanSvc    *evalplan.Service
		PanelSvc   *panel.Service
		GradingSvc *grading.Service
		CertSvc    *certificate.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, syscall.SIGINT, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.opts.UserSvc, s.opts.AuthSvc)
	registerCatalogAPI(v1, jwt, s.opts.CareerSvc, s.opts.PlanSvc)
	registerPanelAPI(v1, jwt, s.opts.PanelSvc, s.opts.CertSvc, s.opts.GradingSvc)
	registerGradingAPI(v1, jwt, s.opts.GradingSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// signalShutdown fakes a termination signal when a shutdown error bubbles up.
func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Tesina API!")
}
