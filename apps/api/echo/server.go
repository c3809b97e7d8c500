package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/course"
	"github.com/globalitacademy/yscip/core/notification"
	"github.com/globalitacademy/yscip/core/project"
	"github.com/globalitacademy/yscip/services/sessionstore"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		AccountSvc     account.Service
		CourseSvc      course.Service
		ProjectSvc     project.Service
		NotifSvc       notification.Service
		Sessions       sessionstore.Store
		Logger         core.Logger
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
		// Shutdown signals fatal errors caught by the error handler.
		Shutdown() <-chan struct{}
	}

	server struct {
		opts *Options
		app  *echo.Echo

		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}, 1),
	}
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
	revoked := revocationMiddleware(s.opts.Sessions)

	registerAccountAPI(v1, jwt, revoked, s.opts.AccountSvc, s.opts.NotifSvc, s.opts.Sessions, s.opts.Logger)
	registerCourseAPI(v1, jwt, revoked, s.opts.CourseSvc, s.opts.AccountSvc, s.opts.Logger)
	registerProjectAPI(v1, jwt, revoked, s.opts.ProjectSvc, s.opts.NotifSvc, s.opts.AccountSvc, s.opts.Logger)
	registerNotificationAPI(v1, jwt, revoked, s.opts.NotifSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Shutdown() <-chan struct{} { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to YSCIP API!")
}
