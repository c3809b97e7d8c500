package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/globalitacademy/yscip/apps/api/echo"
	"github.com/globalitacademy/yscip/core"
	"github.com/globalitacademy/yscip/core/account"
	"github.com/globalitacademy/yscip/core/course"
	"github.com/globalitacademy/yscip/core/notification"
	"github.com/globalitacademy/yscip/core/project"
	emailsvc "github.com/globalitacademy/yscip/services/email"
	logsvc "github.com/globalitacademy/yscip/services/logger"
	"github.com/globalitacademy/yscip/services/sessionstore"
	"github.com/globalitacademy/yscip/storage/database"
	"github.com/globalitacademy/yscip/storage/database/postgres"
)

const shutdownTimeout = 20 * time.Second

func main() {
	// set up logger
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if core.Conf.Debug {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	// set up DB
	db, err := setUpDB()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	sqlxDB := sqlx.NewDb(db, core.Conf.Database.Engine)
	defer func() { _ = sqlxDB.Close() }()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	acctSvc := account.NewService(postgres.NewAccountRepository(sqlxDB), mailSvc, logger)
	courseSvc := course.NewService(postgres.NewCourseRepository(sqlxDB), logger)
	projectSvc := project.NewService(postgres.NewProjectRepository(sqlxDB), logger)
	notifSvc := notification.NewService(postgres.NewNotificationRepository(sqlxDB), logger)

	sessions, err := sessionstore.NewRedisStore(core.Conf.Redis)
	if err != nil {
		if !core.Conf.Debug {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		logger.Warn(fmt.Sprintf("redis unavailable, falling back to in-memory session store: %v", err))
		sessions = sessionstore.NewMemoryStore()
	}

	// the designated admin must be usable as soon as the app is up; a missing
	// account is fine, registration or the recovery path will create it
	if _, err = acctSvc.EnsureAdminAccount(context.Background()); err != nil && errors.Cause(err) != account.ErrNotFound {
		logger.Error(fmt.Sprintf("ensuring admin account: %v", err), err)
	}

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Address:    core.Conf.Server.Addr,
		AccountSvc: acctSvc,
		CourseSvc:  courseSvc,
		ProjectSvc: projectSvc,
		NotifSvc:   notifSvc,
		Sessions:   sessions,
		Logger:     logger,
	})
	go app.Start()

	// wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
	case <-app.Shutdown():
		logger.Error("fatal server error: Start shutdown...", errors.New("shutdown signaled"))
	}

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = app.Stop(ctx); err != nil {
		logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB() (*sql.DB, error) {
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		return nil, err
	}

	db, err := database.Open(core.Conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
