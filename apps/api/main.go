package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"os"

	"github.com/tesina/backend/core"
	"github.com/tesina/backend/core/auth"
	"github.com/tesina/backend/core/career"
	"github.com/tesina/backend/core/certificate"
	"github.com/tesina/backend/core/evalplan"
	"github.com/tesina/backend/core/grading"
	"github.com/tesina/backend/core/panel"
	"github.com/tesina/backend/core/user"

	echoapi "github.com/tesina/backend/apps/api/echo"
	emailsvc "github.com/tesina/backend/services/email"
	logsvc "github.com/tesina/backend/services/logger"
	"github.com/tesina/backend/storage/database"
	sqlxrepos "github.com/tesina/backend/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.Conf
	if err := conf.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	appDB := core.WrapDB(db)
	usrRepo := sqlxrepos.NewUserRepository(db)
	careerRepo := sqlxrepos.NewCareerRepository(db)
	planRepo := sqlxrepos.NewPlanRepository(db)
	panelRepo := sqlxrepos.NewPanelRepository(db)
	gradeRepo := sqlxrepos.NewGradeRepository(db)
	certRepo := sqlxrepos.NewCertificateRepository(db)

	usrSvc := user.NewService(appDB, usrRepo)
	authSvc := auth.NewService(careerRepo)
	careerSvc := career.NewService(careerRepo)
	planSvc := evalplan.NewService(planRepo)
	certSvc := certificate.NewService(certRepo, panelRepo, planRepo, gradeRepo)
	panelSvc := panel.NewService(appDB, panelRepo, careerRepo, usrRepo, certSvc, mailSvc, logger)
	gradingSvc := grading.NewService(appDB, gradeRepo, panelRepo, planRepo, careerRepo, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(&echoapi.Options{
		Address:    conf.Server.Address(),
		Logger:     logger,
		UserSvc:    usrSvc,
		AuthSvc:    authSvc,
		CareerSvc:  careerSvc,
		PlanSvc:    planSvc,
		PanelSvc:   panelSvc,
		GradingSvc: gradingSvc,
		CertSvc:    certSvc,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-server.ShutdownSignal()
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
