package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	echoapi "github.com/ervnjmsdnts/ojt/apps/api/echo"
	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/response"
	"github.com/ervnjmsdnts/ojt/core/template"
	blobsvc "github.com/ervnjmsdnts/ojt/services/blob"
	emailsvc "github.com/ervnjmsdnts/ojt/services/email"
	logsvc "github.com/ervnjmsdnts/ojt/services/logger"
	"github.com/ervnjmsdnts/ojt/storage/database"
	sqlxrepos "github.com/ervnjmsdnts/ojt/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up DB
	sqlDB, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = sqlDB.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	db := sqlxrepos.NewDB(sqlDB)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	blobs, err := blobsvc.NewFileStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up media storage: %v", err), err)
	}

	tmplSvc := template.NewService(db, sqlxrepos.NewTemplateRepository(db), logger)
	grantSvc := grant.NewService(db, sqlxrepos.NewGrantRepository(db), tmplSvc, sqlxrepos.NewSubjectStore(db), mailSvc, logger, conf)
	respSvc := response.NewService(db, sqlxrepos.NewResponseRepository(db), grantSvc, tmplSvc, blobs, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	template.InitValidators(validate, translator)
	grant.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Grant Expiry Job

	jobs := cron.New()
	if _, err = jobs.AddFunc(conf.Grant.ExpirySchedule, func() {
		if _, err := grantSvc.ExpireStale(context.Background()); err != nil {
			logger.Error(fmt.Sprintf("expiring stale grants: %v", err), err)
		}
	}); err != nil {
		logger.Fatal(fmt.Sprintf("scheduling grant expiry %q: %v", conf.Grant.ExpirySchedule, err), err)
	}
	jobs.Start()
	defer jobs.Stop()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			TemplateSvc: tmplSvc,
			GrantSvc:    grantSvc,
			ResponseSvc: respSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
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
