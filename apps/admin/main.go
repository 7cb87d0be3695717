package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/ervnjmsdnts/ojt/core"
	"github.com/ervnjmsdnts/ojt/core/grant"
	"github.com/ervnjmsdnts/ojt/core/template"
	emailsvc "github.com/ervnjmsdnts/ojt/services/email"
	logsvc "github.com/ervnjmsdnts/ojt/services/logger"
	"github.com/ervnjmsdnts/ojt/storage/database"
	sqlxrepos "github.com/ervnjmsdnts/ojt/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	// set up DB
	sqlDB, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
	defer sqlDB.Close()
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal(err.Error(), err)
	}
	db := sqlxrepos.NewDB(sqlDB)

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	template.InitValidators(validate, translator)
	grant.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	subjects := sqlxrepos.NewSubjectStore(db)
	tmplSvc := template.NewService(db, sqlxrepos.NewTemplateRepository(db), logger)
	grantSvc := grant.NewService(
		db, sqlxrepos.NewGrantRepository(db), tmplSvc, subjects,
		mailService(conf, logger), logger, conf,
	)

	// start CLI
	cli := commandLine{
		db:       sqlDB,
		conf:     conf,
		tmplSvc:  tmplSvc,
		grantSvc: grantSvc,
		subjects: subjects,
		validate: validate,
		out:      os.Stdout,
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("error: "+err.Error(), err)
		}
		sqlDB.Close()
		os.Exit(1)
	}
}

func mailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleServiceMock(conf) // synchronous; the CLI prints the code
	}
	return emailsvc.NewSendgridService(conf, logger, true /* sync */)
}
