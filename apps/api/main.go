package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/proctor/apps/api/echo"
	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
	emailsvc "github.com/trezcool/proctor/services/email"
	logsvc "github.com/trezcool/proctor/services/logger"
	"github.com/trezcool/proctor/storage/database"
	inmemdb "github.com/trezcool/proctor/storage/database/inmem"
	sqlxrepos "github.com/trezcool/proctor/storage/database/sqlx"
	"github.com/trezcool/proctor/storage/evidence"
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
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	evLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "EVIDENCE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	evLogger.Enable(!conf.Debug)

	// set up the live store
	mem, err := inmemdb.Open()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up row store: %v", err), err)
	}

	// set up the archive (optional)
	var archive exam.ArchiveRepository
	if conf.Database.Enabled() {
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		archive = sqlxrepos.NewArchiveRepository(db)
	} else {
		logger.Warn("no archive database configured: rooms are not exported on purge")
	}

	// set up evidence capture
	sink, err := evidence.NewSink(conf.Evidence.Root)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up evidence sink: %v", err), err)
	}
	queue := evidence.NewQueue(sink, conf.Evidence.Workers, conf.Evidence.QueueSize, conf.Evidence.Timeout)
	defer queue.Close()

	go func() {
		for err := range queue.Errors() {
			evLogger.Warn(err.Error(), err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	examSvc := exam.NewService(exam.Deps{
		Conf:      conf,
		Logger:    logger,
		Rooms:     inmemdb.NewRoomRepository(mem),
		Sessions:  inmemdb.NewSessionRepository(mem),
		Incidents: inmemdb.NewIncidentRepository(mem),
		Evidence:  queue,
		Archive:   archive,
		Mailer:    mailSvc,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	proctor.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("rows", expvar.Func(func() interface{} { return mem.Store().Stats() }))
	expvar.Publish("evidenceFailed", expvar.Func(func() interface{} { return queue.Failed() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			ExamSvc:    examSvc,
			Validate:   validate,
			Translator: translator,
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

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
