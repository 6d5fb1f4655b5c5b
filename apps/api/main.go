package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/jifunze/apps/api/echo"
	"github.com/trezcool/jifunze/core"
	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/activity"
	"github.com/trezcool/jifunze/core/progress"
	"github.com/trezcool/jifunze/core/session"
	"github.com/trezcool/jifunze/services/cache"
	emailsvc "github.com/trezcool/jifunze/services/email"
	logsvc "github.com/trezcool/jifunze/services/logger"
	"github.com/trezcool/jifunze/services/metrics"
	"github.com/trezcool/jifunze/storage/database"
	inmemdb "github.com/trezcool/jifunze/storage/database/inmem"
	sqlxrepos "github.com/trezcool/jifunze/storage/database/sqlx"
)

type repositories struct {
	account  account.Repository
	activity activity.Repository
	progress progress.Repository
}

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

	if err := conf.Check(); err != nil {
		logger.Fatal(fmt.Sprintf("checking config: %v", err), err)
	}

	// set up storage
	var repos repositories
	switch conf.Database.Engine {
	case "memory":
		logger.Warn("Using the in-memory database: data is lost on restart")
		db := inmemdb.Open()
		repos = repositories{
			account:  inmemdb.NewAccountRepository(db),
			activity: inmemdb.NewActivityRepository(db),
			progress: inmemdb.NewProgressRepository(db),
		}
	default:
		db, err := setUpDB(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
		repos = repositories{
			account:  sqlxrepos.NewAccountRepository(db),
			activity: sqlxrepos.NewActivityRepository(db),
			progress: sqlxrepos.NewProgressRepository(db),
		}
	}

	// set up reset code store
	var kv core.KeyValueStore
	switch conf.Cache.Backend {
	case "redis":
		rdb, err := cache.NewRedisClient(context.Background(), conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
		}
		defer func() { _ = rdb.Close() }()
		kv = cache.NewRedisStore(rdb)
	default:
		kv = cache.NewMemoryStore()
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
	}
	accSvc := account.NewService(repos.account, kv, mailSvc, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	activity.InitValidators(validate, translator)

	if err := core.ParseEmailTemplates(); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)
	expvar.NewString("cache").Set(conf.Cache.Backend)

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
			AccountSvc: accSvc,
			Sessions:   session.NewManager(conf),
			Recorder:   activity.NewRecorder(repos.activity, accSvc),
			Aggregator: progress.NewAggregator(repos.progress, accSvc),
			Metrics:    metrics.New(),
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
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
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
