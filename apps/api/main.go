package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/mainino/apps/api/echo"
	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/attendance"
	"github.com/trezcool/mainino/core/dashboard"
	"github.com/trezcool/mainino/core/group"
	"github.com/trezcool/mainino/core/notification"
	"github.com/trezcool/mainino/core/payment"
	"github.com/trezcool/mainino/core/people"
	emailsvc "github.com/trezcool/mainino/services/email"
	logsvc "github.com/trezcool/mainino/services/logger"
	"github.com/trezcool/mainino/storage/database"
	pgrepos "github.com/trezcool/mainino/storage/database/postgres"
	rediscache "github.com/trezcool/mainino/storage/redis"
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

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	pplSvc := people.NewService(pgrepos.NewPeopleRepository(db), mailSvc, conf)
	grpSvc := group.NewService(pgrepos.NewGroupRepository(db), logger)
	attSvc := attendance.NewService(pgrepos.NewAttendanceRepository(db))
	pmtSvc := payment.NewService(pgrepos.NewPaymentRepository(db))

	var cache dashboard.Cache
	if conf.Redis.Enabled {
		statsCache := rediscache.NewStatsCache(conf)
		defer func() { _ = statsCache.Close() }()
		cache = statsCache
	}

	var dashSvc *dashboard.Service
	ntfSvc := notification.NewService(pgrepos.NewNotificationRepository(db), func(ctx context.Context, recipientIDs []string) {
		dashSvc.Invalidate(ctx, recipientIDs)
	})
	dashSvc = dashboard.NewService(pplSvc, grpSvc, attSvc, ntfSvc, cache, logger, conf.UpcomingHorizonDays)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	people.InitValidators(validate, translator)
	group.InitValidators(validate, translator)

	people.LoadCommonPasswords(logger)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			PeopleSvc:       pplSvc,
			GroupSvc:        grpSvc,
			AttendanceSvc:   attSvc,
			PaymentSvc:      pmtSvc,
			NotificationSvc: ntfSvc,
			DashboardSvc:    dashSvc,
			Validate:        validate,
			Translator:      translator,
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

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
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
