package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/audit"
	"github.com/iliyamo/trip-reservation/internal/config"
	"github.com/iliyamo/trip-reservation/internal/database"
	"github.com/iliyamo/trip-reservation/internal/handler"
	"github.com/iliyamo/trip-reservation/internal/jobs"
	"github.com/iliyamo/trip-reservation/internal/logger"
	"github.com/iliyamo/trip-reservation/internal/notify"
	"github.com/iliyamo/trip-reservation/internal/queue"
	"github.com/iliyamo/trip-reservation/internal/repository"
	"github.com/iliyamo/trip-reservation/internal/router"
	"github.com/iliyamo/trip-reservation/internal/service"
)

// itinerarySource joins the client lookup with the reservation listing.
type itinerarySource struct {
	*repository.ReferenceStore
	*repository.ReservationRepo
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// the logger is not configured yet
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db, log); err != nil {
			return err
		}
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable, cache and rate limit disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	clients := repository.NewClientRepo(db)
	trips := repository.NewTripRepo(db)
	reservations := repository.NewReservationRepo(db)
	ledger := repository.NewInventoryLedger(db)
	auditRepo := repository.NewAuditRepo(db)
	refs := repository.NewReferenceStore(clients, trips)

	var mailer notify.Mailer = notify.LogMailer{Log: log}
	if cfg.SMTP.Host != "" {
		m, err := notify.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			return err
		}
		mailer = m
	}
	loc, err := time.LoadLocation(cfg.SMTP.Timezone)
	if err != nil {
		log.Warn("unknown NOTIFY_TIMEZONE, using UTC", zap.String("tz", cfg.SMTP.Timezone))
		loc = time.UTC
	}

	local := queue.Fanout{
		audit.NewRecorder(auditRepo),
		notify.NewItineraryNotifier(itinerarySource{refs, reservations}, mailer, loc, log),
		notify.NewActivationNotifier(mailer, cfg.SMTP.PublicURL),
	}

	// With a broker, events go out through RabbitMQ and come back through the
	// consumer, so a crash after commit does not lose them once published.
	var sink queue.Handler = local
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.EventsQueue, log)
		defer pub.Close()
		sink = pub
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.EventsQueue, local, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}
	events := queue.NewDispatcher(sink, log, cfg.EventsBuffer, cfg.EventsWorkers, 0)
	defer events.Close()

	bookingCfg := service.BookingConfig{MaxAttempts: cfg.BookingMaxAttempts, RetryBackoff: cfg.BookingRetryBackoff}
	booking := service.NewBookingEngine(refs, reservations, ledger, events, log, bookingCfg)
	tripSvc := service.NewTripService(trips, ledger, log, bookingCfg)
	clientSvc := service.NewClientService(clients, log)
	authSvc := service.NewAuthService(users, tokens, events, service.AuthConfig{
		JWTSecret:           cfg.JWTSecret,
		AccessTTLMin:        cfg.AccessTTLMin,
		RefreshTTLDays:      cfg.RefreshTTLDays,
		BcryptCost:          cfg.BcryptCost,
		LoginMaxAttempts:    cfg.LoginMaxAttempts,
		BootstrapAdminEmail: cfg.BootstrapAdminEmail,
	}, log)
	backup := service.NewBackupService(repository.NewBackupRepo(db), events, log)
	auditLog := service.NewAuditLog(auditRepo, log)

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}
	if cfg.ReconcileInterval > 0 {
		rec := jobs.NewReconciler(db, ledger, cfg.ReconcileRepair, log)
		if _, err := rec.Schedule(scheduler, cfg.ReconcileInterval); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	e := router.New(router.Deps{
		Log:            log,
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		Redis:          rdb,
		Cache:          config.LoadCacheConfig(),
		RateLimit:      config.LoadRateLimitConfig(),
		DB:             db,
		Auth:           handler.NewAuthHandler(authSvc, cfg.JWTSecret),
		Trips:          handler.NewTripHandler(tripSvc),
		Clients:        handler.NewClientHandler(clientSvc),
		Reservations:   handler.NewReservationHandler(booking),
		Logs:           handler.NewAuditLogHandler(auditLog),
		Backup:         handler.NewBackupHandler(backup),
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
