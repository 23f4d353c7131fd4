package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/booking-core/internal/billing"
	"github.com/iliyamo/booking-core/internal/booking"
	"github.com/iliyamo/booking-core/internal/config"
	"github.com/iliyamo/booking-core/internal/database"
	"github.com/iliyamo/booking-core/internal/handler"
	"github.com/iliyamo/booking-core/internal/hold"
	"github.com/iliyamo/booking-core/internal/invoicing"
	"github.com/iliyamo/booking-core/internal/logger"
	"github.com/iliyamo/booking-core/internal/middleware"
	"github.com/iliyamo/booking-core/internal/notify"
	"github.com/iliyamo/booking-core/internal/queue"
	"github.com/iliyamo/booking-core/internal/repository"
	"github.com/iliyamo/booking-core/internal/repository/memstore"
	"github.com/iliyamo/booking-core/internal/router"
	queue_publisher "github.com/iliyamo/booking-core/internal/service"
	"github.com/iliyamo/booking-core/internal/slots"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}
	cfg := config.Load() // Load environment config
	logger.Init(logger.Options{
		Dir:        cfg.Log.Dir,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]handler.Pinger{}

	store, db := openStore(cfg)
	if db != nil {
		defer db.Close()
		health["mysql"] = db
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
		health["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.InfoLogger.Info("redis unavailable: cache, rate limit and sweeper lease disabled")
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	// Events are optional: without a broker bookings still commit and the
	// billing job still runs.
	var (
		bookingEvents booking.Events
		billingEvents billing.Events
	)
	if cfg.AMQPURL != "" {
		pub := queue_publisher.New(cfg.AMQPURL)
		bookingEvents, billingEvents = pub, pub
	}

	provider := newProvider(cfg)

	ledger := slots.NewLedger(store, cache)
	var lease hold.Lease
	if rdb != nil {
		lease = hold.NewRedisLease(rdb, "booking-core", uuid.NewString())
	}
	holds := hold.NewManager(store, ledger, hold.Config{
		DefaultTTL: cfg.Hold.DefaultTTL,
		MaxTTL:     cfg.Hold.MaxTTL,
		SweepBatch: cfg.Hold.SweepBatch,
	}, lease)
	jobs := billing.NewQueue(store)
	bookings := booking.NewService(store, ledger, jobs, bookingEvents, booking.Config{MaxItems: cfg.Booking.MaxItems})

	var wg sync.WaitGroup
	goRun := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.InfoLogger.WithField("component", name).Info("background component started")
			fn(ctx)
		}()
	}

	if cfg.Hold.SweeperOn {
		goRun("hold-sweeper", func(ctx context.Context) { holds.RunSweeper(ctx, cfg.Hold.SweepInterval) })
	}
	if cfg.Billing.WorkerOn {
		worker := billing.NewWorker(store, jobs, provider, billingEvents, billing.WorkerConfig{
			PollInterval:    cfg.Billing.PollInterval,
			BatchSize:       cfg.Billing.BatchSize,
			Lease:           cfg.Billing.Lease,
			BackoffBase:     cfg.Billing.BackoffBase,
			BackoffMax:      cfg.Billing.BackoffMax,
			MaxAttempts:     cfg.Billing.MaxAttempts,
			OrphanAge:       cfg.Billing.OrphanAge,
			CleanupInterval: cfg.Billing.CleanupInterval,
			ProviderTimeout: cfg.Billing.ProviderTimeout,
			Currency:        cfg.Billing.Currency,
		})
		goRun("billing-worker", worker.Run)
	}
	if cfg.AMQPURL != "" {
		consumer := queue.NewConsumer(cfg.AMQPURL, newNotifier(cfg), provider)
		goRun("event-consumer", consumer.Run)
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())

	h := router.Handlers{
		Health:     handler.Health(health),
		Slots:      handler.NewSlotHandler(ledger),
		Holds:      handler.NewHoldHandler(holds),
		Bookings:   handler.NewBookingHandler(bookings),
		Allotments: handler.NewAllotmentHandler(store),
		Billing:    handler.NewBillingHandler(jobs, store),
	}
	if cfg.Env != "prod" {
		h.Token = &handler.TokenHandler{Secret: cfg.JWTSecret, TTLMin: cfg.AccessTTLMin}
	}
	router.Register(e, h, router.Options{
		JWTSecret: cfg.JWTSecret,
		Cache:     cache.Middleware(),
		RateLimit: rateLimit(rdb),
	})

	addr := ":" + cfg.Port // Address string with port
	logger.InfoLogger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.StoreDriver}).Info("listening")
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorLogger.WithError(err).Error("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.ErrorLogger.WithError(err).Error("http shutdown")
	}
	wg.Wait()
	// Drain booking.confirmed events still in flight.
	bookings.Wait()
	logger.InfoLogger.Info("stopped")
}

func openStore(cfg config.Config) (repository.Store, *sql.DB) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.InfoLogger.Info("using in-memory store")
		return memstore.New(), nil
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database: %v", err)
	}
	return repository.NewMySQLStore(db), db
}

func newProvider(cfg config.Config) invoicing.Provider {
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		return invoicing.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	}
	logger.InfoLogger.Info("razorpay keys not set: using local invoice references")
	return invoicing.NewNoop()
}

func newNotifier(cfg config.Config) notify.Notifier {
	if cfg.SMTP.Host == "" {
		return notify.Log{}
	}
	return notify.NewSMTP(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

func rateLimit(rdb *redis.Client) echo.MiddlewareFunc {
	return middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
}
