package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"eventbooking/config"
	_ "eventbooking/docs"
	"eventbooking/internal/adapters/auth"
	"eventbooking/internal/adapters/email"
	"eventbooking/internal/adapters/live"
	"eventbooking/internal/adapters/redislock"
	httpdelivery "eventbooking/internal/delivery/http"
	"eventbooking/internal/delivery/http/controllers"
	"eventbooking/internal/domain"
	"eventbooking/internal/metrics"
	"eventbooking/internal/repository/memory"
	"eventbooking/internal/repository/postgres"
	"eventbooking/internal/services"
)

const shutdownTimeout = 10 * time.Second

// @title Event Booking API
// @version 1.0
// @description Registration, ticketing, payment and refund engine for events.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT.
func main() {
	tokenFor := flag.String("token-for", "", "print a 24h bearer token for the given user ID and exit (non-production only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	if *tokenFor != "" {
		if err := printToken(cfg, *tokenFor); err != nil {
			logger.Error("issue token", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func printToken(cfg *config.Config, userID string) error {
	if cfg.Environment == "production" {
		return errors.New("-token-for is disabled in production")
	}
	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(userID, "", nil, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// storage bundles the repositories of one backend.
type storage struct {
	tx            domain.TxManager
	users         domain.UserRepository
	events        domain.EventRepository
	registrations domain.RegistrationRepository
	payments      domain.PaymentRepository
	tickets       domain.TicketRepository
	ledger        domain.CapacityLedger
	close         func() error
}

func openStorage(cfg *config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.Storage == "memory" {
		logger.Warn("using in-memory storage; state is lost on restart")
		s := memory.NewStore()
		if err := seedUsers(s, cfg.SeedUsers, bcrypt.DefaultCost, time.Now().UTC()); err != nil {
			return nil, err
		}
		logger.Info("seeded users", "count", len(cfg.SeedUsers))
		return &storage{
			tx:            s,
			users:         s.Users(),
			events:        s.Events(),
			registrations: s.Registrations(),
			payments:      s.Payments(),
			tickets:       s.Tickets(),
			ledger:        s.Ledger(),
			close:         func() error { return nil },
		}, nil
	}

	if len(cfg.SeedUsers) > 0 {
		logger.Warn("MEMORY_SEED_USERS ignored with postgres storage")
	}
	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &storage{
		tx:            postgres.NewTxManager(db),
		users:         postgres.NewUserRepository(db),
		events:        postgres.NewEventRepository(db),
		registrations: postgres.NewRegistrationRepository(db),
		payments:      postgres.NewPaymentRepository(db),
		tickets:       postgres.NewTicketRepository(db),
		ledger:        postgres.NewCapacityLedger(db),
		close:         db.Close,
	}, nil
}

// seedUsers loads users into memory storage, which has no other way to create them.
func seedUsers(s *memory.Store, users []config.SeedUser, cost int, now time.Time) error {
	for _, u := range users {
		hash, err := auth.HashSecret(u.Secret, cost)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
		s.PutUser(&domain.User{
			ID:         u.ID,
			Email:      u.Email,
			FullName:   u.ID,
			SecretHash: hash,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	publisher, err := live.New(live.Config{
		Provider:     cfg.LiveProvider,
		Redis:        rdb,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
	}, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	mailer := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretKey,
		},
	}, logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := services.Deps{
		Tx:            store.tx,
		Events:        store.events,
		Users:         store.users,
		Registrations: store.registrations,
		Payments:      store.payments,
		Tickets:       store.tickets,
		Ledger:        store.ledger,
		Verifier:      auth.NewBcryptVerifier(),
		Notifier:      services.NewNotifier(store.users, mailer, email.NewTemplateRenderer(), publisher),
		Live:          publisher,
		Metrics:       metrics.New(registry),
		Logger:        logger,
		Location:      cfg.EventLocation,
	}
	eventSvc := services.NewEventService(deps)
	registrationSvc := services.NewRegistrationService(deps)
	paymentSvc := services.NewPaymentService(deps)

	router := httpdelivery.NewRouter(httpdelivery.RouterConfig{
		Events:         controllers.NewEventController(logger, eventSvc),
		Registrations:  controllers.NewRegistrationController(logger, registrationSvc, eventSvc),
		Payments:       controllers.NewPaymentController(logger, paymentSvc, registrationSvc, eventSvc),
		Verifier:       auth.NewJWTVerifier(cfg.JWTSecret),
		Gatherer:       registry,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// A nil *redislock.Locker must not end up inside the interface.
	var locker domain.Locker
	if rdb != nil {
		locker = redislock.New(rdb)
	}
	sweeper := services.NewSweeper(eventSvc, locker, cfg.SweepInterval, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr, "storage", cfg.Storage, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
