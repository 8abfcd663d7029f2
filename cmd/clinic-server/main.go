package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/booking"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/reminder"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/internal/platform/telemetry"
	"github.com/clinic/clinic/pkg/clock"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(remindersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		TimeZone: cfg.TimeZone,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Send pre-visit reminders",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reminder sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			asOfFlag, _ := cmd.Flags().GetString("as-of")
			return withApp(func(ctx context.Context, a *app) error {
				asOf := a.clock.Now()
				if asOfFlag != "" {
					t, err := time.Parse(time.RFC3339, asOfFlag)
					if err != nil {
						return fmt.Errorf("--as-of must be RFC 3339: %w", err)
					}
					asOf = t
				}
				res, err := a.reminders.Run(ctx, asOf)
				if err != nil {
					return err
				}
				fmt.Printf("due=%d sent=%d skipped=%d failed=%d\n", res.Due, res.Sent, res.Skipped, res.Failed)
				return nil
			})
		},
	}
	runCmd.Flags().String("as-of", "", "Evaluate the reminder window at this RFC 3339 instant instead of now")
	cmd.AddCommand(runCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "loop",
		Short: "Sweep reminders every REMINDER_INTERVAL until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				a.logger.Info().Dur("interval", a.cfg.ReminderInterval).Msg("reminder loop started")
				return a.reminders.Loop(ctx, a.cfg.ReminderInterval)
			})
		},
	})

	return cmd
}

// app holds the wired services shared by the server and the CLI jobs.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	pool    *pgxpool.Pool
	redis   *redis.Client
	clock   clock.Clock
	metrics *telemetry.Metrics

	doctors    *doctor.Service
	schedules  *scheduling.Service
	bookings   *booking.Service
	reminders  *reminder.Service
	shutdownFn []func(context.Context) error
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, clock: clock.System{}}

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "clinic-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, err
	}
	a.shutdownFn = append(a.shutdownFn, shutdown)

	a.metrics, err = telemetry.NewMetrics()
	if err != nil {
		return nil, err
	}

	a.pool, err = openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")

	var publisher events.Publisher = events.Noop{}
	var slotStore cache.Store = cache.NoopStore{}
	if cfg.RedisURL != "" {
		a.redis, err = cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			a.pool.Close()
			return nil, err
		}
		publisher = events.NewRedisPublisher(a.redis, "clinic.")
		slotStore = cache.NewRedisStore(a.redis)
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set; slot cache and event publishing disabled")
	}

	tx := db.NewPGTransactor(a.pool, cfg.TxMaxAttempts, logger)
	availability := cache.NewAvailability(slotStore, cfg.SlotCacheTTL)

	doctorRepo := doctor.NewRepoPG(a.pool)
	a.doctors = doctor.NewService(doctorRepo, doctor.NewLeaveRepoPG(a.pool), tx, a.clock, loc, logger,
		doctor.WithSlotInvalidator(availability),
	)

	templates := scheduling.NewTemplateRepoPG(a.pool)
	a.schedules = scheduling.NewService(templates, a.doctors, tx, logger,
		scheduling.WithAvailabilityInvalidator(availability),
	)
	catalog := scheduling.NewCatalog(a.doctors, templates, a.doctors)

	patients := patient.NewRepoPG(a.pool)
	bookingRepo := booking.NewRepoPG(a.pool)
	a.bookings = booking.NewService(bookingRepo, a.doctors, patients, catalog, tx, a.clock, loc, logger,
		booking.WithAvailabilityCache(availability),
		booking.WithPublisher(publisher),
		booking.WithMetrics(a.metrics),
	)

	sender := notification.NewLogSender(logger)
	dispatcher := notification.NewDispatcher(notification.NewTemplateEngine(), map[notification.Channel]notification.Sender{
		notification.ChannelEmail: sender,
		notification.ChannelSMS:   sender,
	})
	notifier := reminder.NewDispatchNotifier(patients, a.doctors, dispatcher, loc)
	a.reminders = reminder.NewService(bookingRepo, notifier, tx, a.clock, loc, logger, a.metrics)

	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range a.shutdownFn {
		if err := fn(ctx); err != nil {
			a.logger.Error().Err(err).Msg("telemetry shutdown failed")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func runServer() error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		l := newLogger(nil)
		l.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(telemetry.Middleware(a.metrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	deps := map[string]db.Pinger{"database": a.pool}
	if a.redis != nil {
		deps["redis"] = cache.Pinger{Client: a.redis}
	}
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, deps))

	apiV1 := e.Group("/api/v1")
	if cfg.AuthSigningKey == "" {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set; using development auth")
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	doctor.NewHandler(a.doctors).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.schedules).RegisterRoutes(apiV1)
	booking.NewHandler(a.bookings).RegisterRoutes(apiV1)
	reminder.NewHandler(a.reminders).RegisterRoutes(apiV1)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ReminderInServer {
		go func() {
			if err := a.reminders.Loop(ctx, cfg.ReminderInterval); err != nil {
				logger.Error().Err(err).Msg("reminder loop stopped")
			}
		}()
	}

	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
