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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cliniccare/clinic/internal/config"
	"github.com/cliniccare/clinic/internal/domain/clinic"
	"github.com/cliniccare/clinic/internal/platform/changefeed"
	"github.com/cliniccare/clinic/internal/platform/db"
	"github.com/cliniccare/clinic/internal/platform/journal"
	"github.com/cliniccare/clinic/internal/platform/middleware"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic records server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(activityCmd())
	return rootCmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// loadConfig reads and validates the configuration and builds its logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg), nil
}

func openDB(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*gorm.DB, *db.Migrator, error) {
	gdb, err := db.Open(ctx, db.Options{
		Driver:   cfg.DBDriver,
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	migrator, err := db.NewDialectMigrator(gdb, logger)
	if err != nil {
		db.Close(gdb)
		return nil, nil, err
	}
	return gdb, migrator, nil
}

// app is the set of long-lived components every data command needs.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	db      *gorm.DB
	hub     *changefeed.Hub
	journal *journal.Journal
	coord   *clinic.Coordinator
}

// openApp prepares the schema, opens the journal and starts the coordinator.
func openApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	gdb, migrator, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrator.Prepare(ctx, cfg.DBResetOnMismatch); err != nil {
		db.Close(gdb)
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}
	logger.Info().Str("driver", cfg.DBDriver).Msg("connected to database")

	j, err := journal.Open(cfg.JournalDir)
	if err != nil {
		db.Close(gdb)
		if errors.Is(err, journal.ErrLocked) {
			return nil, fmt.Errorf("%w; is clinic-server already running?", err)
		}
		return nil, err
	}

	hub := changefeed.NewHub()
	store := clinic.NewStore(gdb, hub)
	coord := clinic.NewCoordinator(store,
		clinic.WithLogger(logger.With().Str("component", "coordinator").Logger()),
		clinic.WithJournal(j),
		clinic.WithQueueSize(cfg.WriteQueueSize),
	)
	coord.Start(ctx)

	return &app{cfg: cfg, logger: logger, db: gdb, hub: hub, journal: j, coord: coord}, nil
}

func (a *app) Close() {
	a.coord.Close()
	if err := a.journal.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close journal")
	}
	if err := db.Close(a.db); err != nil {
		a.logger.Error().Err(err).Msg("failed to close database")
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger, "/health"))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(a.db))

	changefeed.NewWebSocketHandler(a.hub, a.logger).RegisterRoutes(e.Group(""))

	apiV1 := e.Group("/api/v1")
	clinic.NewHandler(a.coord).RegisterRoutes(apiV1)
	return e
}

func runServer() error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newServer(a)

	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	// withMigrator runs fn against a freshly opened database.
	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		gdb, m, err := openDB(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close(gdb)
		return fn(ctx, m)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
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
				if err := m.Check(ctx); err != nil {
					fmt.Printf("\nWARNING: %v\n", err)
				}
				return nil
			})
		},
	})

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every clinic table and re-apply all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("reset deletes all clinic data; pass --yes to confirm")
			}
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				if err := m.Reset(ctx); err != nil {
					return fmt.Errorf("reset failed: %w", err)
				}
				fmt.Println("Database reset to the current schema.")
				return nil
			})
		},
	}
	resetCmd.Flags().Bool("yes", false, "Confirm the destructive reset")
	cmd.AddCommand(resetCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo patients, doctors, appointments and treatments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := clinic.Seed(ctx, a.coord)
			if err != nil {
				return err
			}
			if sum.Skipped {
				fmt.Println("Database already has patients; nothing seeded.")
				return nil
			}
			fmt.Printf("Seeded %d patient(s), %d doctor(s), %d appointment(s), %d treatment(s).\n",
				sum.Patients, sum.Doctors, sum.Appointments, sum.Treatments)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the dashboard counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.coord.Dashboard().Get(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-24s %d\n", "Patients", d.TotalPatients)
			fmt.Printf("%-24s %d\n", "Doctors", d.TotalDoctors)
			fmt.Printf("%-24s %d\n", "Upcoming appointments", d.UpcomingAppointments)
			fmt.Printf("%-24s %d\n", "Today's appointments", d.TodayAppointments)
			fmt.Printf("%-24s %d\n", "Treatments", d.Treatments)
			return nil
		},
	}
}

func activityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the most recent writes",
		Long: `Show the most recent writes from the activity journal.

The journal can only be opened by one process. While the server is running,
read the same entries from GET /api/v1/activity instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			j, err := journal.Open(cfg.JournalDir)
			if errors.Is(err, journal.ErrLocked) {
				return fmt.Errorf("%w; while the server is running use GET /api/v1/activity", err)
			}
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				outcome := "ok"
				if !e.OK {
					outcome = "failed"
				}
				fmt.Printf("%-6d %s %-18s %-8s %-6s %s\n",
					e.Seq, e.At.Local().Format("2006-01-02 15:04:05"), e.Op, e.EntityID, outcome, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of entries to show")
	return cmd
}
