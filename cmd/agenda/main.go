package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/prenatal/agenda/internal/config"
	"github.com/prenatal/agenda/internal/domain/appointment"
	"github.com/prenatal/agenda/internal/domain/patient"
	"github.com/prenatal/agenda/internal/platform/auth"
	"github.com/prenatal/agenda/internal/platform/db"
	"github.com/prenatal/agenda/internal/platform/logging"
	"github.com/prenatal/agenda/internal/platform/middleware"
	"github.com/prenatal/agenda/internal/server"
	"github.com/prenatal/agenda/migrations"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "agenda",
		Short:        "Prenatal appointment agenda: API server and review console",
		SilenceUsage: true,
		Version:      server.Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(agendaCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(dueSoonCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agenda API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			memory, _ := cmd.Flags().GetBool("memory")
			return runServer(memory)
		},
	}
	cmd.Flags().Bool("memory", false, "Keep data in memory instead of PostgreSQL")
	return cmd
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{Issuer: cfg.AuthIssuer, SigningKey: []byte(cfg.AuthSecret)}
}

// authMiddleware enforces bearer tokens outside development. In development
// requests without a token run as an admin.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtConfig(cfg))
	}
	return auth.JWTMiddleware(jwtConfig(cfg))
}

func runServer(memory bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)

	opts := server.Options{
		Logger:      logger,
		Auth:        authMiddleware(cfg),
		CORSOrigins: cfg.CORSOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		},
		BodyLimit:      cfg.BodyLimit,
		RequestTimeout: cfg.RequestTimeout,
	}

	if memory {
		if !cfg.IsDev() && cfg.AuthSecret == "" {
			return fmt.Errorf("AUTH_SECRET is required when ENV=%q", cfg.Env)
		}
		patients := patient.NewMemoryRepo()
		opts.Patients = patients
		opts.Appointments = appointment.NewMemoryRepo(patients.Names)
		logger.Warn().Msg("using in-memory storage, data is lost on exit")
	} else {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		opts.Appointments = appointment.NewRepoPG(pool)
		opts.Patients = patient.NewRepoPG(pool)
		opts.DBHealth = db.HealthHandler(pool)
	}

	e := server.New(opts)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd, statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func printMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the console commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := issueToken(cfg, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "User id carried by the token")
	cmd.Flags().StringSlice("role", []string{auth.RoleStaff}, "Roles granted (admin, staff)")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	return cmd
}

func issueToken(cfg *config.Config, subject string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("--subject is required")
	}
	if len(cfg.AuthSecret) < 32 {
		return "", fmt.Errorf("AUTH_SECRET must be set to at least 32 characters to issue tokens")
	}
	for _, r := range roles {
		if r != auth.RoleAdmin && r != auth.RoleStaff {
			return "", fmt.Errorf("unknown role %q", r)
		}
	}
	if ttl <= 0 {
		return "", fmt.Errorf("--ttl must be positive")
	}
	return auth.IssueToken(jwtConfig(cfg), subject, roles, ttl)
}
