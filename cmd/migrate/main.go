package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/config"
	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/logging"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	sourceURL string
	cfg       config.Config
	log       zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply SnippetCanvas database migrations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			err := m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info().Msg("no change: database is up to date")
				return nil
			}
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			log.Info().Msg("migrations applied")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			if err := m.Steps(-1); err != nil {
				return fmt.Errorf("roll back last migration: %w", err)
			}
			log.Info().Msg("last migration rolled back")
			return nil
		})
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto VERSION",
	Short: "Migrate up or down to VERSION",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withMigrator(func(m *migrate.Migrate) error {
			err := m.Migrate(uint(version))
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info().Uint64("version", version).Msg("no change: database already at version")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migrate to version %d: %w", version, err)
			}
			log.Info().Uint64("version", version).Msg("migrated")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info().Msg("no migrations applied yet")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read migration version: %w", err)
			}
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration version")
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourceURL, "source", "file://migrations", "migration source URL")
	rootCmd.AddCommand(upCmd, downCmd, gotoCmd, statusCmd)
}

func withMigrator(fn func(m *migrate.Migrate) error) error {
	log.Info().
		Str("user", cfg.Database.User).
		Str("host", cfg.Database.Host).
		Str("port", cfg.Database.Port).
		Str("name", cfg.Database.Name).
		Msg("connecting to database")

	m, err := migrate.New(sourceURL, cfg.Database.MigrateURL())
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warn().AnErr("source", sourceErr).AnErr("database", dbErr).Msg("closing migration resources failed")
		}
	}()
	return fn(m)
}

func main() {
	cfg = config.Load()
	log = logging.New(cfg.Log)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
}
