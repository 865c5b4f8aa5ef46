// Package cmd implements the leadsvc command line: serve, migrate and seed.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-lead-intake/internal/config"
	"github.com/tbourn/go-lead-intake/internal/repo"
	"github.com/tbourn/go-lead-intake/internal/sysutil"
)

// version is stamped at build time:
//
//	go build -ldflags "-X github.com/tbourn/go-lead-intake/internal/cmd.version=v1.2.0"
var version = "dev"

var (
	envFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "leadsvc",
	Short: "Lead intake and claim service",
	Long: `leadsvc accepts public lead submissions and lets authenticated sales
agents claim them. Each lead is claimed by at most one agent.

Configuration comes from the environment (optionally seeded from a .env
file). See the README for the full list of variables.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment (ignored if missing)")
}

// loadConfig runs before every subcommand. Variables already present in the
// environment win over the dotenv file.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg = c
	sysutil.ConfigureLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty)
	return nil
}

// appVersion lets deployments override the stamped version.
func appVersion() string {
	return sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version, "dev")
}

// openStore opens the configured database and brings the schema up to date.
func openStore() (*gorm.DB, func(), error) {
	db, err := repo.Open(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.DB.Driver, err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, closeFn, nil
}
