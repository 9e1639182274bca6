package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fdg312/diet-hub/internal/config"
	"github.com/fdg312/diet-hub/internal/dbmigrate"
	"github.com/fdg312/diet-hub/internal/logging"
)

var (
	migrationsDir string
	requireDirect bool
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply diet hub database migrations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", dbmigrate.DefaultMigrationsDir, "directory with goose SQL migrations")
	rootCmd.PersistentFlags().BoolVar(&requireDirect, "require-direct", false, "refuse to run without DATABASE_URL_DIRECT")

	rootCmd.AddCommand(
		newGooseCmd("up", "Migrate the database to the latest version"),
		newGooseCmd("down", "Roll back the most recent migration"),
		newGooseCmd("status", "Print the status of every migration"),
		newGooseCmd("version", "Print the current database version"),
		newGooseCmd("redo", "Re-run the most recent migration"),
	)
}

func newGooseCmd(command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, command)
		},
	}
}

func runMigration(cmd *cobra.Command, command string) error {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.Named("migrate")

	target, err := dbmigrate.ResolveTarget(cfg, requireDirect)
	if err != nil {
		return err
	}
	if target.Warning != "" {
		logger.Warn(target.Warning)
	}
	logger.Info("running", zap.String("command", command), zap.String("using", target.Source), zap.String("dir", migrationsDir))

	if err := dbmigrate.Run(cmd.Context(), command, target.URL, migrationsDir); err != nil {
		return err
	}

	logger.Info("completed", zap.String("command", command))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
