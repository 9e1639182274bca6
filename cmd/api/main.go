package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/diet-hub/internal/config"
	"github.com/fdg312/diet-hub/internal/dbmigrate"
	"github.com/fdg312/diet-hub/internal/httpserver"
	"github.com/fdg312/diet-hub/internal/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	defer logging.RedirectStdLog(logger)()

	printStartupBanner(cfg, logger)

	if cfg.RunMigrationsOnStartup {
		target, err := dbmigrate.ResolveTarget(cfg, true)
		if err != nil {
			logger.Fatal("startup migrations", zap.Error(err))
		}

		logger.Info("startup migrations", zap.String("command", "up"), zap.String("using", target.Source))
		if err := dbmigrate.Run(context.Background(), "up", target.URL, dbmigrate.DefaultMigrationsDir); err != nil {
			logger.Fatal("startup migrations failed", zap.Error(err))
		}
		logger.Info("startup migrations completed")
	}

	validateProductionConfig(cfg, logger)

	server, err := httpserver.New(cfg, logger)
	if err != nil {
		logger.Fatal("server init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

// printStartupBanner logs a one-time summary of the resolved configuration.
// No secrets are ever printed, only masked indicators ("set" / "not set").
func printStartupBanner(cfg *config.Config, logger *zap.Logger) {
	logger.Info("diet hub api",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
	)

	logger.Info("database",
		zap.String("runtime_url", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled)),
		zap.String("pooled", setOrNot(cfg.DatabaseURLPooled)),
		zap.String("direct", setOrNot(cfg.DatabaseURLDirect)),
		zap.Bool("migrations_on_startup", cfg.RunMigrationsOnStartup),
	)

	logger.Info("auth",
		zap.String("auth_mode", cfg.AuthMode),
		zap.Bool("auth_required", cfg.AuthRequired),
		zap.String("jwt_secret", secretStatus(cfg.JWTSecret, "change_me")),
	)

	logger.Info("ledger",
		zap.String("write_mode", cfg.LedgerWriteMode),
		zap.String("remove_mismatch", cfg.LedgerRemoveMismatch),
		zap.Int("max_retries", cfg.LedgerMaxRetries),
	)

	blobFields := []zap.Field{
		zap.String("blob_mode", cfg.Blob.Mode),
		zap.String("reports_mode", displayReportsMode(cfg)),
		zap.String("effective", cfg.Blob.EffectiveReportsMode()),
	}
	if cfg.Blob.EffectiveReportsMode() != config.BlobModeLocal {
		blobFields = append(blobFields, zap.String("s3", cfg.Blob.S3.DiagnosticsSummary()))
	}
	logger.Info("blob", blobFields...)

	aiFields := []zap.Field{zap.String("ai_mode", cfg.AIMode)}
	switch cfg.AIMode {
	case config.AIModeOpenAI:
		aiFields = append(aiFields, zap.String("openai_model", cfg.OpenAIModel), zap.String("openai_api_key", setOrNot(cfg.OpenAIAPIKey)))
	case config.AIModeGemini:
		aiFields = append(aiFields, zap.String("gemini_model", cfg.GeminiModel), zap.String("gemini_api_key", setOrNot(cfg.GeminiAPIKey)))
	}
	logger.Info("ai", aiFields...)
}

// validateProductionConfig performs fatal checks that only matter in non-local envs.
func validateProductionConfig(cfg *config.Config, logger *zap.Logger) {
	isProd := cfg.Env == "production" || cfg.Env == "staging"

	if cfg.Blob.EffectiveReportsMode() == config.BlobModeS3 {
		if missing := cfg.Blob.S3.MissingRequired(); len(missing) > 0 {
			logger.Fatal("REPORTS_MODE is 's3' but S3 config is incomplete", zap.String("missing", strings.Join(missing, ", ")))
		}
	}

	// JWT_SECRET must not be default in production
	if isProd && cfg.AuthRequired && cfg.JWTSecret == "change_me" {
		logger.Fatal("JWT_SECRET must not be 'change_me' with AUTH_REQUIRED=1", zap.String("env", cfg.Env))
	}

	if isProd && cfg.DatabaseURL == "" {
		logger.Fatal("no DATABASE_URL configured", zap.String("env", cfg.Env))
	}
}

// ---- helpers (no secrets) ----

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return fmt.Sprintf("set (DEFAULT, insecure '%s')", insecureDefault)
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set (will use in-memory storage)"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}

func displayReportsMode(cfg *config.Config) string {
	if cfg.Blob.ReportsModeSet {
		return cfg.Blob.ReportsMode
	}
	return fmt.Sprintf("(inherits BLOB_MODE=%s)", cfg.Blob.Mode)
}
