package blob

import (
	"context"
	"fmt"
	"strings"

	appcfg "github.com/fdg312/diet-hub/internal/config"
	"go.uber.org/zap"
)

// NewBlobStore builds the report store for mode local|s3|auto.
// A nil Store with mode "local" means report bytes stay in the metadata store.
func NewBlobStore(ctx context.Context, cfg appcfg.BlobConfig, logger *zap.Logger) (Store, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("blob")

	mode := strings.ToLower(strings.TrimSpace(cfg.EffectiveReportsMode()))
	if mode == "" {
		mode = appcfg.BlobModeLocal
	}

	switch mode {
	case appcfg.BlobModeLocal:
		logger.Info("blob store selected", zap.String("mode", appcfg.BlobModeLocal), zap.String("reason", "forced"))
		return nil, appcfg.BlobModeLocal, nil

	case appcfg.BlobModeAuto:
		if !cfg.S3.IsConfigured() {
			level, code, msg := cfg.S3.Diagnostics()
			logger.Info("s3 not configured",
				zap.String("level", level),
				zap.String("code", code),
				zap.String("detail", msg),
				zap.String("summary", cfg.S3.DiagnosticsSummary()),
			)
			logger.Info("blob store selected", zap.String("mode", appcfg.BlobModeLocal), zap.String("reason", "auto, S3 not configured"))
			return nil, appcfg.BlobModeLocal, nil
		}

		store, err := newS3FromConfig(ctx, cfg.S3)
		if err != nil {
			logger.Warn("s3 init failed, falling back to local", zap.Error(err))
			return nil, appcfg.BlobModeLocal, nil
		}

		logger.Info("blob store selected", zap.String("mode", appcfg.BlobModeS3), zap.String("reason", "auto, configured"), zap.String("summary", cfg.S3.DiagnosticsSummary()))
		return store, appcfg.BlobModeS3, nil

	case appcfg.BlobModeS3:
		if !cfg.S3.IsConfigured() {
			missing := cfg.S3.MissingRequired()
			logger.Error("s3 config incomplete", zap.Strings("missing", missing), zap.String("summary", cfg.S3.DiagnosticsSummary()))
			return nil, "", fmt.Errorf("BLOB_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
		}

		store, err := newS3FromConfig(ctx, cfg.S3)
		if err != nil {
			logger.Error("s3 init failed", zap.Error(err))
			return nil, "", fmt.Errorf("BLOB_MODE=s3 init failed: %w", err)
		}

		logger.Info("blob store selected", zap.String("mode", appcfg.BlobModeS3), zap.String("reason", "forced"), zap.String("summary", cfg.S3.DiagnosticsSummary()))
		return store, appcfg.BlobModeS3, nil

	default:
		return nil, "", fmt.Errorf("unsupported blob mode: %s", mode)
	}
}

func newS3FromConfig(ctx context.Context, cfg appcfg.S3Config) (*S3Store, error) {
	return NewS3Store(ctx, S3Options{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
}
