package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func readyS3() S3Config {
	return S3Config{
		Endpoint:          "https://storage.yandexcloud.net",
		Region:            "ru-central1",
		Bucket:            "diet-reports",
		AccessKeyID:       "key",
		SecretAccessKey:   "super-secret",
		PublicBaseURL:     "https://storage.yandexcloud.net/diet-reports",
		PresignTTLSeconds: 900,
	}
}

func TestS3ConfigMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want []string
	}{
		{"empty", S3Config{}, []string{"S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_PUBLIC_BASE_URL"}},
		{"endpoint and bucket only", S3Config{Endpoint: "https://storage.yandexcloud.net", Bucket: "b"}, []string{"S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_PUBLIC_BASE_URL"}},
		{"whitespace counts as missing", S3Config{Endpoint: "  ", Region: "ru-central1", Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s", PublicBaseURL: "u"}, []string{"S3_ENDPOINT"}},
		{"ready", readyS3(), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.MissingRequired()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want) == 0, tt.cfg.IsConfigured())
		})
	}
}

func TestS3ConfigDiagnostics(t *testing.T) {
	tests := []struct {
		name      string
		cfg       S3Config
		wantLevel string
		wantCode  string
	}{
		{"not configured", S3Config{}, "INFO", "s3_not_configured"},
		{"partial", S3Config{Endpoint: "https://storage.yandexcloud.net"}, "WARN", "s3_partial_config"},
		{"ready", readyS3(), "INFO", "s3_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, code, _ := tt.cfg.Diagnostics()
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestS3ConfigDiagnosticsSummaryHidesSecrets(t *testing.T) {
	summary := readyS3().DiagnosticsSummary()

	assert.NotContains(t, summary, "super-secret")
	assert.Contains(t, summary, "secret_access_key=set")
	assert.Contains(t, summary, "bucket=diet-reports")
	assert.Contains(t, (S3Config{}).DiagnosticsSummary(), "endpoint=-")
}

func TestBlobConfigEffectiveReportsMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  BlobConfig
		want string
	}{
		{"inherits blob mode", BlobConfig{Mode: BlobModeAuto}, BlobModeAuto},
		{"explicit override", BlobConfig{Mode: BlobModeS3, ReportsMode: BlobModeLocal, ReportsModeSet: true}, BlobModeLocal},
		{"unset override is ignored", BlobConfig{Mode: BlobModeS3, ReportsMode: BlobModeLocal}, BlobModeS3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.EffectiveReportsMode())
		})
	}
}
