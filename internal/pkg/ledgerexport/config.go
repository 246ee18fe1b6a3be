package ledgerexport

import (
	"errors"
	"fmt"
	"time"

	"github.com/payfox/payfox/internal/pkg/env"
)

// Config holds ledger export configuration.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads export configuration from environment variables.
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("LEDGER_EXPORT_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when ledger export is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when ledger export is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when ledger export is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if ledger export is enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey generates a standardized S3 object key for an export run.
func (c *Config) GetObjectKey(ts time.Time) string {
	// Format: ledger/YYYY/MM/ledger-YYYYMMDD-HHMMSS.csv
	return fmt.Sprintf("ledger/%04d/%02d/ledger-%s.csv",
		ts.Year(), int(ts.Month()), ts.Format("20060102-150405"))
}
