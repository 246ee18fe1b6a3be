package ledgerexport

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/payfox/payfox/app/models"
)

// Exporter writes ledger snapshots to an S3 bucket as CSV.
type Exporter struct {
	s3Client *s3.Client
	config   *Config
	db       *gorm.DB
}

// NewExporter creates an S3-backed ledger exporter.
func NewExporter(cfg *Config, db *gorm.DB) (*Exporter, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("ledger export is disabled")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &Exporter{s3Client: s3Client, config: cfg, db: db}, nil
}

// ExportResult describes a completed export run.
type ExportResult struct {
	ObjectKey string    `json:"object_key"`
	Bucket    string    `json:"bucket"`
	Rows      int       `json:"rows"`
	Since     time.Time `json:"since"`
	Until     time.Time `json:"until"`
}

// Export writes all ledger entries created in [since, until) to the bucket
// and returns the object key.
func (e *Exporter) Export(ctx context.Context, since, until time.Time) (*ExportResult, error) {
	var entries []models.BillingHistoryEntry
	if err := e.db.Where("created_at >= ? AND created_at < ?", since, until).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load ledger entries: %w", err)
	}

	body, err := encodeCSV(entries)
	if err != nil {
		return nil, err
	}

	key := e.config.GetObjectKey(until)
	_, err = e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload ledger export: %w", err)
	}

	log.Infof("[LedgerExport] Uploaded %d rows to s3://%s/%s", len(entries), e.config.BucketName, key)
	return &ExportResult{
		ObjectKey: key,
		Bucket:    e.config.BucketName,
		Rows:      len(entries),
		Since:     since,
		Until:     until,
	}, nil
}

func encodeCSV(entries []models.BillingHistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "user_id", "external_id", "amount", "currency", "status", "description", "created_at"}); err != nil {
		return nil, err
	}
	for _, entry := range entries {
		record := []string{
			strconv.FormatUint(uint64(entry.ID), 10),
			strconv.FormatUint(uint64(entry.UserID), 10),
			entry.ExternalID,
			strconv.FormatInt(entry.Amount, 10),
			entry.Currency,
			entry.Status,
			entry.Description,
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
