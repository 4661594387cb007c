package s3backup

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/faithcal/faithcal/internal/pkg/env"
)

// Config holds S3 mirror configuration for uploaded event media
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads S3 configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("S3_BACKUP_ENABLED", "false") == "true",
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 backup is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 backup is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 backup is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if S3 backup is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetObjectKey builds the object key for an event media file:
// events/<eventID>/<mediaDir>/<fileName>
func (c *Config) GetObjectKey(eventID uint, mediaDir, fileName string) string {
	return path.Join("events", fmt.Sprintf("%d", eventID), mediaDir, path.Base(strings.ReplaceAll(fileName, "\\", "/")))
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}
