package jobqueue

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2/log"

	"github.com/faithcal/faithcal/internal/pkg/s3backup"
)

type mediaUploader interface {
	UploadFile(ctx context.Context, localFilePath, objectKey string) (*s3backup.UploadResult, error)
}

func newS3Uploader(cfg *s3backup.Config) (mediaUploader, error) {
	return s3backup.NewClient(cfg)
}

func (q *Queue) backupEnabled() bool {
	cfg, err := q.s3Config()
	if err != nil {
		log.Warnf("[S3Backup] Invalid configuration, mirror disabled: %v", err)
		return false
	}
	return cfg.IsEnabled()
}

// processS3BackupJob mirrors an uploaded media file to S3
func (q *Queue) processS3BackupJob(ctx context.Context, job *Job) error {
	payload, err := MediaJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse S3 backup job payload: %w", err)
	}

	config, err := q.s3Config()
	if err != nil {
		return fmt.Errorf("failed to load S3 config: %w", err)
	}
	if !config.IsEnabled() {
		log.Infof("[S3Backup] Mirror disabled, dropping job %s", job.ID)
		return nil
	}

	repo := q.eventRepository()
	media, err := repo.GetMediaByID(payload.MediaID)
	if err != nil {
		return fmt.Errorf("failed to find media %d: %w", payload.MediaID, err)
	}
	if media.BackupKey != "" {
		return nil
	}

	fullPath, err := q.store.PathForURL(media.URL)
	if err != nil {
		return err
	}
	objectKey := config.GetObjectKey(media.EventID, media.Type.Dir(), filepath.Base(fullPath))

	uploader, err := q.newUploader(config)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	log.Infof("[S3Backup] Uploading %s to S3 as %s", fullPath, objectKey)
	result, err := uploader.UploadFile(ctx, fullPath, objectKey)
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	media.BackupKey = result.ObjectKey
	if err := repo.UpdateMedia(media); err != nil {
		return fmt.Errorf("failed to record backup key for media %d: %w", media.ID, err)
	}

	log.Infof("[S3Backup] Mirrored media %d to s3://%s/%s", media.ID, result.BucketName, result.ObjectKey)
	return nil
}
