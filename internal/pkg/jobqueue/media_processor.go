package jobqueue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"

	"github.com/faithcal/faithcal/app/models"
)

const (
	thumbnailMaxSize = 480
	thumbnailQuality = 82
)

// EnqueueMediaJobs schedules post-upload work for one stored media file.
// Images get a thumbnail (which chains the S3 mirror); audio and video go
// straight to the mirror when it is enabled.
func (q *Queue) EnqueueMediaJobs(media *models.EventMedia) error {
	payload := MediaJobPayload{MediaID: media.ID, EventID: media.EventID}
	if media.Type == models.MediaTypeImage {
		_, err := q.EnqueueJob(JobTypeMediaThumbnail, payload.ToMap())
		return err
	}
	if !q.backupEnabled() {
		return nil
	}
	_, err := q.EnqueueJob(JobTypeS3Backup, payload.ToMap())
	return err
}

// processMediaThumbnailJob renders a thumbnail for an uploaded event image
func (q *Queue) processMediaThumbnailJob(ctx context.Context, job *Job) error {
	payload, err := MediaJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse media payload: %w", err)
	}

	repo := q.eventRepository()
	media, err := repo.GetMediaByID(payload.MediaID)
	if err != nil {
		return fmt.Errorf("failed to find media %d: %w", payload.MediaID, err)
	}
	if media.Type != models.MediaTypeImage {
		log.Warnf("[JobQueue] Media %d is %s, skipping thumbnail", media.ID, media.Type)
		return nil
	}

	src, err := q.store.PathForURL(media.URL)
	if err != nil {
		return err
	}
	dst := ThumbnailPath(src)
	if err := GenerateThumbnail(src, dst); err != nil {
		return err
	}

	thumbURL, err := q.store.URLForPath(dst)
	if err != nil {
		return err
	}
	media.ThumbnailURL = thumbURL
	if err := repo.UpdateMedia(media); err != nil {
		return fmt.Errorf("failed to store thumbnail for media %d: %w", media.ID, err)
	}
	log.Infof("[JobQueue] Thumbnail for media %d written to %s", media.ID, thumbURL)

	if q.backupEnabled() {
		if _, err := q.EnqueueJob(JobTypeS3Backup, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue S3 mirror for media %d: %v", media.ID, err)
		}
	}
	return nil
}

// ThumbnailPath places thumbnails in a thumbs/ directory next to the
// original, always as JPEG.
func ThumbnailPath(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(filepath.Dir(src), "thumbs", base+".jpg")
}

// GenerateThumbnail fits src into a thumbnailMaxSize square and writes a JPEG.
func GenerateThumbnail(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", src, err)
	}

	thumb := img
	b := img.Bounds()
	if b.Dx() > thumbnailMaxSize || b.Dy() > thumbnailMaxSize {
		thumb = imaging.Fit(img, thumbnailMaxSize, thumbnailMaxSize, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return fmt.Errorf("failed to save thumbnail %s: %w", dst, err)
	}
	return nil
}
