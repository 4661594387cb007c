package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/internal/pkg/env"
)

// URLPrefix is where the uploads root is served.
const URLPrefix = "/uploads"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// MediaStore keeps event media on local disk under uploads/<type>/.
type MediaStore struct {
	root string
	now  func() time.Time
}

// FileOperation represents a file operation result
type FileOperation struct {
	Success  bool          `json:"success"`
	FilePath string        `json:"file_path"`
	URL      string        `json:"url"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
	Error    error         `json:"error,omitempty"`
}

// NewMediaStore creates a store rooted at root.
func NewMediaStore(root string) *MediaStore {
	return &MediaStore{root: root, now: time.Now}
}

// NewMediaStoreFromEnv roots the store at UPLOADS_DIR (default ./uploads).
func NewMediaStoreFromEnv() *MediaStore {
	return NewMediaStore(env.GetEnv("UPLOADS_DIR", "./uploads"))
}

func (s *MediaStore) Root() string {
	return s.root
}

// SaveFile writes data to uploads/<type>/<unix-millis>-<name> and returns
// the public URL of the stored file.
func (s *MediaStore) SaveFile(data io.Reader, mediaType models.MediaType, filename string) (*FileOperation, error) {
	startTime := s.now()
	name := fmt.Sprintf("%d-%s", startTime.UnixMilli(), SanitizeFilename(filename))
	rel := path.Join(mediaType.Dir(), name)
	fullPath := filepath.Join(s.root, filepath.FromSlash(rel))

	operation := &FileOperation{FilePath: fullPath, URL: URLPrefix + "/" + rel}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		operation.Error = fmt.Errorf("failed to create directory: %w", err)
		return operation, operation.Error
	}

	file, err := os.Create(fullPath)
	if err != nil {
		operation.Error = fmt.Errorf("failed to create file %s: %w", fullPath, err)
		return operation, operation.Error
	}
	defer file.Close()

	bytesWritten, err := io.Copy(file, data)
	if err != nil {
		operation.Error = fmt.Errorf("failed to write file %s: %w", fullPath, err)
		os.Remove(fullPath)
		return operation, operation.Error
	}

	operation.Success = true
	operation.Size = bytesWritten
	operation.Duration = time.Since(startTime)
	log.Infof("[MediaStore] Saved %s (%d bytes) in %v", rel, bytesWritten, operation.Duration)

	return operation, nil
}

// PathForURL maps a public upload URL back to its file on disk.
func (s *MediaStore) PathForURL(url string) (string, error) {
	rel := strings.TrimPrefix(url, URLPrefix+"/")
	if rel == url || strings.Contains(rel, "..") {
		return "", fmt.Errorf("not an upload url: %s", url)
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// URLForPath is the inverse of PathForURL.
func (s *MediaStore) URLForPath(p string) (string, error) {
	rel, err := filepath.Rel(s.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the uploads root", p)
	}
	return URLPrefix + "/" + filepath.ToSlash(rel), nil
}

// DeleteFile removes the file behind an upload URL.
func (s *MediaStore) DeleteFile(url string) error {
	p, err := s.PathForURL(url)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

// SanitizeFilename keeps the base name and replaces anything unusual.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	if len(base) > 120 {
		ext := filepath.Ext(base)
		base = base[:120-len(ext)] + ext
	}
	return base
}
