package upload

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/faithcal/faithcal/app/models"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("empty file")
)

type rule struct {
	ext      map[string]bool
	mime     string // required prefix of the sniffed content type
	maxBytes int64
}

var rules = map[models.MediaType]rule{
	models.MediaTypeImage: {
		ext:      map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true},
		mime:     "image/",
		maxBytes: 10 << 20,
	},
	models.MediaTypeAudio: {
		ext:      map[string]bool{".mp3": true, ".wav": true, ".ogg": true, ".m4a": true, ".aac": true},
		mime:     "audio/",
		maxBytes: 20 << 20,
	},
	models.MediaTypeVideo: {
		ext:      map[string]bool{".mp4": true, ".webm": true, ".mov": true},
		mime:     "video/",
		maxBytes: 100 << 20,
	},
}

// MaxBytes returns the upload limit for a media type.
func MaxBytes(t models.MediaType) int64 {
	return rules[t].maxBytes
}

// ValidateMedia checks the filename (extension), size and the first bytes
// (head) of an upload against the whitelist for its media type. Returns the
// detected mime type.
func ValidateMedia(t models.MediaType, filename string, size int64, head []byte) (string, error) {
	r, ok := rules[t]
	if !ok {
		return "", fmt.Errorf("%w: media type %q", ErrUnsupportedType, t)
	}
	if size <= 0 {
		return "", ErrEmpty
	}
	if size > r.maxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d MB", ErrTooLarge, filename, r.maxBytes>>20)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !r.ext[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	detected := http.DetectContentType(head)

	// Scriptable content is rejected whatever the extension says
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "text/xml") ||
		strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected)
	}

	// m4a, mov and some mp3 files sniff as octet-stream; allow by extension
	if detected == "application/octet-stream" {
		return detected, nil
	}
	// The sniffer reports webm audio and mp4 video containers loosely
	if strings.HasPrefix(detected, r.mime) || (t != models.MediaTypeImage && (strings.HasPrefix(detected, "video/") || strings.HasPrefix(detected, "audio/"))) {
		return detected, nil
	}
	if t == models.MediaTypeAudio && detected == "application/ogg" {
		return detected, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, detected)
}
