package models

import "time"

// MediaType is the kind of file attached to an event.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
)

// Upload directory per media type, relative to the uploads root.
func (t MediaType) Dir() string {
	switch t {
	case MediaTypeImage:
		return "images"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	default:
		return "other"
	}
}

type EventMedia struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EventID      uint      `gorm:"not null;index" json:"event_id"`
	Type         MediaType `gorm:"type:varchar(10);not null" json:"type"`
	URL          string    `gorm:"type:varchar(500);not null" json:"url"`
	ThumbnailURL string    `gorm:"type:varchar(500);default:''" json:"thumbnail_url,omitempty"`
	BackupKey    string    `gorm:"type:varchar(500);default:''" json:"-"`
	Duration     *int      `json:"duration,omitempty"`
	FileSize     int64     `gorm:"default:0" json:"file_size"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}
