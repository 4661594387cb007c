package models

import "time"

type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultCategories is the category set every installation starts with.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Concert", Slug: "concert"},
		{Name: "Workshop", Slug: "workshop"},
		{Name: "Revival", Slug: "revival"},
		{Name: "Conference", Slug: "conference"},
		{Name: "Seminar", Slug: "seminar"},
		{Name: "Retreat", Slug: "retreat"},
		{Name: "Service", Slug: "service"},
		{Name: "Other", Slug: "other"},
	}
}
