package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Event is a community event. The prime placement columns are written only by
// the billing reconciler after a completed placement checkout.
type Event struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	Title              string       `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Description        string       `gorm:"type:text;not null" json:"description" validate:"required"`
	CategoryID         uint         `gorm:"not null;index" json:"category_id" validate:"required"`
	Category           *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	StartDate          time.Time    `gorm:"not null;index" json:"start_date" validate:"required"`
	StartTime          string       `gorm:"type:varchar(20);not null" json:"start_time" validate:"required,max=20"`
	Location           string       `gorm:"type:varchar(255);not null" json:"location" validate:"required,max=255"`
	Performers         *string      `gorm:"type:text" json:"performers,omitempty"`
	Speakers           *string      `gorm:"type:text" json:"speakers,omitempty"`
	Topics             *string      `gorm:"type:text" json:"topics,omitempty"`
	UserID             *uint        `gorm:"index" json:"user_id,omitempty"`
	IsPrimePlacement   bool         `gorm:"not null;default:false;index" json:"is_prime_placement"`
	PrimePlacementType *string      `gorm:"type:varchar(20);default:null" json:"prime_placement_type,omitempty"`
	Media              []EventMedia `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"media,omitempty"`
	CreatedAt          time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e *Event) Validate() error {
	v := validator.New()

	return v.Struct(e)
}

// IsOwnedBy reports whether userID may edit the event. Guest posts (no owner)
// are editable by anyone.
func (e *Event) IsOwnedBy(userID uint) bool {
	if e.UserID == nil {
		return true
	}
	return userID != 0 && *e.UserID == userID
}
