package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentTypePrimePlacement      = "PrimePlacement"
	PaymentTypePremiumSubscription = "PremiumSubscription"
)

const (
	PaymentStatusCompleted = "Completed"
	PaymentStatusFailed    = "Failed"
)

// Payment is an append-only ledger row for one completed provider checkout.
// ProviderPaymentID holds the checkout session id and is unique, so a second
// delivery for the same checkout can never add a second row.
type Payment struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	UserID            uint              `gorm:"not null;index" json:"user_id"`
	EventID           *uint             `gorm:"index" json:"event_id"`
	Event             *Event            `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Amount            float64           `gorm:"type:decimal(10,2);not null" json:"amount"`
	AmountCents       int64             `gorm:"not null;default:0" json:"amount_cents"`
	Currency          string            `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Provider          string            `gorm:"type:varchar(20);not null;default:'stripe'" json:"provider"`
	ProviderPaymentID string            `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_payment_id"`
	ProviderEventID   string            `gorm:"type:varchar(191);not null;default:'';index" json:"provider_event_id"`
	Status            string            `gorm:"type:varchar(20);not null" json:"status"`
	PaymentType       string            `gorm:"type:varchar(40);not null;index" json:"payment_type"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}
