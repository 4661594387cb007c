package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeAnomaly   = "anomaly"
	WebhookOutcomeDuplicate = "duplicate"
)

// BillingWebhookEvent stores verified provider webhook payloads with
// deduplication metadata for idempotent processing.
type BillingWebhookEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string         `gorm:"type:varchar(191);not null;default:'';index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Payload         datatypes.JSON `json:"payload"`
	Outcome         string         `gorm:"type:varchar(20);not null;default:'';index" json:"outcome"`
	ProcessedAt     *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string         `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
