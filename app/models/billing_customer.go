package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// BillingCustomer maps a provider customer to a local user. It is written when a
// premium checkout completes and read when the provider reports the
// subscription as deleted.
type BillingCustomer struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;index:ux_billing_customers_user_provider,unique,priority:2" json:"user_id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:ux_billing_customers_user_provider,unique,priority:1;index:ux_billing_customers_provider_customer,unique,priority:1" json:"provider"`
	ProviderCustomerID     string     `gorm:"type:varchar(191);not null;index:ux_billing_customers_provider_customer,unique,priority:2" json:"provider_customer_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);default:''" json:"provider_subscription_id"`
	SubscriptionStatus     string     `gorm:"type:varchar(32);not null;default:'active'" json:"subscription_status"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
