package billing

import "github.com/faithcal/faithcal/app/models"

// Outcome is the terminal classification of one webhook delivery.
type Outcome string

const (
	OutcomeApplied   Outcome = models.WebhookOutcomeApplied
	OutcomeIgnored   Outcome = models.WebhookOutcomeIgnored
	OutcomeAnomaly   Outcome = models.WebhookOutcomeAnomaly
	OutcomeDuplicate Outcome = models.WebhookOutcomeDuplicate
)

// Transition names the entitlement change a delivery applied.
type Transition string

const (
	TransitionNone             Transition = ""
	TransitionPremiumGranted   Transition = "premium_granted"
	TransitionPlacementGranted Transition = "placement_granted"
	TransitionPremiumRevoked   Transition = "premium_revoked"
)

// Result describes what HandleEvent did with a delivery.
type Result struct {
	EventID    string
	EventType  string
	Outcome    Outcome
	Transition Transition
	UserID     uint
	EventRef   *uint
	PaymentID  uint
	// Reason explains ignored, anomalous and duplicate outcomes.
	Reason error
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}
