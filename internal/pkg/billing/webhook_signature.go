package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Verifier authenticates Stripe webhook deliveries against the endpoint's
// signing secret before anything reads the payload.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier creates a verifier with the provider's default timestamp tolerance.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    strings.TrimSpace(secret),
		tolerance: webhook.DefaultTolerance,
	}
}

// Verify checks the Stripe-Signature header over the raw payload and returns
// the parsed event. Every failure wraps ErrSignatureInvalid.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return stripe.Event{}, ErrMissingSignature
	}
	if v.secret == "" {
		return stripe.Event{}, fmt.Errorf("%w: signing secret not configured", ErrSignatureInvalid)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	return event, nil
}
