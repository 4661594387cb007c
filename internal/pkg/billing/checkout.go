package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/internal/pkg/entitlements"
	"github.com/faithcal/faithcal/internal/pkg/metrics"
)

// SessionCreator is the subset of the Stripe checkout session API used here.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// CheckoutSession is the provider-hosted page a buyer is redirected to.
type CheckoutSession struct {
	ID          string `json:"sessionId"`
	URL         string `json:"url"`
	AmountCents int64  `json:"amountCents,omitempty"`
}

// Gateway creates checkout sessions tagged with the metadata the reconciler
// decodes when the payment completes.
type Gateway struct {
	sessions SessionCreator
	repo     Repository
	cfg      Config
}

// NewStripeGateway builds a gateway around its own Stripe API client.
func NewStripeGateway(cfg Config, repo Repository) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY", ErrNotConfigured)
	}
	sc := client.New(cfg.SecretKey, nil)
	return NewGateway(sc.CheckoutSessions, repo, cfg), nil
}

// NewGateway creates a gateway from an injected session creator.
func NewGateway(sessions SessionCreator, repo Repository, cfg Config) *Gateway {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{sessions: sessions, repo: repo, cfg: cfg}
}

// CreatePlacementCheckout starts a one-time payment for a prime placement.
// Premium members are charged the discounted price.
func (g *Gateway) CreatePlacementCheckout(ctx context.Context, user *models.User, event *models.Event, tier entitlements.PlacementTier) (*CheckoutSession, error) {
	intent := PlacementIntent{UserID: user.ID, EventID: event.ID, Tier: tier}
	amount := tier.PriceCents(entitlements.PlanFor(user.IsPremium))
	eventURL := fmt.Sprintf("%s/events/%d", g.cfg.BaseURL, event.ID)

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Prime Placement - " + tier.Label()),
						Description: stripe.String(fmt.Sprintf("Feature %q on the %s", event.Title, strings.ToLower(tier.Label()))),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(eventURL + "?payment=success"),
		CancelURL:         stripe.String(eventURL + "?payment=cancelled"),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(user.ID), 10)),
		CustomerEmail:     stripe.String(user.Email),
	}
	params.Context = ctx
	for k, v := range intent.Metadata() {
		params.AddMetadata(k, v)
	}

	return g.create(params, "placement", amount)
}

// CreatePremiumCheckout starts the premium subscription. A provider customer
// recorded from an earlier subscription is reused so cancellations map back
// to the same user.
func (g *Gateway) CreatePremiumCheckout(ctx context.Context, user *models.User) (*CheckoutSession, error) {
	if g.cfg.PremiumPriceID == "" {
		return nil, fmt.Errorf("%w: STRIPE_PREMIUM_PRICE_ID", ErrNotConfigured)
	}
	intent := PremiumIntent{UserID: user.ID}
	premiumURL := g.cfg.BaseURL + "/premium"

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(g.cfg.PremiumPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(premiumURL + "?payment=success"),
		CancelURL:         stripe.String(premiumURL + "?payment=cancelled"),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(user.ID), 10)),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: intent.Metadata(),
		},
	}
	params.Context = ctx

	customer, err := g.repo.GetBillingCustomerByUser(models.BillingProviderStripe, user.ID)
	switch {
	case err == nil && customer.ProviderCustomerID != "":
		params.Customer = stripe.String(customer.ProviderCustomerID)
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		params.CustomerEmail = stripe.String(user.Email)
	default:
		return nil, err
	}
	for k, v := range intent.Metadata() {
		params.AddMetadata(k, v)
	}

	return g.create(params, "premium", 0)
}

func (g *Gateway) create(params *stripe.CheckoutSessionParams, kind string, amount int64) (*CheckoutSession, error) {
	session, err := g.sessions.New(params)
	if err != nil {
		metrics.ObserveCheckout(kind, "error")
		return nil, fmt.Errorf("create %s checkout session: %w", kind, err)
	}
	metrics.ObserveCheckout(kind, "created")
	return &CheckoutSession{ID: session.ID, URL: session.URL, AmountCents: amount}, nil
}
