package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/internal/pkg/metrics"
)

// Service reconciles verified provider events into entitlements and ledger rows.
type Service struct {
	repo      Repository
	provider  string
	audit     *zap.Logger
	listeners []func(userID uint)
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLogger replaces the default production audit logger.
func WithAuditLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.audit = logger
		}
	}
}

// WithEntitlementListener registers fn to be called after a committed change
// to a user's premium flag.
func WithEntitlementListener(fn func(userID uint)) Option {
	return func(s *Service) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		provider: models.BillingProviderStripe,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audit == nil {
		s.audit = NewAuditLogger()
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, opts ...Option) *Service {
	return NewService(NewRepository(db), opts...)
}

// HandleEvent applies one verified event exactly once. The webhook event row,
// the entitlement change and the ledger row commit in a single transaction.
// A returned error always wraps ErrPersistence and means nothing was committed.
func (s *Service) HandleEvent(ctx context.Context, event stripe.Event, payload []byte) (*Result, error) {
	res := &Result{
		EventID:   strings.TrimSpace(event.ID),
		EventType: string(event.Type),
	}
	if res.EventID == "" {
		sum := sha256.Sum256(payload)
		res.EventID = "hash:" + hex.EncodeToString(sum[:])
	}

	err := s.repo.WithinTransaction(ctx, func(tx Repository) error {
		created, stored, err := tx.CreateWebhookEventIfNotExists(&models.BillingWebhookEvent{
			Provider:        s.provider,
			ProviderEventID: res.EventID,
			EventType:       res.EventType,
			Payload:         payload,
		})
		if err != nil {
			return err
		}
		if !created {
			res.Outcome = OutcomeDuplicate
			res.Reason = fmt.Errorf("event %s already recorded", res.EventID)
			return nil
		}

		applyErr := s.apply(tx, event, res)
		switch {
		case applyErr == nil:
			res.Outcome = OutcomeApplied
		case errors.Is(applyErr, ErrDuplicateDelivery):
			res.Outcome = OutcomeDuplicate
			res.Transition = TransitionNone
		case errors.Is(applyErr, ErrUnrecognizedEventType), errors.Is(applyErr, ErrSupersededSubscription):
			res.Outcome = OutcomeIgnored
		case isAnomaly(applyErr):
			res.Outcome = OutcomeAnomaly
		default:
			return applyErr
		}
		if applyErr != nil {
			res.Reason = applyErr
		}

		errMsg := ""
		if res.Outcome == OutcomeAnomaly && res.Reason != nil {
			errMsg = res.Reason.Error()
		}
		return tx.MarkWebhookProcessed(stored.ID, string(res.Outcome), errMsg)
	})
	if err != nil {
		metrics.ObserveWebhook(res.EventType, "error")
		s.audit.Error("billing webhook persistence failed",
			zap.String("event_id", res.EventID),
			zap.String("event_type", res.EventType),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.record(res)
	return res, nil
}

func (s *Service) record(res *Result) {
	metrics.ObserveWebhook(res.EventType, string(res.Outcome))
	fields := resultFields(res)

	switch res.Outcome {
	case OutcomeApplied:
		metrics.ObserveEntitlement(string(res.Transition))
		s.audit.Info("entitlement applied", fields...)
		for _, fn := range s.listeners {
			fn(res.UserID)
		}
	case OutcomeAnomaly:
		s.audit.Warn("billing webhook anomaly", fields...)
	case OutcomeDuplicate:
		s.audit.Info("duplicate delivery ignored", fields...)
	default:
		s.audit.Debug("billing webhook ignored", fields...)
	}
}

func (s *Service) apply(tx Repository, event stripe.Event, res *Result) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := decodeObject(event, &session); err != nil {
			return err
		}
		return s.applyCheckoutCompleted(tx, res, &session)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		return s.applySubscriptionDeleted(tx, res, &sub)
	default:
		return fmt.Errorf("%w: %s", ErrUnrecognizedEventType, event.Type)
	}
}

func decodeObject(event stripe.Event, v interface{}) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: empty data object", ErrInvalidPayload)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (s *Service) applyCheckoutCompleted(tx Repository, res *Result, session *stripe.CheckoutSession) error {
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("%w: checkout session without id", ErrInvalidPayload)
	}
	intent, err := DecodeCheckoutIntent(session.Metadata)
	if err != nil {
		return err
	}
	res.UserID = intent.Buyer()

	if _, err := tx.FindUser(intent.Buyer()); err != nil {
		return lookupErr(err, "user", intent.Buyer())
	}

	payment := &models.Payment{
		UserID:            intent.Buyer(),
		Amount:            MinorToMajor(session.AmountTotal),
		AmountCents:       session.AmountTotal,
		Currency:          currencyOf(session),
		Provider:          s.provider,
		ProviderPaymentID: session.ID,
		ProviderEventID:   res.EventID,
		Status:            models.PaymentStatusCompleted,
		PaymentType:       intent.PaymentType(),
		Metadata:          metadataMap(session.Metadata),
	}

	switch it := intent.(type) {
	case PlacementIntent:
		if _, err := tx.FindEvent(it.EventID); err != nil {
			return lookupErr(err, "event", it.EventID)
		}
		eventID := it.EventID
		payment.EventID = &eventID
		res.EventRef = &eventID

		if err := s.insertPayment(tx, res, payment); err != nil {
			return err
		}
		if err := tx.GrantPrimePlacement(it.EventID, string(it.Tier)); err != nil {
			return err
		}
		res.Transition = TransitionPlacementGranted

	case PremiumIntent:
		customerID := customerIDOf(session.Customer)
		// anomalies commit the webhook row, so the ownership check runs
		// before any entitlement write
		if customerID != "" {
			owner, err := tx.GetBillingCustomerByProviderCustomerID(s.provider, customerID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if owner != nil && owner.UserID != it.UserID {
				return fmt.Errorf("%w: %s is mapped to user %d", ErrCustomerConflict, customerID, owner.UserID)
			}
		}

		if err := s.insertPayment(tx, res, payment); err != nil {
			return err
		}
		if err := tx.SetUserPremium(it.UserID, true); err != nil {
			return err
		}
		if customerID != "" {
			customer := &models.BillingCustomer{
				UserID:                 it.UserID,
				Provider:               s.provider,
				ProviderCustomerID:     customerID,
				ProviderSubscriptionID: subscriptionIDOf(session.Subscription),
				SubscriptionStatus:     models.SubscriptionStatusActive,
			}
			if err := tx.UpsertBillingCustomer(customer); err != nil {
				return err
			}
		}
		res.Transition = TransitionPremiumGranted
	}
	return nil
}

func (s *Service) insertPayment(tx Repository, res *Result, payment *models.Payment) error {
	created, err := tx.CreatePaymentIfNotExists(payment)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: checkout %s", ErrDuplicateDelivery, payment.ProviderPaymentID)
	}
	res.PaymentID = payment.ID
	return nil
}

func (s *Service) applySubscriptionDeleted(tx Repository, res *Result, sub *stripe.Subscription) error {
	customerID := customerIDOf(sub.Customer)
	if customerID == "" {
		return fmt.Errorf("%w: subscription without customer", ErrInvalidPayload)
	}

	customer, err := tx.GetBillingCustomerByProviderCustomerID(s.provider, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownCustomer, customerID)
		}
		return err
	}
	res.UserID = customer.UserID

	if customer.ProviderSubscriptionID != "" && sub.ID != "" && customer.ProviderSubscriptionID != sub.ID {
		return fmt.Errorf("%w: %s replaced by %s", ErrSupersededSubscription, sub.ID, customer.ProviderSubscriptionID)
	}

	if err := tx.SetUserPremium(customer.UserID, false); err != nil {
		return err
	}
	if err := tx.MarkSubscriptionCanceled(customer.ID, s.now()); err != nil {
		return err
	}
	res.Transition = TransitionPremiumRevoked
	return nil
}

// MinorToMajor converts an amount in minor currency units to major units.
func MinorToMajor(amount int64) float64 {
	return float64(amount) / 100
}

func lookupErr(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrUnknownReference, kind, id)
	}
	return err
}

func currencyOf(session *stripe.CheckoutSession) string {
	if c := strings.TrimSpace(string(session.Currency)); c != "" {
		return strings.ToLower(c)
	}
	return "usd"
}

func customerIDOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.ID)
}

func subscriptionIDOf(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return strings.TrimSpace(sub.ID)
}

func metadataMap(md map[string]string) map[string]interface{} {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
