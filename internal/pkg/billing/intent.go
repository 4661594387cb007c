package billing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/faithcal/faithcal/app/models"
	"github.com/faithcal/faithcal/internal/pkg/entitlements"
)

// Checkout metadata keys shared by the checkout initiator and the reconciler.
const (
	MetaUserID        = "userId"
	MetaEventID       = "eventId"
	MetaPlacementType = "placementType"
	MetaType          = "type"
	MetaPaymentType   = "paymentType"

	metaTypePremium = "premium"
)

// CheckoutIntent is what a checkout session was created to buy. It is either a
// PremiumIntent or a PlacementIntent.
type CheckoutIntent interface {
	PaymentType() string
	Buyer() uint
	Metadata() map[string]string
	isCheckoutIntent()
}

// PremiumIntent buys the recurring premium membership.
type PremiumIntent struct {
	UserID uint
}

func (PremiumIntent) isCheckoutIntent() {}

func (PremiumIntent) PaymentType() string { return models.PaymentTypePremiumSubscription }

func (i PremiumIntent) Buyer() uint { return i.UserID }

func (i PremiumIntent) Metadata() map[string]string {
	return map[string]string{
		MetaUserID:      strconv.FormatUint(uint64(i.UserID), 10),
		MetaType:        metaTypePremium,
		MetaPaymentType: models.PaymentTypePremiumSubscription,
	}
}

// PlacementIntent buys a one-time prime placement for an event.
type PlacementIntent struct {
	UserID  uint
	EventID uint
	Tier    entitlements.PlacementTier
}

func (PlacementIntent) isCheckoutIntent() {}

func (PlacementIntent) PaymentType() string { return models.PaymentTypePrimePlacement }

func (i PlacementIntent) Buyer() uint { return i.UserID }

func (i PlacementIntent) Metadata() map[string]string {
	return map[string]string{
		MetaUserID:        strconv.FormatUint(uint64(i.UserID), 10),
		MetaEventID:       strconv.FormatUint(uint64(i.EventID), 10),
		MetaPlacementType: string(i.Tier),
		MetaPaymentType:   models.PaymentTypePrimePlacement,
	}
}

// DecodeCheckoutIntent turns provider-held checkout metadata into an intent.
// Errors wrap ErrMissingMetadata or ErrInvalidMetadata.
func DecodeCheckoutIntent(md map[string]string) (CheckoutIntent, error) {
	userID, err := metaID(md, MetaUserID)
	if err != nil {
		return nil, err
	}

	if isPremiumMetadata(md) {
		return PremiumIntent{UserID: userID}, nil
	}

	if strings.TrimSpace(md[MetaEventID]) == "" && strings.TrimSpace(md[MetaPlacementType]) == "" {
		return nil, fmt.Errorf("%w: neither premium type nor placement fields present", ErrMissingMetadata)
	}
	eventID, err := metaID(md, MetaEventID)
	if err != nil {
		return nil, err
	}
	rawTier := strings.TrimSpace(md[MetaPlacementType])
	if rawTier == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetadata, MetaPlacementType)
	}
	tier, err := entitlements.ParsePlacementTier(rawTier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	return PlacementIntent{UserID: userID, EventID: eventID, Tier: tier}, nil
}

func isPremiumMetadata(md map[string]string) bool {
	if strings.EqualFold(strings.TrimSpace(md[MetaType]), metaTypePremium) {
		return true
	}
	return strings.TrimSpace(md[MetaPaymentType]) == models.PaymentTypePremiumSubscription
}

func metaID(md map[string]string, key string) (uint, error) {
	raw := strings.TrimSpace(md[key])
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingMetadata, key)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s=%q is not an id", ErrInvalidMetadata, key, raw)
	}
	return uint(id), nil
}
