package entitlements

import (
	"fmt"
	"strings"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// PlanFor maps the persisted premium flag to a plan.
func PlanFor(isPremium bool) Plan {
	if isPremium {
		return PlanPremium
	}
	return PlanFree
}

// PlacementTier is where a prime-placed event is featured.
type PlacementTier string

const (
	TierHomepage PlacementTier = "homepage"
	TierCategory PlacementTier = "category"
	TierSearch   PlacementTier = "search"
)

// PremiumPlacementDiscountPercent is taken off placement prices for premium members.
const PremiumPlacementDiscountPercent = 20

var placementPrices = map[PlacementTier]int64{
	TierHomepage: 5000,
	TierCategory: 3000,
	TierSearch:   2000,
}

// Tiers lists all placement tiers, most prominent first.
func Tiers() []PlacementTier {
	return []PlacementTier{TierHomepage, TierCategory, TierSearch}
}

// ParsePlacementTier accepts a tier name case-insensitively.
func ParsePlacementTier(raw string) (PlacementTier, error) {
	t := PlacementTier(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := placementPrices[t]; !ok {
		return "", fmt.Errorf("unknown placement tier %q", raw)
	}
	return t, nil
}

// BasePriceCents returns the list price of a tier in minor currency units.
func (t PlacementTier) BasePriceCents() int64 {
	return placementPrices[t]
}

// PriceCents returns what a member on plan pays for the tier.
func (t PlacementTier) PriceCents(plan Plan) int64 {
	base := t.BasePriceCents()
	if plan == PlanPremium {
		return base * (100 - PremiumPlacementDiscountPercent) / 100
	}
	return base
}

// Label is the human readable product name of the tier.
func (t PlacementTier) Label() string {
	switch t {
	case TierHomepage:
		return "Homepage"
	case TierCategory:
		return "Category Page"
	case TierSearch:
		return "Search Results"
	default:
		return string(t)
	}
}

// FormatCents renders minor units as a major-unit amount, e.g. 4000 -> "40.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
