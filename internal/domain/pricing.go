package domain

// PurchaseTier is one fixed bundle of credits at a fixed price. Purchases are
// simulated: no payment provider is involved, the tier only sizes the credit.
type PurchaseTier struct {
	Credits    int
	PriceCents int // EUR cents
}

// Tiers lists the purchasable bundles, cheapest first.
var Tiers = []PurchaseTier{
	{Credits: 1, PriceCents: 100},
	{Credits: 5, PriceCents: 450},
	{Credits: 10, PriceCents: 800},
	{Credits: 25, PriceCents: 1800},
}

// FindTier resolves a tier by its credit count.
func FindTier(credits int) (PurchaseTier, bool) {
	for _, t := range Tiers {
		if t.Credits == credits {
			return t, true
		}
	}
	return PurchaseTier{}, false
}
