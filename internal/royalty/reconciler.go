package royalty

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainbook/chainbook/internal/domain"
)

// DefaultRoyaltyThresholdBps is the classification cutoff for unknown fee
// recipients: above it a fee is presumed to be a royalty.
const DefaultRoyaltyThresholdBps = 250

// RawFee is one undifferentiated fee taken from an exchange order's
// consideration before classification.
type RawFee struct {
	Recipient common.Address
	Bps       int
}

// ClassifyPolicy decides whether each raw fee is a marketplace fee or a
// royalty. Recipients on neither list are classified by the threshold
// heuristic, tightened once a marketplace fee has already been seen.
type ClassifyPolicy struct {
	MarketplaceRecipients map[common.Address]struct{}
	RoyaltyThresholdBps   int
}

// NewClassifyPolicy builds a policy from the configured marketplace
// recipients, using the default threshold.
func NewClassifyPolicy(marketplaceRecipients []common.Address) ClassifyPolicy {
	known := make(map[common.Address]struct{}, len(marketplaceRecipients))
	for _, a := range marketplaceRecipients {
		known[a] = struct{}{}
	}
	return ClassifyPolicy{
		MarketplaceRecipients: known,
		RoyaltyThresholdBps:   DefaultRoyaltyThresholdBps,
	}
}

// Classify tags each raw fee. Known marketplace recipients are marketplace
// fees; recipients present in the collection's royalty schedules are
// royalties; anything else is a royalty when a marketplace fee was already
// found or when its rate exceeds the threshold, and a marketplace fee
// otherwise.
func (p ClassifyPolicy) Classify(fees []RawFee, knownRoyalties []domain.Royalty) []domain.FeeBreakdownEntry {
	royaltyRecipients := make(map[common.Address]struct{}, len(knownRoyalties))
	for _, r := range knownRoyalties {
		royaltyRecipients[r.Recipient] = struct{}{}
	}

	threshold := p.RoyaltyThresholdBps
	if threshold == 0 {
		threshold = DefaultRoyaltyThresholdBps
	}

	breakdown := make([]domain.FeeBreakdownEntry, 0, len(fees))
	marketplaceFeeFound := false
	for _, fee := range fees {
		kind := domain.FeeKindMarketplace
		switch {
		case hasAddr(p.MarketplaceRecipients, fee.Recipient):
			kind = domain.FeeKindMarketplace
		case hasAddr(royaltyRecipients, fee.Recipient):
			kind = domain.FeeKindRoyalty
		case marketplaceFeeFound || fee.Bps > threshold:
			kind = domain.FeeKindRoyalty
		}
		if kind == domain.FeeKindMarketplace {
			marketplaceFeeFound = true
		}
		breakdown = append(breakdown, domain.FeeBreakdownEntry{
			Kind:      kind,
			Recipient: fee.Recipient,
			Bps:       fee.Bps,
		})
	}
	return breakdown
}

func hasAddr(set map[common.Address]struct{}, a common.Address) bool {
	_, ok := set[a]
	return ok
}

// BuiltInRoyaltyBps sums the royalty-tagged portion of a fee breakdown.
func BuiltInRoyaltyBps(breakdown []domain.FeeBreakdownEntry) int {
	total := 0
	for _, entry := range breakdown {
		if entry.Kind == domain.FeeKindRoyalty {
			total += entry.Bps
		}
	}
	return total
}

// Missing computes the pro-rata shortfall between the collection's default
// royalties and the royalties already built into an order. The shortfall
// rate is split across the default recipients in proportion to their
// configured rates, rounding each share down; sub-bps remainders are
// dropped, never redistributed.
func Missing(price *big.Int, defaults []domain.Royalty, builtInBps int) []domain.MissingRoyalty {
	totalDefault := 0
	totalValid := 0
	for _, r := range defaults {
		totalDefault += r.Bps
		if r.Bps > 0 && r.Recipient != (common.Address{}) {
			totalValid += r.Bps
		}
	}
	if builtInBps >= totalDefault || totalValid == 0 || price == nil || price.Sign() <= 0 {
		return nil
	}

	shortfallBps := totalDefault - builtInBps
	shortfallAmount := new(big.Int).Mul(price, big.NewInt(int64(shortfallBps)))
	shortfallAmount.Div(shortfallAmount, big.NewInt(10000))

	var missing []domain.MissingRoyalty
	for _, r := range defaults {
		if r.Bps <= 0 || r.Recipient == (common.Address{}) {
			continue
		}
		bps := shortfallBps * r.Bps / totalValid
		amount := new(big.Int).Mul(shortfallAmount, big.NewInt(int64(r.Bps)))
		amount.Div(amount, big.NewInt(int64(totalValid)))
		if bps <= 0 && amount.Sign() <= 0 {
			continue
		}
		missing = append(missing, domain.MissingRoyalty{
			Recipient: r.Recipient,
			Bps:       bps,
			Amount:    amount,
		})
	}
	return missing
}

// MissingAgainstRecipient computes the shortfall for a pool order that
// already pays poolBps to one specific recipient. That recipient's default
// entry is reduced by the amount already paid; every other default recipient
// is owed in full.
func MissingAgainstRecipient(price *big.Int, defaults []domain.Royalty, paidRecipient common.Address, paidBps int) []domain.MissingRoyalty {
	if price == nil || price.Sign() <= 0 {
		return nil
	}

	var missing []domain.MissingRoyalty
	for _, r := range defaults {
		if r.Bps <= 0 || r.Recipient == (common.Address{}) {
			continue
		}
		bps := r.Bps
		if r.Recipient == paidRecipient {
			bps -= paidBps
		}
		if bps <= 0 {
			continue
		}
		amount := new(big.Int).Mul(price, big.NewInt(int64(bps)))
		amount.Div(amount, big.NewInt(10000))
		missing = append(missing, domain.MissingRoyalty{
			Recipient: r.Recipient,
			Bps:       bps,
			Amount:    amount,
		})
	}
	return missing
}

// TotalMissing sums the amounts of a missing-royalty schedule.
func TotalMissing(missing []domain.MissingRoyalty) *big.Int {
	total := new(big.Int)
	for _, m := range missing {
		if m.Amount != nil {
			total.Add(total, m.Amount)
		}
	}
	return total
}

// NormalizeValue applies the missing-royalty total to an order's value: asks
// cost the taker more, bids net the taker less.
func NormalizeValue(side domain.OrderSide, value *big.Int, missing []domain.MissingRoyalty) *big.Int {
	if value == nil {
		return nil
	}
	total := TotalMissing(missing)
	normalized := new(big.Int).Set(value)
	if side == domain.OrderSideSell {
		return normalized.Add(normalized, total)
	}
	return normalized.Sub(normalized, total)
}
