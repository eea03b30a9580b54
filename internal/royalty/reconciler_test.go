package royalty

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
)

var (
	marketplaceAddr = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	creatorAddr     = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	creatorAddr2    = common.HexToAddress("0x0000000000000000000000000000000000000b02")
	strangerAddr    = common.HexToAddress("0x0000000000000000000000000000000000000c01")
)

func TestClassifyKnownRecipients(t *testing.T) {
	policy := NewClassifyPolicy([]common.Address{marketplaceAddr})
	known := []domain.Royalty{{Recipient: creatorAddr, Bps: 500}}

	breakdown := policy.Classify([]RawFee{
		{Recipient: marketplaceAddr, Bps: 250},
		{Recipient: creatorAddr, Bps: 500},
	}, known)

	require.Len(t, breakdown, 2)
	assert.Equal(t, domain.FeeKindMarketplace, breakdown[0].Kind)
	assert.Equal(t, domain.FeeKindRoyalty, breakdown[1].Kind)
}

func TestClassifyUnknownByThreshold(t *testing.T) {
	policy := NewClassifyPolicy(nil)

	// A lone low fee from an unknown recipient reads as a marketplace fee.
	breakdown := policy.Classify([]RawFee{{Recipient: strangerAddr, Bps: 100}}, nil)
	require.Len(t, breakdown, 1)
	assert.Equal(t, domain.FeeKindMarketplace, breakdown[0].Kind)

	// Above the threshold it reads as a royalty.
	breakdown = policy.Classify([]RawFee{{Recipient: strangerAddr, Bps: 500}}, nil)
	require.Len(t, breakdown, 1)
	assert.Equal(t, domain.FeeKindRoyalty, breakdown[0].Kind)
}

func TestClassifyTightensAfterMarketplaceFee(t *testing.T) {
	policy := NewClassifyPolicy([]common.Address{marketplaceAddr})

	// Once a marketplace fee has been seen, a second unknown low fee is
	// presumed to be a royalty.
	breakdown := policy.Classify([]RawFee{
		{Recipient: marketplaceAddr, Bps: 250},
		{Recipient: strangerAddr, Bps: 100},
	}, nil)

	require.Len(t, breakdown, 2)
	assert.Equal(t, domain.FeeKindMarketplace, breakdown[0].Kind)
	assert.Equal(t, domain.FeeKindRoyalty, breakdown[1].Kind)
}

func TestBuiltInRoyaltyBps(t *testing.T) {
	breakdown := []domain.FeeBreakdownEntry{
		{Kind: domain.FeeKindMarketplace, Bps: 250},
		{Kind: domain.FeeKindRoyalty, Bps: 300},
		{Kind: domain.FeeKindRoyalty, Bps: 200},
	}
	assert.Equal(t, 500, BuiltInRoyaltyBps(breakdown))
}

func TestMissingShortfall(t *testing.T) {
	price := big.NewInt(10000)
	defaults := []domain.Royalty{{Recipient: creatorAddr, Bps: 300}}

	missing := Missing(price, defaults, 0)
	require.Len(t, missing, 1)
	assert.Equal(t, 300, missing[0].Bps)
	assert.Equal(t, int64(300), missing[0].Amount.Int64())

	missing = Missing(price, defaults, 100)
	require.Len(t, missing, 1)
	assert.Equal(t, 200, missing[0].Bps)
	assert.Equal(t, int64(200), missing[0].Amount.Int64())
}

func TestMissingNoneWhenCovered(t *testing.T) {
	defaults := []domain.Royalty{{Recipient: creatorAddr, Bps: 300}}
	assert.Nil(t, Missing(big.NewInt(10000), defaults, 300))
	assert.Nil(t, Missing(big.NewInt(10000), defaults, 400))
	assert.Nil(t, Missing(nil, defaults, 0))
	assert.Nil(t, Missing(big.NewInt(0), defaults, 0))
}

func TestMissingProRataSplit(t *testing.T) {
	price := big.NewInt(1_000_000)
	defaults := []domain.Royalty{
		{Recipient: creatorAddr, Bps: 400},
		{Recipient: creatorAddr2, Bps: 100},
	}

	missing := Missing(price, defaults, 250)
	require.Len(t, missing, 2)

	// 250 bps shortfall splits 4:1, floors kept.
	assert.Equal(t, 200, missing[0].Bps)
	assert.Equal(t, 50, missing[1].Bps)

	// Shortfall amount 25000 splits 20000/5000.
	assert.Equal(t, int64(20000), missing[0].Amount.Int64())
	assert.Equal(t, int64(5000), missing[1].Amount.Int64())
}

func TestMissingSkipsInvalidRecipients(t *testing.T) {
	price := big.NewInt(10000)
	defaults := []domain.Royalty{
		{Recipient: common.Address{}, Bps: 300},
		{Recipient: creatorAddr, Bps: 200},
	}

	missing := Missing(price, defaults, 0)
	require.Len(t, missing, 1)
	assert.Equal(t, creatorAddr, missing[0].Recipient)
}

func TestMissingAgainstRecipient(t *testing.T) {
	price := big.NewInt(10000)
	defaults := []domain.Royalty{
		{Recipient: creatorAddr, Bps: 300},
		{Recipient: creatorAddr2, Bps: 100},
	}

	missing := MissingAgainstRecipient(price, defaults, creatorAddr, 200)
	require.Len(t, missing, 2)

	// The paid recipient is only owed the remainder; the other in full.
	assert.Equal(t, creatorAddr, missing[0].Recipient)
	assert.Equal(t, 100, missing[0].Bps)
	assert.Equal(t, int64(100), missing[0].Amount.Int64())

	assert.Equal(t, creatorAddr2, missing[1].Recipient)
	assert.Equal(t, 100, missing[1].Bps)
}

func TestMissingAgainstRecipientFullyPaid(t *testing.T) {
	defaults := []domain.Royalty{{Recipient: creatorAddr, Bps: 300}}
	missing := MissingAgainstRecipient(big.NewInt(10000), defaults, creatorAddr, 300)
	assert.Empty(t, missing)
}

func TestNormalizeValue(t *testing.T) {
	missing := []domain.MissingRoyalty{{Recipient: creatorAddr, Bps: 100, Amount: big.NewInt(30)}}

	sell := NormalizeValue(domain.OrderSideSell, big.NewInt(1000), missing)
	assert.Equal(t, int64(1030), sell.Int64())

	buy := NormalizeValue(domain.OrderSideBuy, big.NewInt(1000), missing)
	assert.Equal(t, int64(970), buy.Int64())

	assert.Nil(t, NormalizeValue(domain.OrderSideBuy, nil, missing))
}
