package collectionxyz

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/chain"
	"github.com/chainbook/chainbook/internal/domain"
)

var (
	factoryAddr = common.HexToAddress("0x0000000000000000000000000000000000000f01")
	poolAddr    = common.HexToAddress("0x0000000000000000000000000000000000000f02")
	creatorAddr = common.HexToAddress("0x0000000000000000000000000000000000000f03")
)

func multipliers(trade, protocol, royaltyNum, carry int64) chain.FeeMultipliers {
	return chain.FeeMultipliers{
		Trade:            big.NewInt(trade),
		Protocol:         big.NewInt(protocol),
		RoyaltyNumerator: big.NewInt(royaltyNum),
		Carry:            big.NewInt(carry),
	}
}

func TestPoolFeeSchedule(t *testing.T) {
	// Trade 200bps, protocol 50bps, carry 1% of the trade fee. The factory
	// ends up with 50 + 2 = 52bps, the pool keeps the full 200bps.
	fm := multipliers(20000, 5000, 0, 100000)
	sched := poolFeeSchedule(fm, factoryAddr, poolAddr, creatorAddr)

	assert.Equal(t, 250, sched.feeBps)
	assert.Equal(t, 0, sched.royaltyBps)

	require.Len(t, sched.breakdown, 2)
	assert.Equal(t, domain.FeeKindMarketplace, sched.breakdown[0].Kind)
	assert.Equal(t, factoryAddr, sched.breakdown[0].Recipient)
	assert.Equal(t, 52, sched.breakdown[0].Bps)

	assert.Equal(t, poolAddr, sched.breakdown[1].Recipient)
	assert.Equal(t, 200, sched.breakdown[1].Bps)
}

func TestPoolFeeScheduleTinyCarryRoundsAway(t *testing.T) {
	// A 0.01% carry of a 200bps trade fee is 0.02bps, which rounds to
	// nothing on top of the 50bps protocol fee.
	sched := poolFeeSchedule(multipliers(20000, 5000, 0, 1000), factoryAddr, poolAddr, creatorAddr)

	require.NotEmpty(t, sched.breakdown)
	assert.Equal(t, factoryAddr, sched.breakdown[0].Recipient)
	assert.Equal(t, 50, sched.breakdown[0].Bps)
}

func TestPoolFeeScheduleWithRoyalty(t *testing.T) {
	fm := multipliers(20000, 5000, 30000, 0)
	sched := poolFeeSchedule(fm, factoryAddr, poolAddr, creatorAddr)

	assert.Equal(t, 550, sched.feeBps)
	assert.Equal(t, 300, sched.royaltyBps)

	require.Len(t, sched.breakdown, 3)
	last := sched.breakdown[2]
	assert.Equal(t, domain.FeeKindRoyalty, last.Kind)
	assert.Equal(t, creatorAddr, last.Recipient)
	assert.Equal(t, 300, last.Bps)
}

func TestPoolFeeScheduleDropsZeroComponents(t *testing.T) {
	sched := poolFeeSchedule(multipliers(0, 0, 0, 0), factoryAddr, poolAddr, creatorAddr)
	assert.Empty(t, sched.breakdown)
	assert.Equal(t, 0, sched.feeBps)

	// Protocol fee only: no pool or royalty entries.
	sched = poolFeeSchedule(multipliers(0, 5000, 0, 0), factoryAddr, poolAddr, creatorAddr)
	require.Len(t, sched.breakdown, 1)
	assert.Equal(t, factoryAddr, sched.breakdown[0].Recipient)
	assert.Equal(t, 50, sched.breakdown[0].Bps)
}

// newFailingChain returns a client whose every call errors, standing in
// for an unreachable node.
func newFailingChain(t *testing.T) *chain.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no backend", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	client, err := chain.Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	return client
}

func TestResolveFactsNewPoolNeedsRoyaltyFallback(t *testing.T) {
	a := NewAdapter(newFailingChain(t), nil, nil, nil, nil, nil, nil, nil, nil, nil,
		Config{Factory: factoryAddr}, slog.Default())

	// The notice carries the asset recipient and external filter but not
	// the royalty fallback, and the chain read for it fails.
	asset := creatorAddr
	filter := common.Address{}
	notice := domain.OrderNotice{
		Kind:           domain.OrderKindCollectionXyz,
		Pool:           poolAddr,
		AssetRecipient: &asset,
		ExternalFilter: &filter,
	}
	pool := domain.Pool{Kind: domain.OrderKindCollectionXyz, Address: poolAddr}

	_, err := a.resolveFacts(context.Background(), pool, notice)
	require.ErrorIs(t, err, errNewPoolInfoMissing)
	assert.Equal(t, domain.StatusMissingNewPoolInfo, factsStatus(err))
}

func TestRoundDiv(t *testing.T) {
	assert.Equal(t, int64(1), roundDiv(50, 100))
	assert.Equal(t, int64(0), roundDiv(49, 100))
	assert.Equal(t, int64(2), roundDiv(150, 100))
	assert.Equal(t, int64(52), roundDiv(520000000, 10000000))
}
