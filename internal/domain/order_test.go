package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000ab")

func TestOrderIDDeterministic(t *testing.T) {
	a := OrderID(OrderKindSudoswap, poolAddr, OrderSideBuy, nil)
	b := OrderID(OrderKindSudoswap, poolAddr, OrderSideBuy, nil)
	assert.Equal(t, a, b)
	assert.Regexp(t, "^0x[0-9a-f]{64}$", a)
}

func TestOrderIDVariesByComponent(t *testing.T) {
	base := OrderID(OrderKindSudoswap, poolAddr, OrderSideBuy, nil)

	assert.NotEqual(t, base, OrderID(OrderKindCollectionXyz, poolAddr, OrderSideBuy, nil))
	assert.NotEqual(t, base, OrderID(OrderKindSudoswap, poolAddr, OrderSideSell, nil))
	assert.NotEqual(t, base, OrderID(OrderKindSudoswap, poolAddr, OrderSideBuy, big.NewInt(1)))

	other := common.HexToAddress("0x00000000000000000000000000000000000000cd")
	assert.NotEqual(t, base, OrderID(OrderKindSudoswap, other, OrderSideBuy, nil))
}

func TestOrderIDPerTokenID(t *testing.T) {
	a := OrderID(OrderKindSudoswap, poolAddr, OrderSideSell, big.NewInt(1))
	b := OrderID(OrderKindSudoswap, poolAddr, OrderSideSell, big.NewInt(2))
	assert.NotEqual(t, a, b)
}

func TestNoticeGuard(t *testing.T) {
	notice := OrderNotice{Provenance: Provenance{Block: 10, LogIndex: 2, TxTimestamp: 1700000000}}
	cooldown := time.Hour

	guard := notice.Guard(GuardProvenance, cooldown)
	assert.Equal(t, GuardProvenance, guard.Kind)
	assert.Equal(t, notice.Provenance, guard.Provenance)

	guard = notice.Guard(GuardValidFrom, cooldown)
	assert.Equal(t, GuardValidFrom, guard.Kind)

	notice.ForceRecheck = true
	guard = notice.Guard(GuardProvenance, cooldown)
	assert.Equal(t, GuardCooldown, guard.Kind)
	assert.Equal(t, cooldown, guard.Cooldown)
}

func TestSnapshotIncomplete(t *testing.T) {
	assert.True(t, OrderSnapshot{ID: "x"}.Incomplete())
	assert.False(t, OrderSnapshot{ID: "x", TokenSetID: "set"}.Incomplete())
}

func TestTokenSetIDsLowercased(t *testing.T) {
	contract := common.HexToAddress("0x00000000000000000000000000000000000000AB")

	single := SingleTokenSetID(contract, big.NewInt(7))
	assert.Equal(t, "token:0x00000000000000000000000000000000000000ab:7", single)

	wide := ContractWideSetID(contract)
	assert.Equal(t, "contract:0x00000000000000000000000000000000000000ab", wide)

	root := common.HexToHash("0xAA00000000000000000000000000000000000000000000000000000000000011")
	list := TokenListSetID(contract, root)
	assert.Equal(t, "list:0x00000000000000000000000000000000000000ab:0xaa00000000000000000000000000000000000000000000000000000000000011", list)
}
