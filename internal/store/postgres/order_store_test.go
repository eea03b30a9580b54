package postgres

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
)

func TestRecheckPredicateProvenance(t *testing.T) {
	guard := domain.RecheckGuard{
		Kind:       domain.GuardProvenance,
		Provenance: domain.Provenance{Block: 123, LogIndex: 4},
	}

	frag, args := recheckPredicate(guard, 7)
	assert.Equal(t, "(block_number, log_index) < ($7, $8)", frag)
	require.Len(t, args, 2)
	assert.Equal(t, int64(123), args[0])
	assert.Equal(t, 4, args[1])
}

func TestRecheckPredicateValidFrom(t *testing.T) {
	guard := domain.RecheckGuard{
		Kind:       domain.GuardValidFrom,
		Provenance: domain.Provenance{TxTimestamp: 1700000000},
	}

	frag, args := recheckPredicate(guard, 3)
	assert.Equal(t, "valid_from < to_timestamp($3)", frag)
	require.Len(t, args, 1)
	assert.Equal(t, int64(1700000000), args[0])
}

func TestRecheckPredicateCooldown(t *testing.T) {
	guard := domain.RecheckGuard{
		Kind:       domain.GuardCooldown,
		Provenance: domain.Provenance{TxTimestamp: 1700000000},
		Cooldown:   time.Hour,
	}

	frag, args := recheckPredicate(guard, 5)
	assert.Equal(t, "updated_at < to_timestamp($5)", frag)
	require.Len(t, args, 1)
	assert.Equal(t, int64(1700000000-3600), args[0])
}

func TestBigStr(t *testing.T) {
	assert.Nil(t, bigStr(nil))

	v, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	got := bigStr(v)
	require.NotNil(t, got)
	assert.Equal(t, "123456789012345678901234567890", *got)
}

func TestParseBig(t *testing.T) {
	assert.Nil(t, parseBig(nil))

	s := "987654321"
	got := parseBig(&s)
	require.NotNil(t, got)
	assert.Equal(t, int64(987654321), got.Int64())

	bad := "not-a-number"
	assert.Nil(t, parseBig(&bad))
}

func TestJSONOrNullEmptySlices(t *testing.T) {
	got, err := jsonOrNull([]domain.FeeBreakdownEntry(nil))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = jsonOrNull([]domain.MissingRoyalty{})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = jsonOrNull([]domain.FeeBreakdownEntry{{Kind: domain.FeeKindRoyalty, Bps: 100}})
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestAddrLowercased(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000AB")
	assert.Equal(t, "0x00000000000000000000000000000000000000ab", addr(a))
}
