package royalty

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
)

type stubRoyaltyStore struct {
	bySpec map[domain.RoyaltySpec][]domain.Royalty
}

func (s *stubRoyaltyStore) ByContract(_ context.Context, _ common.Address, spec domain.RoyaltySpec) ([]domain.Royalty, error) {
	return s.bySpec[spec], nil
}

var (
	nftContract   = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	fallbackAddr  = common.HexToAddress("0x0000000000000000000000000000000000000e02")
	assetAddr     = common.HexToAddress("0x0000000000000000000000000000000000000e03")
	recipientAddr = common.HexToAddress("0x0000000000000000000000000000000000000e04")
)

func TestResolveRecipientSingleOnChainEntry(t *testing.T) {
	store := &stubRoyaltyStore{bySpec: map[domain.RoyaltySpec][]domain.Royalty{
		domain.RoyaltySpecOnChain: {{Recipient: recipientAddr, Bps: 300}},
	}}
	r := NewRegistry(store, nil, slog.Default())

	got, err := r.ResolveRecipient(context.Background(), nftContract, nil, fallbackAddr, assetAddr)
	require.NoError(t, err)
	assert.Equal(t, recipientAddr, got)
}

func TestResolveRecipientMultipleEntriesUseFallback(t *testing.T) {
	store := &stubRoyaltyStore{bySpec: map[domain.RoyaltySpec][]domain.Royalty{
		domain.RoyaltySpecOnChain: {
			{Recipient: recipientAddr, Bps: 200},
			{Recipient: fallbackAddr, Bps: 100},
		},
	}}
	r := NewRegistry(store, nil, slog.Default())

	got, err := r.ResolveRecipient(context.Background(), nftContract, nil, fallbackAddr, assetAddr)
	require.NoError(t, err)
	assert.Equal(t, fallbackAddr, got)
}

func TestResolveRecipientAssetRecipientLast(t *testing.T) {
	store := &stubRoyaltyStore{bySpec: map[domain.RoyaltySpec][]domain.Royalty{}}
	r := NewRegistry(store, nil, slog.Default())

	got, err := r.ResolveRecipient(context.Background(), nftContract, nil, common.Address{}, assetAddr)
	require.NoError(t, err)
	assert.Equal(t, assetAddr, got)
}

func TestOnChainStoreOnlyWithoutReader(t *testing.T) {
	store := &stubRoyaltyStore{bySpec: map[domain.RoyaltySpec][]domain.Royalty{}}
	r := NewRegistry(store, nil, slog.Default())

	royalties, err := r.OnChain(context.Background(), nftContract, nil)
	require.NoError(t, err)
	assert.Empty(t, royalties)
}
