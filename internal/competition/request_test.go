package competition

import (
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
)

func mustPrice(t *testing.T, v int64) domain.Price {
	t.Helper()
	price, err := domain.NewPrice(big.NewInt(v))
	require.NoError(t, err)
	return price
}

func testAuction(t *testing.T, tokenA, tokenB solana.PublicKey) *domain.Auction {
	t.Helper()
	return &domain.Auction{
		ID: 1,
		Orders: []domain.Order{
			{
				UID:        "order-1",
				Owner:      solana.NewWallet().PublicKey(),
				SellToken:  tokenA,
				BuyToken:   tokenB,
				SellAmount: big.NewInt(1_000_000),
				BuyAmount:  big.NewInt(2_000_000),
			},
		},
		Prices: map[solana.PublicKey]domain.Price{
			tokenA: mustPrice(t, 100),
			tokenB: mustPrice(t, 50),
		},
	}
}

func TestNewRequestDeduplicatesTrustedPricedToken(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)
	trusted := map[solana.PublicKey]bool{tokenA: true}

	req, err := NewRequest(time.Now(), auction, trusted, 10*time.Second)
	require.NoError(t, err)

	var entries []Token
	for _, token := range req.Tokens {
		if token.Address == tokenA.String() {
			entries = append(entries, token)
		}
	}
	require.Len(t, entries, 1, "a token both priced and trusted must appear exactly once")
	require.NotNil(t, entries[0].Price, "the priced entry must win over the price-less trusted one")
	assert.Equal(t, "100", *entries[0].Price)
	assert.True(t, entries[0].Trusted)
}

func TestNewRequestEmitsPricelessTrustedToken(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	unpriced := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)
	trusted := map[solana.PublicKey]bool{unpriced: true}

	req, err := NewRequest(time.Now(), auction, trusted, 10*time.Second)
	require.NoError(t, err)

	var found *Token
	for i, token := range req.Tokens {
		if token.Address == unpriced.String() {
			found = &req.Tokens[i]
		}
	}
	require.NotNil(t, found)
	assert.Nil(t, found.Price)
	assert.True(t, found.Trusted)
}

func TestNewRequestDeadlineIsBuildTimePlusBudget(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	budget := 15 * time.Second

	req, err := NewRequest(now, auction, nil, budget)
	require.NoError(t, err)
	assert.Equal(t, now.Add(budget), req.Deadline)
}

func TestNewRequestIsDeterministic(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)
	trusted := map[solana.PublicKey]bool{
		tokenA:                         true,
		solana.NewWallet().PublicKey(): true,
		solana.NewWallet().PublicKey(): true,
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := NewRequest(now, auction, trusted, time.Second)
	require.NoError(t, err)
	firstBytes, err := first.Encode()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		next, err := NewRequest(now, auction, trusted, time.Second)
		require.NoError(t, err)
		nextBytes, err := next.Encode()
		require.NoError(t, err)
		assert.Equal(t, firstBytes, nextBytes, "request must be byte-identical across builds")
	}
}

func TestNewRequestRejectsMalformedAuction(t *testing.T) {
	_, err := NewRequest(time.Now(), nil, nil, time.Second)
	assert.ErrorIs(t, err, ErrMalformedAuction)

	_, err = NewRequest(time.Now(), &domain.Auction{ID: 0}, nil, time.Second)
	assert.ErrorIs(t, err, ErrMalformedAuction)

	auction := &domain.Auction{
		ID:     7,
		Orders: []domain.Order{{UID: "order-1"}}, // missing amounts
	}
	_, err = NewRequest(time.Now(), auction, nil, time.Second)
	assert.ErrorIs(t, err, ErrMalformedAuction)
}
