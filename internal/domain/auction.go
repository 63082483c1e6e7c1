// internal/domain/auction.go
package domain

import (
	"errors"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// AuctionID identifies one auction round. IDs are assigned upstream,
// increase monotonically and are never reused.
type AuctionID int64

// OrderUID uniquely identifies an order across auctions.
type OrderUID string

// Order is a pending trade intent. Once included in an auction snapshot
// it is immutable for the lifetime of the round.
type Order struct {
	UID        OrderUID
	Owner      solana.PublicKey
	SellToken  solana.PublicKey
	BuyToken   solana.PublicKey
	SellAmount *big.Int
	BuyAmount  *big.Int
}

var (
	ErrInvalidPrice = errors.New("price must be a positive integer")
	ErrInvalidScore = errors.New("score must be a non-negative integer")
)

// Price is a strictly positive reference or clearing price for a token.
type Price struct {
	value *big.Int
}

// NewPrice validates and wraps a raw price value.
func NewPrice(value *big.Int) (Price, error) {
	if value == nil || value.Sign() <= 0 {
		return Price{}, ErrInvalidPrice
	}
	return Price{value: value}, nil
}

// BigInt returns a copy of the underlying value.
func (p Price) BigInt() *big.Int {
	return new(big.Int).Set(p.value)
}

func (p Price) String() string {
	if p.value == nil {
		return "0"
	}
	return p.value.String()
}

// Auction is the immutable snapshot of one competition round: the open
// orders, the reference prices known for their tokens and the owners
// allowed to originate surplus-capturing JIT orders.
type Auction struct {
	ID                             AuctionID
	Orders                         []Order
	Prices                         map[solana.PublicKey]Price
	SurplusCapturingJITOrderOwners []solana.PublicKey
}
