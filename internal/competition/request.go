// internal/competition/request.go
package competition

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
)

// ErrMalformedAuction means the snapshot cannot be turned into a
// request. Fatal for the round, never dispatched to any solver.
var ErrMalformedAuction = errors.New("malformed auction snapshot")

// NewRequest builds the competition request for one auction round.
//
// The token list contains one entry per priced token (trusted when the
// address is in the trusted set) followed by one price-less entry per
// trusted token that has no reference price. Duplicates keep the first
// occurrence, so a token that is both priced and trusted retains its
// price. Entries are ordered by address within each group, which makes
// the output byte-identical across repeated builds from equal inputs.
//
// The deadline is absolute: build time plus the round budget, computed
// once so that every solver shares the same wall-clock cutoff.
func NewRequest(now time.Time, auction *domain.Auction, trusted map[solana.PublicKey]bool, budget time.Duration) (*Request, error) {
	if auction == nil || auction.ID <= 0 {
		return nil, fmt.Errorf("%w: missing auction id", ErrMalformedAuction)
	}

	orders := make([]Order, 0, len(auction.Orders))
	for _, order := range auction.Orders {
		if order.UID == "" || order.SellAmount == nil || order.BuyAmount == nil {
			return nil, fmt.Errorf("%w: incomplete order %q", ErrMalformedAuction, order.UID)
		}
		orders = append(orders, Order{
			UID:        string(order.UID),
			Owner:      order.Owner.String(),
			SellToken:  order.SellToken.String(),
			BuyToken:   order.BuyToken.String(),
			SellAmount: order.SellAmount.String(),
			BuyAmount:  order.BuyAmount.String(),
		})
	}

	seen := make(map[solana.PublicKey]bool, len(auction.Prices)+len(trusted))
	tokens := make([]Token, 0, len(auction.Prices)+len(trusted))

	for _, address := range sortedAddresses(auction.Prices) {
		price := auction.Prices[address].String()
		tokens = append(tokens, Token{
			Address: address.String(),
			Price:   &price,
			Trusted: trusted[address],
		})
		seen[address] = true
	}
	for _, address := range sortedTrusted(trusted) {
		if seen[address] {
			continue
		}
		tokens = append(tokens, Token{
			Address: address.String(),
			Price:   nil,
			Trusted: true,
		})
		seen[address] = true
	}

	owners := make([]string, 0, len(auction.SurplusCapturingJITOrderOwners))
	for _, owner := range auction.SurplusCapturingJITOrderOwners {
		owners = append(owners, owner.String())
	}

	return &Request{
		ID:                             strconv.FormatInt(int64(auction.ID), 10),
		Tokens:                         tokens,
		Orders:                         orders,
		Deadline:                       now.Add(budget).UTC(),
		SurplusCapturingJitOrderOwners: owners,
	}, nil
}

func sortedAddresses(prices map[solana.PublicKey]domain.Price) []solana.PublicKey {
	addresses := make([]solana.PublicKey, 0, len(prices))
	for address := range prices {
		addresses = append(addresses, address)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].String() < addresses[j].String()
	})
	return addresses
}

func sortedTrusted(trusted map[solana.PublicKey]bool) []solana.PublicKey {
	addresses := make([]solana.PublicKey, 0, len(trusted))
	for address, ok := range trusted {
		if ok {
			addresses = append(addresses, address)
		}
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].String() < addresses[j].String()
	})
	return addresses
}
