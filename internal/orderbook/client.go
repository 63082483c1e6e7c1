// internal/orderbook/client.go
package orderbook

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
)

// Client fetches auction snapshots from the upstream orderbook service.
// How the orderbook assembles orders and prices is outside this
// process; the snapshot arrives fully formed.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient constructs an orderbook client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  logger.Named("orderbook"),
	}
}

type auctionDTO struct {
	ID                             string            `json:"id"`
	Orders                         []orderDTO        `json:"orders"`
	Prices                         map[string]string `json:"prices"`
	SurplusCapturingJitOrderOwners []string          `json:"surplusCapturingJitOrderOwners"`
}

type orderDTO struct {
	UID        string `json:"uid"`
	Owner      string `json:"owner"`
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
	BuyAmount  string `json:"buyAmount"`
}

// CurrentAuction fetches the next auction snapshot to run a round for.
func (c *Client) CurrentAuction(ctx context.Context) (*domain.Auction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/auction", nil)
	if err != nil {
		return nil, fmt.Errorf("build auction request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch auction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch auction: unexpected status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.DisallowUnknownFields()
	var dto auctionDTO
	if err := dec.Decode(&dto); err != nil {
		return nil, fmt.Errorf("decode auction: %w", err)
	}

	return intoDomain(&dto)
}

func intoDomain(dto *auctionDTO) (*domain.Auction, error) {
	id, err := strconv.ParseInt(dto.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auction id %q: %w", dto.ID, err)
	}

	orders := make([]domain.Order, 0, len(dto.Orders))
	for _, o := range dto.Orders {
		order, err := orderIntoDomain(&o)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	prices := make(map[solana.PublicKey]domain.Price, len(dto.Prices))
	for token, raw := range dto.Prices {
		address, err := solana.PublicKeyFromBase58(token)
		if err != nil {
			return nil, fmt.Errorf("price token %q: %w", token, err)
		}
		value, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("price %q for token %q is not an integer", raw, token)
		}
		price, err := domain.NewPrice(value)
		if err != nil {
			return nil, fmt.Errorf("price for token %q: %w", token, err)
		}
		prices[address] = price
	}

	owners := make([]solana.PublicKey, 0, len(dto.SurplusCapturingJitOrderOwners))
	for _, raw := range dto.SurplusCapturingJitOrderOwners {
		owner, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return nil, fmt.Errorf("jit order owner %q: %w", raw, err)
		}
		owners = append(owners, owner)
	}

	return &domain.Auction{
		ID:                             domain.AuctionID(id),
		Orders:                         orders,
		Prices:                         prices,
		SurplusCapturingJITOrderOwners: owners,
	}, nil
}

func orderIntoDomain(o *orderDTO) (*domain.Order, error) {
	owner, err := solana.PublicKeyFromBase58(o.Owner)
	if err != nil {
		return nil, fmt.Errorf("order %q owner: %w", o.UID, err)
	}
	sellToken, err := solana.PublicKeyFromBase58(o.SellToken)
	if err != nil {
		return nil, fmt.Errorf("order %q sell token: %w", o.UID, err)
	}
	buyToken, err := solana.PublicKeyFromBase58(o.BuyToken)
	if err != nil {
		return nil, fmt.Errorf("order %q buy token: %w", o.UID, err)
	}
	sellAmount, ok := new(big.Int).SetString(o.SellAmount, 10)
	if !ok {
		return nil, fmt.Errorf("order %q sell amount %q", o.UID, o.SellAmount)
	}
	buyAmount, ok := new(big.Int).SetString(o.BuyAmount, 10)
	if !ok {
		return nil, fmt.Errorf("order %q buy amount %q", o.UID, o.BuyAmount)
	}

	return &domain.Order{
		UID:        domain.OrderUID(o.UID),
		Owner:      owner,
		SellToken:  sellToken,
		BuyToken:   buyToken,
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
	}, nil
}
