// internal/competition/client.go
package competition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
	"github.com/matijamicunovic629/cowprotocol/internal/solvers"
)

// Client talks to one registered solver. It owns no state beyond its
// pending request; failures are isolated to this solver.
type Client struct {
	solver solvers.Solver
	http   *http.Client
	logger *zap.Logger
}

// NewClient constructs a client for one solver engine.
func NewClient(solver solvers.Solver, logger *zap.Logger) *Client {
	return &Client{
		solver: solver,
		http:   &http.Client{},
		logger: logger.Named("solver_client").With(zap.String("solver", solver.Name)),
	}
}

// Solver returns the descriptor of the solver this client talks to.
func (c *Client) Solver() solvers.Solver {
	return c.solver
}

// Solve delivers the request and returns the validated solutions plus a
// rejection record per invalid solution. The call is bound by the
// request deadline: once it passes, the outcome is a timeout and no
// retry is attempted, since an answer past the deadline is worthless.
func (c *Client) Solve(ctx context.Context, req *Request) ([]domain.Solution, []*domain.SolutionError, error) {
	ctx, cancel := context.WithDeadline(ctx, req.Deadline)
	defer cancel()

	body, err := req.Encode()
	if err != nil {
		return nil, nil, &SolverError{Solver: c.solver.Name, Endpoint: c.solver.Endpoint, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.solver.Endpoint+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, nil, &SolverError{Solver: c.solver.Name, Endpoint: c.solver.Endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		// Only an elapsed deadline is a solver timeout. A cancelled
		// parent context (process shutdown) is not the solver's fault
		// and propagates as a plain transport failure.
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Solver timed out", zap.Time("deadline", req.Deadline))
			return nil, nil, &SolverError{Solver: c.solver.Name, Endpoint: c.solver.Endpoint, Err: ErrSolverTimeout}
		}
		return nil, nil, &SolverError{Solver: c.solver.Name, Endpoint: c.solver.Endpoint, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, nil, &SolverError{
			Solver:   c.solver.Name,
			Endpoint: c.solver.Endpoint,
			Err:      fmt.Errorf("%w: %d", ErrUnexpectedStatus, httpResp.StatusCode),
		}
	}

	resp, err := DecodeResponse(httpResp.Body)
	if err != nil {
		return nil, nil, &SolverError{
			Solver:   c.solver.Name,
			Endpoint: c.solver.Endpoint,
			Err:      fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		}
	}

	c.logger.Debug("Solver responded",
		zap.Int("solutions", len(resp.Solutions)),
		zap.Duration("elapsed", time.Since(start)))

	orderTokens := orderTokenIndex(req)

	var solutions []domain.Solution
	var rejected []*domain.SolutionError
	for i := range resp.Solutions {
		solution, solErr := c.intoDomain(&resp.Solutions[i], orderTokens)
		if solErr != nil {
			c.logger.Warn("Rejected solution",
				zap.Uint64("solution_id", solErr.SolutionID),
				zap.String("kind", string(solErr.Kind)),
				zap.Error(solErr.Err))
			rejected = append(rejected, solErr)
			continue
		}
		solutions = append(solutions, *solution)
	}

	return solutions, rejected, nil
}

// intoDomain converts and validates a single wire solution. A failure
// rejects only this solution, never its siblings from the same response.
func (c *Client) intoDomain(s *Solution, orderTokens map[string][2]solana.PublicKey) (*domain.Solution, *domain.SolutionError) {
	id, err := strconv.ParseUint(s.SolutionID, 10, 64)
	if err != nil {
		return nil, c.reject(0, domain.SolutionErrorMalformed, fmt.Errorf("solution id %q: %w", s.SolutionID, err))
	}

	rawScore, ok := new(big.Int).SetString(s.Score, 10)
	if !ok {
		return nil, c.reject(id, domain.SolutionErrorInvalidScore, fmt.Errorf("score %q is not an integer", s.Score))
	}
	score, err := domain.NewScore(rawScore)
	if err != nil {
		return nil, c.reject(id, domain.SolutionErrorInvalidScore, err)
	}

	submission, err := solana.PublicKeyFromBase58(s.SubmissionAddress)
	if err != nil {
		return nil, c.reject(id, domain.SolutionErrorMalformed, fmt.Errorf("submission address: %w", err))
	}

	prices := make(map[solana.PublicKey]domain.Price, len(s.ClearingPrices))
	for token, raw := range s.ClearingPrices {
		address, err := solana.PublicKeyFromBase58(token)
		if err != nil {
			return nil, c.reject(id, domain.SolutionErrorMalformed, fmt.Errorf("clearing price token %q: %w", token, err))
		}
		value, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, c.reject(id, domain.SolutionErrorInvalidClearingPrice, fmt.Errorf("clearing price %q is not an integer", raw))
		}
		price, err := domain.NewPrice(value)
		if err != nil {
			return nil, c.reject(id, domain.SolutionErrorInvalidClearingPrice, err)
		}
		prices[address] = price
	}

	orders := make(map[domain.OrderUID]domain.TradedAmounts, len(s.Orders))
	for uid, amounts := range s.Orders {
		tokens, known := orderTokens[uid]
		if !known {
			return nil, c.reject(id, domain.SolutionErrorMalformed, fmt.Errorf("traded order %q is not part of the auction", uid))
		}
		sell, ok := new(big.Int).SetString(amounts.SellAmount, 10)
		if !ok || sell.Sign() < 0 {
			return nil, c.reject(id, domain.SolutionErrorMalformed, fmt.Errorf("sell amount %q for order %q", amounts.SellAmount, uid))
		}
		buy, ok := new(big.Int).SetString(amounts.BuyAmount, 10)
		if !ok || buy.Sign() < 0 {
			return nil, c.reject(id, domain.SolutionErrorMalformed, fmt.Errorf("buy amount %q for order %q", amounts.BuyAmount, uid))
		}
		// Every token touched by a traded order needs a clearing price.
		for _, token := range tokens {
			if _, priced := prices[token]; !priced {
				return nil, c.reject(id, domain.SolutionErrorInvalidClearingPrice,
					fmt.Errorf("order %q references token %s without a clearing price", uid, token))
			}
		}
		orders[domain.OrderUID(uid)] = domain.TradedAmounts{Sell: sell, Buy: buy}
	}

	var gas uint64
	if s.Gas != nil {
		gas = *s.Gas
	}

	return &domain.Solution{
		ID:                id,
		SubmissionAddress: submission,
		Score:             score,
		Orders:            orders,
		ClearingPrices:    prices,
		Gas:               gas,
	}, nil
}

func (c *Client) reject(id uint64, kind domain.SolutionErrorKind, err error) *domain.SolutionError {
	return &domain.SolutionError{
		Solver:     c.solver.Name,
		SolutionID: id,
		Kind:       kind,
		Err:        err,
	}
}

// orderTokenIndex maps order uid to its sell/buy token pair.
func orderTokenIndex(req *Request) map[string][2]solana.PublicKey {
	index := make(map[string][2]solana.PublicKey, len(req.Orders))
	for _, order := range req.Orders {
		sell, err := solana.PublicKeyFromBase58(order.SellToken)
		if err != nil {
			continue
		}
		buy, err := solana.PublicKeyFromBase58(order.BuyToken)
		if err != nil {
			continue
		}
		index[order.UID] = [2]solana.PublicKey{sell, buy}
	}
	return index
}
