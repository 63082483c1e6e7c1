// internal/domain/solution.go
package domain

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// Score is the objective, non-negative measure of a solution's quality.
type Score struct {
	value *big.Int
}

// NewScore validates and wraps a raw score value.
func NewScore(value *big.Int) (Score, error) {
	if value == nil || value.Sign() < 0 {
		return Score{}, ErrInvalidScore
	}
	return Score{value: value}, nil
}

// BigInt returns a copy of the underlying value.
func (s Score) BigInt() *big.Int {
	if s.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.value)
}

// Cmp compares two scores, returning -1, 0 or +1.
func (s Score) Cmp(other Score) int {
	return s.BigInt().Cmp(other.BigInt())
}

func (s Score) String() string {
	return s.BigInt().String()
}

// TradedAmounts are the effective amounts that moved for one order:
// what left the trader's wallet (including fees) and what they received.
type TradedAmounts struct {
	Sell *big.Int
	Buy  *big.Int
}

// Solution is one solver's proposed settlement for an auction.
// The ID is unique per solver per round, not globally.
type Solution struct {
	ID                uint64
	SubmissionAddress solana.PublicKey
	Score             Score
	Orders            map[OrderUID]TradedAmounts
	ClearingPrices    map[solana.PublicKey]Price
	Gas               uint64
}

// SolutionErrorKind classifies why a candidate solution was rejected.
type SolutionErrorKind string

const (
	SolutionErrorInvalidScore         SolutionErrorKind = "invalid_score"
	SolutionErrorInvalidClearingPrice SolutionErrorKind = "invalid_clearing_price"
	SolutionErrorMalformed            SolutionErrorKind = "malformed"
)

// SolutionError records the rejection of a single candidate solution.
// It is never fatal to the round; other solutions from the same solver
// remain eligible.
type SolutionError struct {
	Solver     string
	SolutionID uint64
	Kind       SolutionErrorKind
	Err        error
}

func (e *SolutionError) Error() string {
	return fmt.Sprintf("solution %d from %q rejected (%s): %v", e.SolutionID, e.Solver, e.Kind, e.Err)
}

func (e *SolutionError) Unwrap() error {
	return e.Err
}
