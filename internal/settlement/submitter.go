// internal/settlement/submitter.go
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
	"github.com/matijamicunovic629/cowprotocol/internal/metrics"
)

// State is the lifecycle of a settlement attempt.
type State string

const (
	StatePending   State = "pending"
	StateSubmitted State = "submitted"
	StateIncluded  State = "included"
	StateDropped   State = "dropped"
	StateExpired   State = "expired"
)

var (
	// ErrSubmissionExpired means the submission deadline passed with no
	// inclusion. Fatal for the round, ordinary for the system.
	ErrSubmissionExpired = errors.New("settlement submission expired")

	// ErrAlreadySubmitted guards idempotence: a given auction id gets
	// at most one settlement, ever.
	ErrAlreadySubmitted = errors.New("settlement already submitted for this auction")

	// ErrSubmissionInFlight means another settlement has not reached a
	// terminal state yet. Rounds are strictly sequential.
	ErrSubmissionInFlight = errors.New("another settlement is in flight")
)

// Attempt records one submission try via one route.
type Attempt struct {
	Route            string
	ComputeUnitPrice uint64
	Signature        solana.Signature
	State            State
	Error            string
}

// Settlement is the winning solution plus its submission lifecycle. It
// is exclusively owned by the Submitter until a terminal state is
// recorded, then returned to the coordinator for auditing.
type Settlement struct {
	AuctionID  domain.AuctionID
	Solver     string
	SolutionID uint64
	State      State
	Route      string
	Signature  solana.Signature
	Attempts   []Attempt
	StartedAt  time.Time
	FinishedAt time.Time
}

// Config tunes the submission state machine.
type Config struct {
	// Deadline bounds the whole submission; on expiry the settlement
	// is marked Expired.
	Deadline time.Duration
	// MaxAttempts bounds the retry loop regardless of the deadline.
	MaxAttempts int
	// InitialComputeUnitPrice is the starting gas price in
	// micro-lamports per compute unit.
	InitialComputeUnitPrice uint64
	// EscalationFactor multiplies the gas price after each drop,
	// bounded by the route's cap.
	EscalationFactor decimal.Decimal
}

// DefaultConfig returns the submission defaults.
func DefaultConfig() Config {
	return Config{
		Deadline:                2 * time.Minute,
		MaxAttempts:             5,
		InitialComputeUnitPrice: 1_000,
		EscalationFactor:        decimal.NewFromFloat(1.5),
	}
}

// Submitter drives a winning solution to on-chain inclusion or a
// reported terminal failure across the configured mempool routes.
type Submitter struct {
	mempools []*Mempool
	builder  *Builder
	monitor  *Monitor
	config   Config
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu        sync.Mutex
	inFlight  bool
	submitted map[domain.AuctionID]bool
}

// NewSubmitter constructs a Submitter over the configured routes, in
// the order they should be tried.
func NewSubmitter(mempools []*Mempool, builder *Builder, monitor *Monitor, config Config, collector *metrics.Collector, logger *zap.Logger) (*Submitter, error) {
	if len(mempools) == 0 {
		return nil, fmt.Errorf("at least one mempool route is required")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.Deadline <= 0 {
		config.Deadline = DefaultConfig().Deadline
	}
	if config.EscalationFactor.LessThanOrEqual(decimal.NewFromInt(1)) {
		config.EscalationFactor = DefaultConfig().EscalationFactor
	}
	if config.InitialComputeUnitPrice == 0 {
		config.InitialComputeUnitPrice = DefaultConfig().InitialComputeUnitPrice
	}
	return &Submitter{
		mempools:  mempools,
		builder:   builder,
		monitor:   monitor,
		config:    config,
		metrics:   collector,
		logger:    logger.Named("submitter"),
		submitted: make(map[domain.AuctionID]bool),
	}, nil
}

// Submit runs the Pending → Submitted → {Included, Dropped, Expired}
// state machine. On Dropped the next configured route is tried with an
// escalated gas price, bounded by each route's cap, the attempt budget
// and the submission deadline. At most one settlement may be in flight,
// and an auction id is never submitted twice.
func (s *Submitter) Submit(ctx context.Context, auctionID domain.AuctionID, solver string, solution *domain.Solution) (*Settlement, error) {
	s.mu.Lock()
	if s.submitted[auctionID] {
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	s.inFlight = true
	s.submitted[auctionID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.config.Deadline)
	defer cancel()

	settlement := &Settlement{
		AuctionID:  auctionID,
		Solver:     solver,
		SolutionID: solution.ID,
		State:      StatePending,
		StartedAt:  time.Now(),
	}
	defer func() {
		settlement.FinishedAt = time.Now()
		s.metrics.RecordSubmission(string(settlement.State), settlement.FinishedAt.Sub(settlement.StartedAt))
	}()

	logger := s.logger.With(
		zap.Int64("auction_id", int64(auctionID)),
		zap.String("solver", solver),
		zap.Uint64("solution_id", solution.ID))

	price := s.config.InitialComputeUnitPrice
	for attempt := 0; attempt < s.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		route := s.mempools[attempt%len(s.mempools)]
		capped := price
		if capped > route.GasPriceCap() {
			capped = route.GasPriceCap()
		}

		logger.Info("Submitting settlement",
			zap.Int("attempt", attempt+1),
			zap.String("route", route.Name()),
			zap.Uint64("compute_unit_price", capped))

		state, sig, err := s.attempt(ctx, route, auctionID, solution, capped)
		settlement.Attempts = append(settlement.Attempts, Attempt{
			Route:            route.Name(),
			ComputeUnitPrice: capped,
			Signature:        sig,
			State:            state,
			Error:            errText(err),
		})
		s.metrics.RecordSubmissionAttempt(route.Name(), string(state))

		if state == StateIncluded {
			settlement.State = StateIncluded
			settlement.Route = route.Name()
			settlement.Signature = sig
			logger.Info("Settlement included",
				zap.String("route", route.Name()),
				zap.String("signature", sig.String()))
			return settlement, nil
		}

		if ctx.Err() != nil {
			break
		}

		logger.Warn("Submission attempt dropped",
			zap.String("route", route.Name()),
			zap.Error(err))
		price = escalate(price, s.config.EscalationFactor)
	}

	settlement.State = StateExpired
	logger.Error("Settlement expired without inclusion",
		zap.Int("attempts", len(settlement.Attempts)))
	return settlement, ErrSubmissionExpired
}

// attempt performs one build-submit-observe cycle via one route.
func (s *Submitter) attempt(ctx context.Context, route *Mempool, auctionID domain.AuctionID, solution *domain.Solution, computeUnitPrice uint64) (State, solana.Signature, error) {
	tx, err := s.builder.Build(ctx, route.Client(), auctionID, solution, computeUnitPrice)
	if err != nil {
		return StateDropped, solana.Signature{}, err
	}

	sig, err := route.Submit(ctx, tx)
	if err != nil {
		return StateDropped, solana.Signature{}, err
	}

	state, err := s.monitor.AwaitInclusion(ctx, route.Client(), sig)
	return state, sig, err
}

// escalate multiplies the gas price by the configured factor, rounding
// up so escalation always makes progress.
func escalate(price uint64, factor decimal.Decimal) uint64 {
	next := decimal.NewFromInt(int64(price)).Mul(factor).Ceil().IntPart()
	if next <= int64(price) {
		return price + 1
	}
	return uint64(next)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
