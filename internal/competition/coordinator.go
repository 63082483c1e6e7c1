// internal/competition/coordinator.go
package competition

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
	"github.com/matijamicunovic629/cowprotocol/internal/logger"
	"github.com/matijamicunovic629/cowprotocol/internal/metrics"
	"github.com/matijamicunovic629/cowprotocol/internal/settlement"
	"github.com/matijamicunovic629/cowprotocol/internal/storage"
	"github.com/matijamicunovic629/cowprotocol/internal/storage/models"
)

// Submitter drives a winning solution to a terminal settlement state.
type Submitter interface {
	Submit(ctx context.Context, auctionID domain.AuctionID, solver string, solution *domain.Solution) (*settlement.Settlement, error)
}

// RoundOutcome is the terminal result of one auction round.
type RoundOutcome struct {
	AuctionID      domain.AuctionID
	Winner         *Candidate
	Settlement     *settlement.Settlement
	SolutionErrors []*domain.SolutionError
	SolverErrors   []error
}

// Settled reports whether the round produced an included settlement.
func (o *RoundOutcome) Settled() bool {
	return o.Settlement != nil && o.Settlement.State == settlement.StateIncluded
}

// Coordinator orchestrates auction rounds end to end: it fans the
// competition request out to every registered solver, aggregates the
// validated solutions, selects the winner and hands it to the
// settlement submitter. The solver list and trusted-token set are
// read-only after construction.
type Coordinator struct {
	clients     []*Client
	trusted     map[solana.PublicKey]bool
	submitter   Submitter
	store       storage.Storage
	metrics     *metrics.Collector
	logger      *zap.Logger
	roundBudget time.Duration
	now         func() time.Time
}

// NewCoordinator constructs a Coordinator. The client order defines the
// registration order used for tie-breaking.
func NewCoordinator(
	clients []*Client,
	trusted map[solana.PublicKey]bool,
	submitter Submitter,
	store storage.Storage,
	collector *metrics.Collector,
	log *zap.Logger,
	roundBudget time.Duration,
) *Coordinator {
	return &Coordinator{
		clients:     clients,
		trusted:     trusted,
		submitter:   submitter,
		store:       store,
		metrics:     collector,
		logger:      log.Named("coordinator"),
		roundBudget: roundBudget,
		now:         time.Now,
	}
}

// slot is the single result cell one solver task writes to. No state is
// shared between solver tasks.
type slot struct {
	solutions []domain.Solution
	rejected  []*domain.SolutionError
	err       error
	elapsed   time.Duration
}

// RunRound executes one auction round. A malformed snapshot aborts the
// round before dispatch; every other per-solver failure is local. An
// empty candidate pool ends the round with no winner, which is an
// ordinary outcome, not an error.
//
// RunRound returns only after the settlement submitter reaches a
// terminal state, so callers invoking it sequentially never have two
// settlements racing on chain.
func (c *Coordinator) RunRound(ctx context.Context, auction *domain.Auction) (*RoundOutcome, error) {
	req, err := NewRequest(c.now(), auction, c.trusted, c.roundBudget)
	if err != nil {
		c.metrics.RecordRound("malformed_auction")
		return nil, fmt.Errorf("abort round %d: %w", auction.ID, err)
	}

	log := logger.WithRound(c.logger, int64(auction.ID))
	log.Info("Starting auction round",
		zap.Int("orders", len(req.Orders)),
		zap.Int("tokens", len(req.Tokens)),
		zap.Int("solvers", len(c.clients)),
		zap.Time("deadline", req.Deadline))

	slots := c.dispatch(ctx, req)

	outcome := &RoundOutcome{AuctionID: auction.ID}
	var pool []Candidate
	for i, result := range slots {
		solver := c.clients[i].Solver().Name
		switch {
		case result.err != nil:
			outcome.SolverErrors = append(outcome.SolverErrors, result.err)
			c.metrics.RecordSolverResponse(solver, "error", result.elapsed)
		default:
			c.metrics.RecordSolverResponse(solver, "ok", result.elapsed)
		}
		c.metrics.RecordSolutions(solver, len(result.solutions), len(result.rejected))
		outcome.SolutionErrors = append(outcome.SolutionErrors, result.rejected...)
		for _, solution := range result.solutions {
			pool = append(pool, Candidate{SolverIndex: i, Solver: solver, Solution: solution})
		}
	}

	winner, found := SelectWinner(pool)
	if !found {
		log.Info("No winner for this round",
			zap.Int("solver_errors", len(outcome.SolverErrors)),
			zap.Int("rejected_solutions", len(outcome.SolutionErrors)))
		c.metrics.RecordRound("no_winner")
		c.record(ctx, outcome, pool)
		return outcome, nil
	}
	outcome.Winner = &winner

	log.Info("Winner selected",
		zap.String("solver", winner.Solver),
		zap.Uint64("solution_id", winner.Solution.ID),
		zap.String("score", winner.Solution.Score.String()))

	settled, err := c.submitter.Submit(ctx, auction.ID, winner.Solver, &winner.Solution)
	outcome.Settlement = settled
	if err != nil {
		log.Error("Settlement failed", zap.Error(err))
		c.metrics.RecordRound("settlement_failed")
		c.record(ctx, outcome, pool)
		return outcome, nil
	}

	c.metrics.RecordRound("settled")
	c.record(ctx, outcome, pool)
	return outcome, nil
}

// dispatch fans the request out to every solver concurrently and waits
// for all of them to reach a terminal outcome. Each task writes only to
// its own slot; one solver's failure or timeout never disturbs another.
func (c *Coordinator) dispatch(ctx context.Context, req *Request) []slot {
	slots := make([]slot, len(c.clients))

	var g errgroup.Group
	for i, client := range c.clients {
		g.Go(func() error {
			start := time.Now()
			solutions, rejected, err := client.Solve(ctx, req)
			slots[i] = slot{
				solutions: solutions,
				rejected:  rejected,
				err:       err,
				elapsed:   time.Since(start),
			}
			return nil
		})
	}
	_ = g.Wait()

	return slots
}

// record writes the round's audit trail. Persistence failures are
// logged but never fail the round.
func (c *Coordinator) record(ctx context.Context, outcome *RoundOutcome, pool []Candidate) {
	if c.store == nil {
		return
	}

	round := &models.Round{
		AuctionID: int64(outcome.AuctionID),
		Outcome:   "no_winner",
	}
	if outcome.Winner != nil {
		round.WinnerSolver = outcome.Winner.Solver
		round.SolutionID = outcome.Winner.Solution.ID
		round.Score = outcome.Winner.Solution.Score.String()
		round.Outcome = "settlement_failed"
	}
	if outcome.Settlement != nil {
		round.Attempts = len(outcome.Settlement.Attempts)
		if outcome.Settled() {
			round.Outcome = "settled"
			round.Signature = outcome.Settlement.Signature.String()
			round.Route = outcome.Settlement.Route
			settledAt := outcome.Settlement.FinishedAt
			round.SettledAt = &settledAt
		}
	}
	if err := c.store.SaveRound(ctx, round); err != nil {
		c.logger.Error("Failed to persist round", zap.Error(err))
	}

	records := make([]*models.SolutionRecord, 0, len(pool)+len(outcome.SolutionErrors))
	for _, candidate := range pool {
		records = append(records, &models.SolutionRecord{
			AuctionID:  int64(outcome.AuctionID),
			Solver:     candidate.Solver,
			SolutionID: candidate.Solution.ID,
			Score:      candidate.Solution.Score.String(),
			Valid:      true,
		})
	}
	for _, rejected := range outcome.SolutionErrors {
		records = append(records, &models.SolutionRecord{
			AuctionID:  int64(outcome.AuctionID),
			Solver:     rejected.Solver,
			SolutionID: rejected.SolutionID,
			Valid:      false,
			Error:      rejected.Error(),
		})
	}
	if err := c.store.SaveSolutionRecords(ctx, records); err != nil {
		c.logger.Error("Failed to persist solution records", zap.Error(err))
	}
}
