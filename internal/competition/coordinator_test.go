package competition

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
	"github.com/matijamicunovic629/cowprotocol/internal/metrics"
	"github.com/matijamicunovic629/cowprotocol/internal/settlement"
	"github.com/matijamicunovic629/cowprotocol/internal/solvers"
	"github.com/matijamicunovic629/cowprotocol/internal/storage"
)

// fakeSubmitter records Submit calls and returns a canned settlement.
type fakeSubmitter struct {
	mu       sync.Mutex
	calls    int
	lastID   domain.AuctionID
	response *settlement.Settlement
	err      error
}

func (f *fakeSubmitter) Submit(_ context.Context, auctionID domain.AuctionID, solver string, solution *domain.Solution) (*settlement.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastID = auctionID
	if f.response != nil {
		resp := *f.response
		resp.AuctionID = auctionID
		resp.Solver = solver
		resp.SolutionID = solution.ID
		return &resp, f.err
	}
	return nil, f.err
}

func includedSettlement() *settlement.Settlement {
	return &settlement.Settlement{
		State:      settlement.StateIncluded,
		Route:      "public",
		Attempts:   []settlement.Attempt{{Route: "public", State: settlement.StateIncluded}},
		FinishedAt: time.Now(),
	}
}

// scoringSolver serves a single one-solution response with the given score.
func scoringSolver(t *testing.T, name string, score string, tokenA, tokenB solana.PublicKey) *Client {
	t.Helper()
	submission := solana.NewWallet().PublicKey()
	body := `{"solutions":[
		{"solutionId":"1","score":"` + score + `","submissionAddress":"` + submission.String() + `",
		 "orders":{"order-1":{"sellAmount":"1000000","buyAmount":"2000000"}},
		 "clearingPrices":{"` + tokenA.String() + `":"1","` + tokenB.String() + `":"2"}}
	]}`
	server := httptest.NewServer(respondJSON(body))
	t.Cleanup(server.Close)
	return NewClient(solvers.Solver{Name: name, Endpoint: server.URL}, zaptest.NewLogger(t))
}

func failingSolver(t *testing.T, name string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	return NewClient(solvers.Solver{Name: name, Endpoint: server.URL}, zaptest.NewLogger(t))
}

func newCoordinator(t *testing.T, clients []*Client, submitter Submitter, store storage.Storage) *Coordinator {
	t.Helper()
	return NewCoordinator(
		clients,
		nil,
		submitter,
		store,
		metrics.NewCollector(),
		zaptest.NewLogger(t),
		5*time.Second,
	)
}

func TestRunRoundSelectsHighestScoreAndSettles(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)

	clients := []*Client{
		scoringSolver(t, "solver-x", "100", tokenA, tokenB),
		scoringSolver(t, "solver-y", "150", tokenA, tokenB),
	}
	submitter := &fakeSubmitter{response: includedSettlement()}
	store := storage.NewMemoryStorage()

	coordinator := newCoordinator(t, clients, submitter, store)
	outcome, err := coordinator.RunRound(context.Background(), auction)
	require.NoError(t, err)

	require.NotNil(t, outcome.Winner)
	assert.Equal(t, "solver-y", outcome.Winner.Solver)
	assert.True(t, outcome.Settled())
	assert.Equal(t, 1, submitter.calls)
	assert.Equal(t, auction.ID, submitter.lastID)

	round, err := store.GetRound(context.Background(), int64(auction.ID))
	require.NoError(t, err)
	assert.Equal(t, "settled", round.Outcome)
	assert.Equal(t, "solver-y", round.WinnerSolver)
	assert.Equal(t, "public", round.Route)

	records, err := store.ListSolutionRecords(context.Background(), int64(auction.ID))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRunRoundEmptyPoolEndsWithoutWinner(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)

	clients := []*Client{
		failingSolver(t, "solver-x"),
		failingSolver(t, "solver-y"),
	}
	submitter := &fakeSubmitter{response: includedSettlement()}
	store := storage.NewMemoryStorage()

	coordinator := newCoordinator(t, clients, submitter, store)
	outcome, err := coordinator.RunRound(context.Background(), auction)
	require.NoError(t, err, "an empty pool is an ordinary outcome")

	assert.Nil(t, outcome.Winner)
	assert.Len(t, outcome.SolverErrors, 2)
	assert.Equal(t, 0, submitter.calls, "nothing to settle without a winner")

	round, err := store.GetRound(context.Background(), int64(auction.ID))
	require.NoError(t, err)
	assert.Equal(t, "no_winner", round.Outcome)
}

func TestRunRoundIsolatesSolverFailures(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)

	clients := []*Client{
		failingSolver(t, "solver-x"),
		scoringSolver(t, "solver-y", "100", tokenA, tokenB),
	}
	submitter := &fakeSubmitter{response: includedSettlement()}

	coordinator := newCoordinator(t, clients, submitter, storage.NewMemoryStorage())
	outcome, err := coordinator.RunRound(context.Background(), auction)
	require.NoError(t, err)

	require.NotNil(t, outcome.Winner, "one solver's failure must not sink the round")
	assert.Equal(t, "solver-y", outcome.Winner.Solver)
	assert.Len(t, outcome.SolverErrors, 1)
}

func TestRunRoundRecordsSettlementFailure(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)

	clients := []*Client{scoringSolver(t, "solver-x", "100", tokenA, tokenB)}
	submitter := &fakeSubmitter{
		response: &settlement.Settlement{
			State:    settlement.StateExpired,
			Attempts: []settlement.Attempt{{Route: "public", State: settlement.StateDropped}},
		},
		err: settlement.ErrSubmissionExpired,
	}
	store := storage.NewMemoryStorage()

	coordinator := newCoordinator(t, clients, submitter, store)
	outcome, err := coordinator.RunRound(context.Background(), auction)
	require.NoError(t, err, "a failed settlement ends the round, it does not error it")

	require.NotNil(t, outcome.Winner)
	assert.False(t, outcome.Settled())

	round, err := store.GetRound(context.Background(), int64(auction.ID))
	require.NoError(t, err)
	assert.Equal(t, "settlement_failed", round.Outcome)
	assert.Equal(t, 1, round.Attempts)
}

func TestRunRoundLogsCarryCorrelationID(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	auction := testAuction(t, tokenA, tokenB)

	clients := []*Client{scoringSolver(t, "solver-x", "100", tokenA, tokenB)}
	core, logs := observer.New(zapcore.InfoLevel)
	coordinator := NewCoordinator(
		clients,
		nil,
		&fakeSubmitter{response: includedSettlement()},
		storage.NewMemoryStorage(),
		metrics.NewCollector(),
		zap.New(core),
		5*time.Second,
	)

	_, err := coordinator.RunRound(context.Background(), auction)
	require.NoError(t, err)

	var correlation string
	for _, entry := range logs.All() {
		if entry.Message != "Starting auction round" {
			continue
		}
		fields := entry.ContextMap()
		assert.EqualValues(t, auction.ID, fields["auction_id"])
		correlation, _ = fields["correlation_id"].(string)
	}
	require.NotEmpty(t, correlation, "round logs must carry a correlation id")
	_, err = uuid.Parse(correlation)
	assert.NoError(t, err)
}

func TestRunRoundAbortsOnMalformedAuction(t *testing.T) {
	submitter := &fakeSubmitter{}
	coordinator := newCoordinator(t, nil, submitter, storage.NewMemoryStorage())

	_, err := coordinator.RunRound(context.Background(), &domain.Auction{ID: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedAuction)
	assert.Equal(t, 0, submitter.calls)
}
