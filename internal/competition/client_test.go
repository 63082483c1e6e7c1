package competition

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
	"github.com/matijamicunovic629/cowprotocol/internal/solvers"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(solvers.Solver{
		Name:     "test-solver",
		Endpoint: server.URL,
	}, zaptest.NewLogger(t))
	return client, server
}

func solveRequest(t *testing.T, tokenA, tokenB solana.PublicKey, budget time.Duration) *Request {
	t.Helper()
	auction := testAuction(t, tokenA, tokenB)
	req, err := NewRequest(time.Now(), auction, map[solana.PublicKey]bool{tokenA: true}, budget)
	require.NoError(t, err)
	return req
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestSolveIsolatesInvalidSolutions(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	submission := solana.NewWallet().PublicKey()

	body := `{"solutions":[
		{"solutionId":"1","score":"150","submissionAddress":"` + submission.String() + `",
		 "orders":{"order-1":{"sellAmount":"1000000","buyAmount":"2000000"}},
		 "clearingPrices":{"` + tokenA.String() + `":"1","` + tokenB.String() + `":"2"}},
		{"solutionId":"2","score":"-5","submissionAddress":"` + submission.String() + `",
		 "orders":{},"clearingPrices":{}}
	]}`

	client, _ := newTestClient(t, respondJSON(body))
	req := solveRequest(t, tokenA, tokenB, 5*time.Second)

	solutions, rejected, err := client.Solve(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, solutions, 1, "the valid solution must survive its sibling's rejection")
	assert.Equal(t, uint64(1), solutions[0].ID)

	require.Len(t, rejected, 1)
	assert.Equal(t, uint64(2), rejected[0].SolutionID)
	assert.Equal(t, domain.SolutionErrorInvalidScore, rejected[0].Kind)
}

func TestSolveRejectsMissingClearingPrice(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()
	submission := solana.NewWallet().PublicKey()

	// order-1 trades tokenA for tokenB but only tokenA is priced.
	body := `{"solutions":[
		{"solutionId":"1","score":"100","submissionAddress":"` + submission.String() + `",
		 "orders":{"order-1":{"sellAmount":"1","buyAmount":"2"}},
		 "clearingPrices":{"` + tokenA.String() + `":"1"}}
	]}`

	client, _ := newTestClient(t, respondJSON(body))
	req := solveRequest(t, tokenA, tokenB, 5*time.Second)

	solutions, rejected, err := client.Solve(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, solutions)
	require.Len(t, rejected, 1)
	assert.Equal(t, domain.SolutionErrorInvalidClearingPrice, rejected[0].Kind)
}

func TestSolveRejectsUnknownResponseFields(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()

	client, _ := newTestClient(t, respondJSON(`{"solutions":[],"vendorExtension":true}`))
	req := solveRequest(t, tokenA, tokenB, 5*time.Second)

	_, _, err := client.Solve(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	var solverErr *SolverError
	require.True(t, errors.As(err, &solverErr))
	assert.Equal(t, "test-solver", solverErr.Solver)
}

func TestSolveTimesOutAtRequestDeadline(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect
		// and cancel the request context; otherwise Close hangs forever.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	req := solveRequest(t, tokenA, tokenB, 50*time.Millisecond)

	start := time.Now()
	_, _, err := client.Solve(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSolverTimeout)
	assert.Less(t, time.Since(start), 2*time.Second, "the client must give up at the deadline, not retry")
}

func TestSolveCancellationIsNotATimeout(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	req := solveRequest(t, tokenA, tokenB, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	_, _, err := client.Solve(ctx, req)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSolverTimeout, "shutdown must not be booked against the solver")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveReportsUnexpectedStatus(t *testing.T) {
	tokenA := solana.NewWallet().PublicKey()
	tokenB := solana.NewWallet().PublicKey()

	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	req := solveRequest(t, tokenA, tokenB, 5*time.Second)

	_, _, err := client.Solve(context.Background(), req)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}
