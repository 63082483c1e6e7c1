// internal/autopilot/runner.go
package autopilot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/matijamicunovic629/cowprotocol/internal/competition"
	"github.com/matijamicunovic629/cowprotocol/internal/config"
	"github.com/matijamicunovic629/cowprotocol/internal/logger"
	"github.com/matijamicunovic629/cowprotocol/internal/metrics"
	"github.com/matijamicunovic629/cowprotocol/internal/orderbook"
	"github.com/matijamicunovic629/cowprotocol/internal/settlement"
	"github.com/matijamicunovic629/cowprotocol/internal/solvers"
	"github.com/matijamicunovic629/cowprotocol/internal/storage"
	"github.com/matijamicunovic629/cowprotocol/internal/storage/postgres"
)

// pollInterval paces the loop when the orderbook has no new auction.
const pollInterval = time.Second

// Runner wires the components together and drives the round loop.
// Rounds are strictly sequential: the next snapshot is not fetched
// before the previous settlement reached a terminal state.
type Runner struct {
	logger      *zap.Logger
	coordinator *competition.Coordinator
	orderbook   *orderbook.Client
	lastAuction int64
}

// NewRunner constructs an uninitialized Runner.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger.Named("runner")}
}

// Initialize loads configuration and constructs the pipeline.
func (r *Runner) Initialize(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The bootstrap logger predates the config file; rebuild it once we
	// know whether debug logging was requested.
	if cfg.DebugLogging {
		logCfg := logger.DefaultConfig()
		logCfg.Development = true
		if cfg.LogFile != "" {
			logCfg.LogFile = cfg.LogFile
		}
		debugLog, err := logger.New(logCfg)
		if err != nil {
			return fmt.Errorf("debug logger: %w", err)
		}
		r.logger = debugLog.Logger.Named("runner")
	}

	registry := solvers.NewRegistry(r.logger)
	registered, err := registry.Load(cfg.SolversFile)
	if err != nil {
		return fmt.Errorf("load solvers: %w", err)
	}

	clients := make([]*competition.Client, 0, len(registered))
	for _, solver := range registered {
		clients = append(clients, competition.NewClient(solver, r.logger))
	}

	trusted := make(map[solana.PublicKey]bool, len(cfg.TrustedTokens))
	for _, raw := range cfg.TrustedTokens {
		token, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			return fmt.Errorf("trusted token %q: %w", raw, err)
		}
		trusted[token] = true
	}

	programID, err := solana.PublicKeyFromBase58(cfg.SettlementProgram)
	if err != nil {
		return fmt.Errorf("settlement program: %w", err)
	}
	signer, err := solana.PrivateKeyFromBase58(cfg.SignerKey)
	if err != nil {
		return fmt.Errorf("signer key: %w", err)
	}

	mempools := make([]*settlement.Mempool, 0, len(cfg.Mempools))
	for _, route := range cfg.Mempools {
		mempool, err := settlement.NewMempool(route, rpc.New(route.Endpoint), r.logger)
		if err != nil {
			return fmt.Errorf("mempool %q: %w", route.Kind, err)
		}
		mempools = append(mempools, mempool)
	}

	collector := metrics.NewCollector()
	builder := settlement.NewBuilder(programID, signer, r.logger)
	monitor := settlement.NewMonitor(r.logger, 30*time.Second)
	submitter, err := settlement.NewSubmitter(mempools, builder, monitor, settlement.Config{
		Deadline:                cfg.SubmissionDeadline(),
		MaxAttempts:             cfg.MaxAttempts,
		InitialComputeUnitPrice: cfg.InitialComputeUnitPrice,
		EscalationFactor:        decimal.NewFromFloat(cfg.EscalationFactor),
	}, collector, r.logger)
	if err != nil {
		return fmt.Errorf("submitter: %w", err)
	}

	var store storage.Storage
	if cfg.PostgresURL != "" {
		store, err = postgres.NewStorage(cfg.PostgresURL, r.logger)
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	} else {
		r.logger.Warn("No postgres_url configured; audit records stay in memory")
		store = storage.NewMemoryStorage()
	}
	if err := store.RunMigrations(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	r.coordinator = competition.NewCoordinator(
		clients, trusted, submitter, store, collector, r.logger, cfg.RoundBudget())
	r.orderbook = orderbook.NewClient(cfg.OrderbookURL, r.logger)

	r.logger.Info("Autopilot initialized",
		zap.Int("solvers", len(clients)),
		zap.Int("mempools", len(mempools)),
		zap.Duration("round_budget", cfg.RoundBudget()))
	return nil
}

// Run executes auction rounds until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if r.coordinator == nil {
		return errors.New("runner not initialized")
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Shutting down round loop")
			return nil
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil {
				r.logger.Error("Round failed", zap.Error(err))
			}
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) error {
	auction, err := r.orderbook.CurrentAuction(ctx)
	if err != nil {
		return fmt.Errorf("fetch auction: %w", err)
	}
	if int64(auction.ID) <= r.lastAuction {
		return nil
	}

	outcome, err := r.coordinator.RunRound(ctx, auction)
	if err != nil {
		// Malformed snapshot: the round is aborted before dispatch and
		// must not poison the next one.
		r.lastAuction = int64(auction.ID)
		return err
	}

	r.lastAuction = int64(outcome.AuctionID)
	if outcome.Settled() {
		r.logger.Info("Round settled",
			zap.Int64("auction_id", int64(outcome.AuctionID)),
			zap.String("solver", outcome.Winner.Solver),
			zap.Uint64("solution_id", outcome.Winner.Solution.ID))
	}
	return nil
}
