// internal/settlement/mempool.go
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// ChainClient is the subset of the RPC client the settlement pipeline
// needs. *rpc.Client satisfies it; tests substitute fakes.
type ChainClient interface {
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// MempoolKind distinguishes the configured submission channels.
type MempoolKind string

const (
	// MempoolPublic broadcasts through an ordinary public RPC node.
	MempoolPublic MempoolKind = "public"
	// MempoolPrivate broadcasts through a private relay endpoint,
	// skipping preflight so the transaction is not simulated publicly.
	MempoolPrivate MempoolKind = "private"
)

// RouteConfig is the startup configuration of one mempool route.
type RouteConfig struct {
	Kind          string `mapstructure:"kind" yaml:"kind"`
	Endpoint      string `mapstructure:"endpoint" yaml:"endpoint"`
	GasPriceCap   uint64 `mapstructure:"gas_price_cap" yaml:"gas_price_cap"`
	SkipPreflight bool   `mapstructure:"skip_preflight" yaml:"skip_preflight"`
}

// Mempool is one configured submission route with its own gas-price
// ceiling. Routes are read-only after startup.
type Mempool struct {
	name          string
	kind          MempoolKind
	client        ChainClient
	gasPriceCap   uint64
	skipPreflight bool
	logger        *zap.Logger
}

// NewMempool wraps a chain client as a submission route.
func NewMempool(cfg RouteConfig, client ChainClient, logger *zap.Logger) (*Mempool, error) {
	kind := MempoolKind(cfg.Kind)
	switch kind {
	case MempoolPublic, MempoolPrivate:
	default:
		return nil, fmt.Errorf("unsupported mempool kind %q", cfg.Kind)
	}
	if cfg.GasPriceCap == 0 {
		return nil, fmt.Errorf("mempool %q: gas price cap must be positive", cfg.Kind)
	}
	return &Mempool{
		name:          string(kind),
		kind:          kind,
		client:        client,
		gasPriceCap:   cfg.GasPriceCap,
		skipPreflight: cfg.SkipPreflight || kind == MempoolPrivate,
		logger:        logger.Named("mempool").With(zap.String("route", string(kind))),
	}, nil
}

// Name returns the route name used in logs and metrics.
func (m *Mempool) Name() string {
	return m.name
}

// GasPriceCap returns the route's compute-unit price ceiling.
func (m *Mempool) GasPriceCap() uint64 {
	return m.gasPriceCap
}

// Client returns the chain client used to observe this route.
func (m *Mempool) Client() ChainClient {
	return m.client
}

// Submit broadcasts the transaction, retrying transient transport
// errors with exponential backoff. The context bounds the whole call.
func (m *Mempool) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	op := func() (solana.Signature, error) {
		sig, err := m.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       m.skipPreflight,
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			if ctx.Err() != nil {
				return solana.Signature{}, backoff.Permanent(ctx.Err())
			}
			m.logger.Warn("Retrying transaction send", zap.Error(err))
			return solana.Signature{}, err
		}
		return sig, nil
	}

	sig, err := backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(10*time.Second),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return solana.Signature{}, err
		}
		return solana.Signature{}, fmt.Errorf("send via %s mempool: %w", m.name, err)
	}
	return sig, nil
}
