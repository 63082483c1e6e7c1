// internal/settlement/monitor.go
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Monitor observes a submitted transaction until it is included or can
// be considered dropped.
type Monitor struct {
	logger       *zap.Logger
	pollInterval time.Duration
	attemptWait  time.Duration
}

// NewMonitor constructs a Monitor. attemptWait bounds how long a single
// submission attempt is watched before it is treated as dropped.
func NewMonitor(logger *zap.Logger, attemptWait time.Duration) *Monitor {
	if attemptWait <= 0 {
		attemptWait = 30 * time.Second
	}
	return &Monitor{
		logger:       logger.Named("tx_monitor"),
		pollInterval: 500 * time.Millisecond,
		attemptWait:  attemptWait,
	}
}

// AwaitInclusion polls the chain until the transaction reaches a
// terminal per-attempt state: Included when confirmed, Dropped when the
// chain reports an execution error or the attempt window elapses. A
// cancelled context propagates as an error so the caller can mark the
// settlement expired.
func (m *Monitor) AwaitInclusion(ctx context.Context, client ChainClient, signature solana.Signature) (State, error) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	deadline := time.After(m.attemptWait)

	for {
		select {
		case <-ctx.Done():
			return StateDropped, ctx.Err()
		case <-deadline:
			m.logger.Info("Attempt window elapsed without inclusion",
				zap.String("signature", signature.String()))
			return StateDropped, nil
		case <-ticker.C:
			state, err := m.checkStatus(ctx, client, signature)
			if err != nil {
				m.logger.Warn("Inclusion check failed", zap.Error(err))
				continue
			}
			if state == StateIncluded || state == StateDropped {
				return state, nil
			}
		}
	}
}

// checkStatus classifies the current chain view of the transaction.
func (m *Monitor) checkStatus(ctx context.Context, client ChainClient, signature solana.Signature) (State, error) {
	response, err := client.GetSignatureStatuses(ctx, false, signature)
	if err != nil {
		return StateSubmitted, fmt.Errorf("failed to get signature status: %w", err)
	}

	if response == nil || len(response.Value) == 0 || response.Value[0] == nil {
		return StateSubmitted, nil
	}

	status := response.Value[0]
	if status.Err != nil {
		m.logger.Warn("Transaction failed on chain",
			zap.String("signature", signature.String()),
			zap.Any("chain_error", status.Err))
		return StateDropped, nil
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return StateIncluded, nil
	default:
		return StateSubmitted, nil
	}
}
