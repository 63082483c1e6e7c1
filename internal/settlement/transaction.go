// internal/settlement/transaction.go
package settlement

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/matijamicunovic629/cowprotocol/internal/domain"
)

// Builder converts a winning solution into a signed settlement
// transaction against the settlement program.
type Builder struct {
	programID solana.PublicKey
	signer    solana.PrivateKey
	logger    *zap.Logger
}

// NewBuilder constructs a Builder signing with the given key.
func NewBuilder(programID solana.PublicKey, signer solana.PrivateKey, logger *zap.Logger) *Builder {
	return &Builder{
		programID: programID,
		signer:    signer,
		logger:    logger.Named("tx_builder"),
	}
}

// Build assembles and signs the settlement transaction: an optional
// compute-unit price instruction followed by the settle instruction
// carrying the solution's trades and clearing prices.
func (b *Builder) Build(ctx context.Context, client ChainClient, auctionID domain.AuctionID, solution *domain.Solution, computeUnitPrice uint64) (*solana.Transaction, error) {
	payer := b.signer.PublicKey()
	if !solution.SubmissionAddress.Equals(payer) {
		b.logger.Warn("Submission address differs from configured signer",
			zap.String("submission_address", solution.SubmissionAddress.String()),
			zap.String("signer", payer.String()))
	}

	blockhash, err := client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	var instructions []solana.Instruction
	if computeUnitPrice > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(computeUnitPrice).Build())
	}

	data, err := encodeSettleData(auctionID, solution)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settlement: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
	}
	for _, token := range sortedPriceTokens(solution.ClearingPrices) {
		accounts = append(accounts, solana.NewAccountMeta(token, true, false))
	}

	instructions = append(instructions, solana.NewInstruction(b.programID, accounts, data))

	tx, err := solana.NewTransaction(instructions, blockhash.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &b.signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return tx, nil
}

// encodeSettleData serializes the solution deterministically: auction
// and solution ids, the traded amounts per order (sorted by uid) and
// the clearing prices per token (sorted by address).
func encodeSettleData(auctionID domain.AuctionID, solution *domain.Solution) ([]byte, error) {
	var buf bytes.Buffer

	write := func(v interface{}) error {
		return binary.Write(&buf, binary.LittleEndian, v)
	}

	if err := write(int64(auctionID)); err != nil {
		return nil, err
	}
	if err := write(solution.ID); err != nil {
		return nil, err
	}

	uids := make([]string, 0, len(solution.Orders))
	for uid := range solution.Orders {
		uids = append(uids, string(uid))
	}
	sort.Strings(uids)

	if err := write(uint32(len(uids))); err != nil {
		return nil, err
	}
	for _, uid := range uids {
		amounts := solution.Orders[domain.OrderUID(uid)]
		if err := writeBytes(&buf, []byte(uid)); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, amounts.Sell.Bytes()); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, amounts.Buy.Bytes()); err != nil {
			return nil, err
		}
	}

	tokens := sortedPriceTokens(solution.ClearingPrices)
	if err := write(uint32(len(tokens))); err != nil {
		return nil, err
	}
	for _, token := range tokens {
		if _, err := buf.Write(token.Bytes()); err != nil {
			return nil, err
		}
		if err := writeBytes(&buf, solution.ClearingPrices[token].BigInt().Bytes()); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func sortedPriceTokens(prices map[solana.PublicKey]domain.Price) []solana.PublicKey {
	tokens := make([]solana.PublicKey, 0, len(prices))
	for token := range prices {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return bytes.Compare(tokens[i].Bytes(), tokens[j].Bytes()) < 0
	})
	return tokens
}
