package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/types"
)

// Anchorer submits a record fingerprint to an external anchoring backend and
// reports transaction state. Implementations must respect ctx deadlines.
type Anchorer interface {
	Anchor(ctx context.Context, recordID, dataHash string) (*types.AnchorReceipt, error)
	TransactionStatus(ctx context.Context, txHash string) (*types.TransactionStatus, error)
}

// simulatedBlockNumber is the fixed block height the simulated backend
// reports. This backend never talks to a real chain.
const simulatedBlockNumber uint64 = 12345678

// SimulatedAnchorer fabricates deterministic anchoring receipts without any
// chain interaction. The transaction hash is derived from the record id and
// data hash, so re-anchoring the same record yields the same reference.
type SimulatedAnchorer struct {
	chainID         int
	contractAddress string
	logger          *logger.Logger
}

// NewSimulatedAnchorer creates a simulated anchoring backend
func NewSimulatedAnchorer(chainID int, contractAddress string, log *logger.Logger) *SimulatedAnchorer {
	return &SimulatedAnchorer{
		chainID:         chainID,
		contractAddress: contractAddress,
		logger:          log,
	}
}

// Anchor fabricates a confirmed receipt for the given fingerprint
func (a *SimulatedAnchorer) Anchor(ctx context.Context, recordID, dataHash string) (*types.AnchorReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest := sha256.Sum256([]byte(recordID + ":" + dataHash))
	txHash := "0x" + hex.EncodeToString(digest[:])

	receipt := &types.AnchorReceipt{
		TransactionHash: txHash,
		BlockNumber:     simulatedBlockNumber,
		ChainID:         a.chainID,
		Timestamp:       time.Now().UTC(),
	}

	a.logger.AnchorTransaction(recordID, txHash, true, map[string]interface{}{
		"chain_id":         a.chainID,
		"contract_address": a.contractAddress,
	})
	return receipt, nil
}

// TransactionStatus reports a simulated transaction as confirmed
func (a *SimulatedAnchorer) TransactionStatus(ctx context.Context, txHash string) (*types.TransactionStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(txHash) != 66 || txHash[:2] != "0x" {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("malformed transaction hash: %s", txHash), nil)
	}

	return &types.TransactionStatus{
		TransactionHash: txHash,
		Status:          "confirmed",
		BlockNumber:     simulatedBlockNumber,
		Confirmations:   10,
		Timestamp:       time.Now().UTC(),
	}, nil
}
