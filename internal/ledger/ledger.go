// Package ledger provides the mocked distributed-ledger integration: a
// Minter that records custody receipts, and a bounded buffer of recent
// receipt events.
//
// Minting is best-effort. Callers dispatch it fire-and-forget and swallow
// errors; a failed mint still produces a recent event with a simulated
// transaction hash.
package ledger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Receipt is the result of a mint call.
type Receipt struct {
	ReceiptID string `json:"receipt_id"`
	TxHash    string `json:"tx_hash"`
}

// Minter records a receipt on the (mocked) ledger.
type Minter interface {
	MintReceipt(ctx context.Context, sender string, record map[string]any) (Receipt, error)
}

// SimClient is a Minter that simulates ledger writes. It never fails and
// returns "sim:"-prefixed transaction hashes, matching the demo contract.
type SimClient struct{}

// NewSimClient creates a simulated ledger client.
func NewSimClient() *SimClient {
	return &SimClient{}
}

// MintReceipt pretends to execute a mint on the ledger contract.
func (c *SimClient) MintReceipt(_ context.Context, sender string, record map[string]any) (Receipt, error) {
	r := Receipt{
		ReceiptID: uuid.New().String(),
		TxHash:    SimTxHash(),
	}
	slog.Debug("receipt minted (simulated)",
		"receipt_id", r.ReceiptID,
		"tx_hash", r.TxHash,
		"sender", sender,
		"fields", len(record),
	)
	return r, nil
}

// SimTxHash returns a simulated transaction hash, used both by SimClient
// and as the fallback when a real mint fails or returns no hash.
func SimTxHash() string {
	return "sim:" + uuid.New().String()
}
