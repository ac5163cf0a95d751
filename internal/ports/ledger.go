package ports

import "context"

// Ledger is the external settlement layer. Calls are at-least-once under
// retries; de-duplication is the issuers' job via the audit log, not the
// ledger's.
type Ledger interface {
	// Notarize anchors a content hash and certificate id, returning the
	// transaction hash.
	Notarize(ctx context.Context, contentHash string, certificateID string) (string, error)
	// Transfer moves amount (base units) from the treasury to recipient.
	Transfer(ctx context.Context, recipient string, amount int64) (string, error)
	// TreasuryBalance returns the paying treasury's balance in base units.
	TreasuryBalance(ctx context.Context) (int64, error)
}
