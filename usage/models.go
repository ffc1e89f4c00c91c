// Package usage implements the two-phase reserve/commit/rollback protocol
// for metered consumption against a wallet, under document-store
// transactions.
package usage

import (
	"github.com/mkucukkoc/aiorealbackend/types"
)

// Status is a usage record's lifecycle state. reserved is the only
// non-terminal state; committed and rolled_back are sinks.
type Status string

const (
	StatusReserved   Status = "reserved"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Record is the document stored at quota_usages/{userId}_{requestId}. The
// composite document id makes reservation idempotent by construction.
type Record struct {
	types.Entity
	UserID    string `json:"userId" firestore:"userId"`
	WalletID  string `json:"walletId" firestore:"walletId"`
	RequestID string `json:"requestId" firestore:"requestId"`
	Action    string `json:"action" firestore:"action"`
	Amount    int64  `json:"amount" firestore:"amount"`
	Status    Status `json:"status" firestore:"status"`
}

// ReserveResult is the outcome of a Reserve call.
type ReserveResult struct {
	Allowed   bool
	Status    Status
	Remaining int64
	WalletID  string
	// Rejected is true when Allowed is false but no error occurred — quota
	// exhaustion, a missing/inactive subscription, or a missing/inactive
	// wallet are normal outcomes, not errors.
	Rejected bool
}
