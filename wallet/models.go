// Package wallet manages the time-bounded quota budgets ("wallets") that
// back a subscription period: opening, closing, and enforcing the
// "one active wallet per user" invariant.
package wallet

import (
	"time"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/types"
)

// Status is the wallet's lifecycle state. Once Closed, a wallet document
// is immutable except for audit fields.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Close reasons recorded on closedReason when a wallet transitions to
// StatusClosed.
const (
	ReasonPeriodReset = "period_reset"
	ReasonPlanChange  = "plan_change"
	ReasonRefunded    = "refunded"
	ReasonExpired     = "expired"
	ReasonBillingIssue = "billing_issue"
)

// Wallet is the document stored at quota_wallets/{id}, id store-assigned.
type Wallet struct {
	types.Entity
	ID             string     `json:"id" firestore:"id"`
	UserID         string     `json:"userId" firestore:"userId"`
	SubscriptionID string     `json:"subscriptionId,omitempty" firestore:"subscriptionId,omitempty"`
	PlanID         string     `json:"planId,omitempty" firestore:"planId,omitempty"`
	Scope          plan.Cycle `json:"scope,omitempty" firestore:"scope,omitempty"`
	PeriodStart    *time.Time `json:"periodStart,omitempty" firestore:"periodStart,omitempty"`
	PeriodEnd      *time.Time `json:"periodEnd,omitempty" firestore:"periodEnd,omitempty"`
	QuotaTotal     int64      `json:"quotaTotal" firestore:"quotaTotal"`
	QuotaUsed      int64      `json:"quotaUsed" firestore:"quotaUsed"`
	Status         Status     `json:"status" firestore:"status"`
	LastUsageAt    *time.Time `json:"lastUsageAt,omitempty" firestore:"lastUsageAt,omitempty"`
	ClosedReason   string     `json:"closedReason,omitempty" firestore:"closedReason,omitempty"`
}

// Remaining returns the wallet's unconsumed quota, never negative.
func (w *Wallet) Remaining() int64 {
	r := w.QuotaTotal - w.QuotaUsed
	if r < 0 {
		return 0
	}
	return r
}

// OpenParams carries the resolved plan and period data a new wallet needs.
// Deliberately independent of the subscription package's Subscription type
// so wallet has no dependency on subscription; callers (subscription
// manager, webhook processor) project the fields they need out of a
// subscription document.
type OpenParams struct {
	UserID         string
	SubscriptionID string
	PlanID         string
	Cycle          plan.Cycle
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	QuotaTotal     int64
}
