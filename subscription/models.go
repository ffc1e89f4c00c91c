// Package subscription materializes subscription state from plan-sync
// requests and billing events.
package subscription

import (
	"time"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/types"
)

// Status is the subscription's lifecycle state.
type Status string

const (
	StatusActive       Status = "active"
	StatusCancelled    Status = "cancelled"
	StatusExpired      Status = "expired"
	StatusRefunded     Status = "refunded"
	StatusBillingIssue Status = "billing_issue"
)

// Subscription is the document stored at subscriptions_quota/{userId}.
// isActive = true iff status is active or cancelled: a cancelled
// subscription remains usable until its current period ends.
type Subscription struct {
	types.Entity
	UserID      string `json:"userId" firestore:"userId"`
	Platform    string `json:"platform,omitempty" firestore:"platform,omitempty"`
	RCAppUserID string `json:"rcAppUserId,omitempty" firestore:"rcAppUserId,omitempty"`
	ProductID   string `json:"productId,omitempty" firestore:"productId,omitempty"`

	PlanID string     `json:"planId" firestore:"planId"`
	PlanKey string    `json:"planKey" firestore:"planKey"`
	Cycle   plan.Cycle `json:"cycle" firestore:"cycle"`

	EntitlementIDs []string `json:"entitlementIds,omitempty" firestore:"entitlementIds,omitempty"`

	IsActive  bool   `json:"isActive" firestore:"isActive"`
	WillRenew bool   `json:"willRenew" firestore:"willRenew"`
	Status    Status `json:"status" firestore:"status"`

	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty" firestore:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd    *time.Time `json:"currentPeriodEnd,omitempty" firestore:"currentPeriodEnd,omitempty"`

	LastEventAt          *time.Time `json:"lastEventAt,omitempty" firestore:"lastEventAt,omitempty"`
	OriginalPurchaseDate *time.Time `json:"originalPurchaseDate,omitempty" firestore:"originalPurchaseDate,omitempty"`
}
