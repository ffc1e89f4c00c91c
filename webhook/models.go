// Package webhook deduplicates and classifies inbound billing events,
// driving the subscription and wallet managers from a single normalized
// entry point.
package webhook

import (
	"time"

	"github.com/mkucukkoc/aiorealbackend/types"
)

// Status is a webhook event record's processing state.
type Status string

const (
	StatusReceived  Status = "received"
	StatusProcessed Status = "processed"
)

// EventRecord is the document stored at webhook_events/{eventDocId}. Its
// existence on arrival is the dedup signal: first-write-wins.
type EventRecord struct {
	types.Entity
	ProviderEventID string     `json:"providerEventId,omitempty" firestore:"providerEventId,omitempty"`
	EventType       string     `json:"eventType" firestore:"eventType"`
	RCAppUserID     string     `json:"rcAppUserId,omitempty" firestore:"rcAppUserId,omitempty"`
	ReceivedAt      time.Time  `json:"receivedAt" firestore:"receivedAt"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty" firestore:"processedAt,omitempty"`
	PayloadJSON     string     `json:"payloadJson,omitempty" firestore:"payloadJson,omitempty"`
	Status          Status     `json:"status" firestore:"status"`
}

// BillingEventPayload is the inbound shape from the API layer. Timestamps
// may arrive as epoch millis/seconds or ISO-8601 strings; ProcessBillingEvent
// normalizes them (via parseTimestamp), collapsing anything unparseable to nil.
type BillingEventPayload struct {
	UserID               string `validate:"required"`
	EventID              string
	EventType            string `validate:"required"`
	RCAppUserID          string
	ProductID            string
	EntitlementIDs       []string
	Platform             string
	WillRenew            *bool
	PeriodStart          any // epoch number, ISO-8601 string, or nil
	PeriodEnd            any
	OriginalPurchaseDate any
	RawEvent             []byte
}

// Result is the outcome of ProcessBillingEvent. Beyond Duplicate/EventID, it
// reports what ApplyEvent and its wallet side effects actually did, so a
// caller holding a plugin.Registry (the facade) can emit lifecycle hooks
// without re-deriving this state itself.
type Result struct {
	Duplicate bool
	EventID   string

	// EventApplied is false only when Duplicate is true.
	EventApplied       bool
	SubscriptionStatus string

	WalletOpened     bool
	OpenedWalletID   string
	WalletPlanID     string
	WalletQuotaTotal int64

	WalletClosed      bool
	ClosedWalletID    string
	WalletCloseReason string
}
