// Package plugin provides an extensible hook system for the quota core.
// Plugins observe lifecycle events — user, subscription, wallet, usage,
// and webhook state changes — without the core depending on what they do
// with them (metrics, audit trails, cache invalidation, notifications).
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, core interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// User hooks
// ──────────────────────────────────────────────────

// OnUserEnsured is called when a user record is created or touched.
type OnUserEnsured interface {
	Plugin
	OnUserEnsured(ctx context.Context, userID string, created bool) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionSynced is called after a plan-sync request writes a
// subscription document.
type OnSubscriptionSynced interface {
	Plugin
	OnSubscriptionSynced(ctx context.Context, userID, planID string) error
}

// OnSubscriptionEventApplied is called after a billing event transitions a
// subscription's status.
type OnSubscriptionEventApplied interface {
	Plugin
	OnSubscriptionEventApplied(ctx context.Context, userID, eventType, newStatus string) error
}

// ──────────────────────────────────────────────────
// Wallet lifecycle hooks
// ──────────────────────────────────────────────────

// OnWalletOpened is called when a new wallet is opened for a user.
type OnWalletOpened interface {
	Plugin
	OnWalletOpened(ctx context.Context, userID, walletID, planID string, quotaTotal int64) error
}

// OnWalletClosed is called when a wallet transitions to closed.
type OnWalletClosed interface {
	Plugin
	OnWalletClosed(ctx context.Context, userID, walletID, reason string) error
}

// ──────────────────────────────────────────────────
// Usage ledger hooks
// ──────────────────────────────────────────────────

// OnUsageReserved is called after a successful Reserve.
type OnUsageReserved interface {
	Plugin
	OnUsageReserved(ctx context.Context, userID, requestID string, amount, remaining int64) error
}

// OnUsageCommitted is called after a reservation is committed.
type OnUsageCommitted interface {
	Plugin
	OnUsageCommitted(ctx context.Context, userID, requestID string) error
}

// OnUsageRolledBack is called after a reservation is rolled back.
type OnUsageRolledBack interface {
	Plugin
	OnUsageRolledBack(ctx context.Context, userID, requestID string) error
}

// OnQuotaExceeded is called when Reserve rejects a request because the
// wallet has insufficient remaining quota.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, userID, requestID string, used, limit int64) error
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived is called for every inbound billing event, before
// dedup is resolved.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, eventType string, raw []byte) error
}

// OnWebhookDuplicate is called when a billing event is dropped as a
// replay of one already processed.
type OnWebhookDuplicate interface {
	Plugin
	OnWebhookDuplicate(ctx context.Context, eventID, eventType string) error
}

// OnWebhookProcessed is called after a billing event has driven its
// subscription and wallet side effects to completion.
type OnWebhookProcessed interface {
	Plugin
	OnWebhookProcessed(ctx context.Context, eventID, eventType string, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Cache hooks
// ──────────────────────────────────────────────────

// OnCacheInvalidated is called whenever a user's cached snapshot is
// invalidated by a mutating operation.
type OnCacheInvalidated interface {
	Plugin
	OnCacheInvalidated(ctx context.Context, userID string) error
}
