// Package audithook bridges quota-core lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import any
// specific audit store. Callers inject a RecorderFunc adapter that bridges
// to their own backend at wiring time.
package audithook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkucukkoc/aiorealbackend/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                     = (*Extension)(nil)
	_ plugin.OnUserEnsured              = (*Extension)(nil)
	_ plugin.OnSubscriptionSynced       = (*Extension)(nil)
	_ plugin.OnSubscriptionEventApplied = (*Extension)(nil)
	_ plugin.OnWalletOpened             = (*Extension)(nil)
	_ plugin.OnWalletClosed             = (*Extension)(nil)
	_ plugin.OnUsageReserved            = (*Extension)(nil)
	_ plugin.OnUsageCommitted           = (*Extension)(nil)
	_ plugin.OnUsageRolledBack          = (*Extension)(nil)
	_ plugin.OnQuotaExceeded            = (*Extension)(nil)
	_ plugin.OnWebhookReceived          = (*Extension)(nil)
	_ plugin.OnWebhookDuplicate         = (*Extension)(nil)
	_ plugin.OnWebhookProcessed         = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event, hashed on
// construction so the backend can detect tampering or reordering.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Hash       string         `json:"hash"`
}

// hash computes a SHA-256 digest over the event's identifying fields,
// matching the "action|resource|resourceId|outcome|unixSeconds|reason"
// shape used to fingerprint audit events for later integrity checks.
func hash(action, resource, resourceID, outcome string, createdAt time.Time, reason string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", action, resource, resourceID, outcome, createdAt.Unix(), reason)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges quota-core lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnUserEnsured implements plugin.OnUserEnsured.
func (e *Extension) OnUserEnsured(ctx context.Context, userID string, created bool) error {
	return e.record(ctx, ActionUserEnsured, SeverityInfo, OutcomeSuccess,
		ResourceUser, userID, CategorySubscription, nil,
		"created", created,
	)
}

// OnSubscriptionSynced implements plugin.OnSubscriptionSynced.
func (e *Extension) OnSubscriptionSynced(ctx context.Context, userID, planID string) error {
	return e.record(ctx, ActionSubscriptionSynced, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, userID, CategorySubscription, nil,
		"plan_id", planID,
	)
}

// OnSubscriptionEventApplied implements plugin.OnSubscriptionEventApplied.
func (e *Extension) OnSubscriptionEventApplied(ctx context.Context, userID, eventType, newStatus string) error {
	return e.record(ctx, ActionSubscriptionEventApplied, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, userID, CategorySubscription, nil,
		"event_type", eventType,
		"status", newStatus,
	)
}

// OnWalletOpened implements plugin.OnWalletOpened.
func (e *Extension) OnWalletOpened(ctx context.Context, userID, walletID, planID string, quotaTotal int64) error {
	return e.record(ctx, ActionWalletOpened, SeverityInfo, OutcomeSuccess,
		ResourceWallet, walletID, CategorySubscription, nil,
		"user_id", userID,
		"plan_id", planID,
		"quota_total", quotaTotal,
	)
}

// OnWalletClosed implements plugin.OnWalletClosed.
func (e *Extension) OnWalletClosed(ctx context.Context, userID, walletID, reason string) error {
	severity := SeverityInfo
	if reason == "refunded" || reason == "billing_issue" {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionWalletClosed, severity, OutcomeSuccess,
		ResourceWallet, walletID, CategorySubscription, nil,
		"user_id", userID,
		"reason", reason,
	)
}

// OnUsageReserved implements plugin.OnUsageReserved.
func (e *Extension) OnUsageReserved(ctx context.Context, userID, requestID string, amount, remaining int64) error {
	return e.record(ctx, ActionUsageReserved, SeverityInfo, OutcomeSuccess,
		ResourceUsage, requestID, CategoryUsage, nil,
		"user_id", userID,
		"amount", amount,
		"remaining", remaining,
	)
}

// OnUsageCommitted implements plugin.OnUsageCommitted.
func (e *Extension) OnUsageCommitted(ctx context.Context, userID, requestID string) error {
	return e.record(ctx, ActionUsageCommitted, SeverityInfo, OutcomeSuccess,
		ResourceUsage, requestID, CategoryUsage, nil,
		"user_id", userID,
	)
}

// OnUsageRolledBack implements plugin.OnUsageRolledBack.
func (e *Extension) OnUsageRolledBack(ctx context.Context, userID, requestID string) error {
	return e.record(ctx, ActionUsageRolledBack, SeverityInfo, OutcomeSuccess,
		ResourceUsage, requestID, CategoryUsage, nil,
		"user_id", userID,
	)
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, userID, requestID string, used, limit int64) error {
	return e.record(ctx, ActionQuotaExceeded, SeverityWarning, OutcomeFailure,
		ResourceUsage, requestID, CategoryUsage, nil,
		"user_id", userID,
		"used", used,
		"limit", limit,
	)
}

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (e *Extension) OnWebhookReceived(ctx context.Context, eventType string, _ []byte) error {
	return e.record(ctx, ActionWebhookReceived, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, "", CategoryIntegration, nil,
		"event_type", eventType,
	)
}

// OnWebhookDuplicate implements plugin.OnWebhookDuplicate.
func (e *Extension) OnWebhookDuplicate(ctx context.Context, eventID, eventType string) error {
	return e.record(ctx, ActionWebhookDuplicate, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, eventID, CategoryIntegration, nil,
		"event_type", eventType,
	)
}

// OnWebhookProcessed implements plugin.OnWebhookProcessed.
func (e *Extension) OnWebhookProcessed(ctx context.Context, eventID, eventType string, elapsed time.Duration) error {
	return e.record(ctx, ActionWebhookProcessed, SeverityInfo, OutcomeSuccess,
		ResourceWebhook, eventID, CategoryIntegration, nil,
		"event_type", eventType,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	now := time.Now().UTC()
	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
		CreatedAt:  now,
		Hash:       hash(action, resource, resourceID, outcome, now, reason),
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
