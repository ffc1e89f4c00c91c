package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/subscription"
	"github.com/mkucukkoc/aiorealbackend/types"
	"github.com/mkucukkoc/aiorealbackend/wallet"
)

// Processor deduplicates billing events and drives the subscription and
// wallet managers. It is the single writer of webhook_events.
type Processor struct {
	store    store.Store
	catalog  *plan.Catalog
	subs     *subscription.Manager
	wallets  *wallet.Manager
	validate *validator.Validate
	logger   *slog.Logger
}

// New returns a Processor backed by s.
func New(s store.Store, catalog *plan.Catalog, subs *subscription.Manager, wallets *wallet.Manager, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: s, catalog: catalog, subs: subs, wallets: wallets, validate: validator.New(), logger: logger}
}

// eventDocID derives the webhook_events document id: "rc_"+providerEventId
// if present, else a stable hash of the fields that identify the event.
func eventDocID(p BillingEventPayload, periodStart, periodEnd *time.Time) string {
	if p.EventID != "" {
		return "rc_" + p.EventID
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s", p.UserID, strings.ToUpper(p.EventType), formatTimePtr(periodStart), formatTimePtr(periodEnd))))
	return "rc_" + hex.EncodeToString(h[:])
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp normalizes an epoch number (seconds or milliseconds) or an
// ISO-8601 string into a UTC time. Anything else, or a parse failure,
// becomes nil — malformed timestamps must never abort processing.
func parseTimestamp(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		u := t.UTC()
		return &u
	case string:
		if t == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			u := parsed.UTC()
			return &u
		}
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return epochToTime(n)
		}
		return nil
	case float64:
		return epochToTime(int64(t))
	case int64:
		return epochToTime(t)
	case int:
		return epochToTime(int64(t))
	default:
		return nil
	}
}

// epochToTime treats a value above 10^12 as milliseconds, otherwise seconds.
func epochToTime(n int64) *time.Time {
	var t time.Time
	if n > 1_000_000_000_000 {
		t = time.UnixMilli(n)
	} else {
		t = time.Unix(n, 0)
	}
	u := t.UTC()
	return &u
}

// ProcessBillingEvent is the single inbound entry point for billing events.
// It is idempotent: replaying the same event (same eventId, or the same
// derived fields if eventId is absent) produces no further subscription or
// wallet writes.
func (p *Processor) ProcessBillingEvent(ctx context.Context, payload BillingEventPayload) (Result, error) {
	if err := p.validate.Struct(&payload); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	eventType := strings.ToUpper(strings.TrimSpace(payload.EventType))
	periodStart := parseTimestamp(payload.PeriodStart)
	periodEnd := parseTimestamp(payload.PeriodEnd)
	originalPurchaseDate := parseTimestamp(payload.OriginalPurchaseDate)
	docID := eventDocID(payload, periodStart, periodEnd)
	now := time.Now().UTC()

	duplicate, err := p.dedupe(ctx, docID, payload, eventType, now)
	if err != nil {
		return Result{}, fmt.Errorf("webhook: dedupe %s: %w", docID, err)
	}
	if duplicate {
		p.logger.Info("webhook: duplicate event dropped", "event_id", docID, "event_type", eventType)
		return Result{Duplicate: true, EventID: docID}, nil
	}

	sub, effects, err := p.subs.ApplyEvent(ctx, subscription.BillingEvent{
		UserID:               payload.UserID,
		EventType:            eventType,
		ProductID:            payload.ProductID,
		EntitlementIDs:       payload.EntitlementIDs,
		Platform:             payload.Platform,
		RCAppUserID:          payload.RCAppUserID,
		WillRenew:            payload.WillRenew,
		PeriodStart:          periodStart,
		PeriodEnd:            periodEnd,
		OriginalPurchaseDate: originalPurchaseDate,
		ReceivedAt:           now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("webhook: apply event %s: %w", docID, err)
	}

	result := Result{
		EventID:            docID,
		EventApplied:       true,
		SubscriptionStatus: string(sub.Status),
	}

	// Wallet close/open mutates an unbounded document set and cannot share
	// the subscription's single-document transaction; it runs afterward,
	// accepting eventual consistency between the two (see spec rationale).
	if effects.ShouldCloseWallet {
		closeReason := string(sub.Status)
		closing, err := p.wallets.GetActive(ctx, payload.UserID)
		if err != nil && err != wallet.ErrNoActiveWallet {
			return Result{}, fmt.Errorf("webhook: load active wallet for %s: %w", payload.UserID, err)
		}
		if err := p.wallets.CloseAllActive(ctx, payload.UserID, closeReason, true); err != nil {
			return Result{}, fmt.Errorf("webhook: close wallets for %s: %w", payload.UserID, err)
		}
		result.WalletClosed = true
		result.WalletCloseReason = closeReason
		if closing != nil {
			result.ClosedWalletID = closing.ID
		}
	}
	// SideEffects.ShouldOpenWallet is decided from the event alone; a wallet
	// is opened only when sub.PlanID resolves in the catalog, so an event
	// whose plan never resolved opens nothing.
	if effects.ShouldOpenWallet {
		resolved := false
		if p.catalog != nil {
			_, resolved = p.catalog.GetByID(sub.PlanID)
		}
		if !resolved {
			p.logger.Warn("webhook: plan unresolved, no wallet opened", "user_id", payload.UserID, "plan_id", sub.PlanID)
			effects.ShouldOpenWallet = false
		}
	}
	if effects.ShouldOpenWallet {
		quotaTotal := p.planQuota(sub.PlanID)
		w, err := p.wallets.Open(ctx, wallet.OpenParams{
			UserID:         sub.UserID,
			SubscriptionID: sub.UserID,
			PlanID:         sub.PlanID,
			Cycle:          sub.Cycle,
			PeriodStart:    sub.CurrentPeriodStart,
			PeriodEnd:      sub.CurrentPeriodEnd,
			QuotaTotal:     quotaTotal,
		}, effects.PlanChanged || effects.PeriodChanged)
		if err != nil {
			return Result{}, fmt.Errorf("webhook: open wallet for %s: %w", payload.UserID, err)
		}
		result.WalletOpened = true
		result.OpenedWalletID = w.ID
		result.WalletPlanID = sub.PlanID
		result.WalletQuotaTotal = quotaTotal
	}

	if err := p.markProcessed(ctx, docID); err != nil {
		return Result{}, fmt.Errorf("webhook: mark processed %s: %w", docID, err)
	}
	return result, nil
}

// dedupe performs the first-write-wins existence check against
// webhook_events inside a transaction, returning true if the event was
// already recorded.
func (p *Processor) dedupe(ctx context.Context, docID string, payload BillingEventPayload, eventType string, now time.Time) (bool, error) {
	var duplicate bool
	err := p.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		var existing EventRecord
		if err := tx.Get(ctx, store.CollectionWebhookEvents, docID, &existing); err == nil {
			duplicate = true
			return nil
		} else if err != store.ErrNotFound {
			return err
		}

		rec := EventRecord{
			Entity:          types.NewEntity(),
			ProviderEventID: payload.EventID,
			EventType:       eventType,
			RCAppUserID:     payload.RCAppUserID,
			ReceivedAt:      now,
			PayloadJSON:     string(payload.RawEvent),
			Status:          StatusReceived,
		}
		return tx.Set(ctx, store.CollectionWebhookEvents, docID, &rec, store.SetOptions{CreateOnly: true})
	})
	return duplicate, err
}

func (p *Processor) markProcessed(ctx context.Context, docID string) error {
	var rec EventRecord
	if err := p.store.Get(ctx, store.CollectionWebhookEvents, docID, &rec); err != nil {
		return err
	}
	now := time.Now().UTC()
	rec.ProcessedAt = &now
	rec.Status = StatusProcessed
	rec.Touch()
	return p.store.Set(ctx, store.CollectionWebhookEvents, docID, &rec, store.SetOptions{Merge: true})
}

// planQuota resolves planID against the processor's catalog, defaulting to
// 0 if it does not resolve (ProcessBillingEvent only calls it for a plan
// it has just resolved).
func (p *Processor) planQuota(planID string) int64 {
	if p.catalog == nil {
		return 0
	}
	if pl, ok := p.catalog.GetByID(planID); ok {
		return pl.Quota
	}
	return 0
}
