package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/types"
	"github.com/mkucukkoc/aiorealbackend/wallet"
)

// Manager materializes subscription state from plan-sync requests and
// billing events, and is the single writer of subscriptions_quota.
type Manager struct {
	store   store.Store
	catalog *plan.Catalog
	wallets *wallet.Manager
	logger  *slog.Logger
}

// New returns a Manager backed by s, resolving plans against catalog and
// delegating wallet opens to wallets.
func New(s store.Store, catalog *plan.Catalog, wallets *wallet.Manager, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, catalog: catalog, wallets: wallets, logger: logger}
}

// Get loads the subscription document for userID. Returns store.ErrNotFound
// if absent.
func (m *Manager) Get(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	if err := m.store.Get(ctx, store.CollectionSubscriptions, userID, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// SyncFromPlan resolves candidate against the plan catalog and writes the
// subscription document (merge semantics). isActive is true unless the
// resolved plan is the free plan. For non-free plans, it delegates to the
// wallet manager to open a wallet. Returns (nil, nil) if candidate does
// not resolve to any catalog plan.
func (m *Manager) SyncFromPlan(ctx context.Context, userID, candidate string) (*Subscription, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	p, ok := m.catalog.ResolvePlan(candidate)
	if !ok {
		m.logger.Warn("subscription: plan unresolved, no-op", "user_id", userID, "candidate", candidate)
		return nil, nil
	}

	now := time.Now().UTC()
	periodStart := now
	periodEnd := computePeriodEnd(now, p.Cycle)

	isActive := p.ID != plan.IDFree
	status := StatusExpired
	if isActive {
		status = StatusActive
	}

	sub := &Subscription{
		Entity:             types.NewEntity(),
		UserID:             userID,
		PlanID:             p.ID,
		PlanKey:            p.Key,
		Cycle:              p.Cycle,
		IsActive:           isActive,
		WillRenew:          isActive,
		Status:             status,
		CurrentPeriodStart: &periodStart,
		CurrentPeriodEnd:   &periodEnd,
	}

	if err := m.store.Set(ctx, store.CollectionSubscriptions, userID, sub, store.SetOptions{Merge: true}); err != nil {
		return nil, fmt.Errorf("subscription: sync from plan for %s: %w", userID, err)
	}

	if isActive {
		if _, err := m.wallets.Open(ctx, wallet.OpenParams{
			UserID:         userID,
			SubscriptionID: userID,
			PlanID:         sub.PlanID,
			Cycle:          sub.Cycle,
			PeriodStart:    sub.CurrentPeriodStart,
			PeriodEnd:      sub.CurrentPeriodEnd,
			QuotaTotal:     p.Quota,
		}, false); err != nil {
			return nil, fmt.Errorf("subscription: open wallet after plan sync for %s: %w", userID, err)
		}
	}

	return sub, nil
}

// computePeriodEnd returns the first day of next UTC month for monthly
// plans, or the same UTC month/day one year ahead for yearly plans. Both
// cases return midnight UTC, matching the monthly boundary example
// (2025-01-31T12:00:00Z syncs to 2025-02-01T00:00:00Z).
func computePeriodEnd(from time.Time, cycle plan.Cycle) time.Time {
	from = from.UTC()
	if cycle == plan.CycleYearly {
		return time.Date(from.Year()+1, from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	}
	firstOfThisMonth := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfThisMonth.AddDate(0, 1, 0)
}

// SideEffects records the wallet operations ApplyEvent determined were
// necessary, to be carried out by the caller outside the subscription
// transaction (see the webhook package).
type SideEffects struct {
	ShouldOpenWallet  bool
	ShouldCloseWallet bool
	PlanChanged       bool
	PeriodChanged     bool
}

// BillingEvent is the normalized billing-event input to ApplyEvent.
type BillingEvent struct {
	UserID               string
	EventType            string // already uppercased
	ProductID            string
	EntitlementIDs       []string
	Platform             string
	RCAppUserID          string
	WillRenew            *bool
	PeriodStart          *time.Time
	PeriodEnd            *time.Time
	OriginalPurchaseDate *time.Time
	ReceivedAt           time.Time
}

var (
	refundEvents       = map[string]bool{"REFUND": true, "CHARGEBACK": true}
	expirationEvents   = map[string]bool{"EXPIRATION": true, "EXPIRE": true}
	billingIssueEvents = map[string]bool{
		"BILLING_ISSUE": true, "PAUSE": true, "BILLING_ISSUE_DETECTED": true, "GRACE_PERIOD": true,
	}
	cancellationEvents = map[string]bool{"CANCELLATION": true, "CANCEL": true, "AUTO_RENEW_DISABLED": true}
	purchaseEvents     = map[string]bool{
		"INITIAL_PURCHASE": true, "RENEWAL": true, "PRODUCT_CHANGE": true,
		"UNCANCELLATION": true, "SUBSCRIPTION_PURCHASE": true,
	}
)

// classifyStatus maps an uppercased event type to a target status by
// first-match category priority: refund, expiration, billing issue,
// cancellation, purchase, default (existing status, else active).
func classifyStatus(eventType string, existing Status) Status {
	switch {
	case refundEvents[eventType]:
		return StatusRefunded
	case expirationEvents[eventType]:
		return StatusExpired
	case billingIssueEvents[eventType]:
		return StatusBillingIssue
	case cancellationEvents[eventType]:
		return StatusCancelled
	case purchaseEvents[eventType]:
		return StatusActive
	default:
		if existing != "" {
			return existing
		}
		return StatusActive
	}
}

// ApplyEvent runs the state-transition transaction on the subscription
// document for ev.UserID and reports which wallet side effects the caller
// must perform afterward. Wallet operations mutate an unbounded set of
// documents and cannot participate in this single-document transaction,
// so they are deliberately left to the caller.
func (m *Manager) ApplyEvent(ctx context.Context, ev BillingEvent) (*Subscription, SideEffects, error) {
	if ev.UserID == "" {
		return nil, SideEffects{}, ErrInvalidInput
	}

	var result Subscription
	var effects SideEffects

	err := m.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		var existing Subscription
		hadExisting := true
		if err := tx.Get(ctx, store.CollectionSubscriptions, ev.UserID, &existing); err != nil {
			if err != store.ErrNotFound {
				return err
			}
			hadExisting = false
		}

		resolvedPlanID, resolvedPlanKey, resolvedCycle := existing.PlanID, existing.PlanKey, existing.Cycle
		if p, ok := m.catalog.ResolvePlan(ev.ProductID); ok {
			resolvedPlanID, resolvedPlanKey, resolvedCycle = p.ID, p.Key, p.Cycle
		}

		status := classifyStatus(ev.EventType, existing.Status)
		isActive := status == StatusActive || status == StatusCancelled
		willRenew := status == StatusActive
		if ev.WillRenew != nil {
			willRenew = *ev.WillRenew
		}

		planChanged := resolvedPlanID != existing.PlanID
		periodChanged := ev.PeriodEnd != nil &&
			(existing.CurrentPeriodEnd == nil || !ev.PeriodEnd.Equal(*existing.CurrentPeriodEnd))
		eventIsPurchase := purchaseEvents[ev.EventType]

		effects = SideEffects{
			ShouldOpenWallet:  isActive && (eventIsPurchase || planChanged || periodChanged),
			ShouldCloseWallet: existing.IsActive && (status == StatusExpired || status == StatusRefunded || status == StatusBillingIssue),
			PlanChanged:       planChanged,
			PeriodChanged:     periodChanged,
		}

		sub := existing
		sub.UserID = ev.UserID
		if ev.Platform != "" {
			sub.Platform = ev.Platform
		}
		if ev.RCAppUserID != "" {
			sub.RCAppUserID = ev.RCAppUserID
		}
		if ev.ProductID != "" {
			sub.ProductID = ev.ProductID
		}
		sub.PlanID = resolvedPlanID
		sub.PlanKey = resolvedPlanKey
		sub.Cycle = resolvedCycle
		if len(ev.EntitlementIDs) > 0 {
			sub.EntitlementIDs = ev.EntitlementIDs
		}
		sub.IsActive = isActive
		sub.WillRenew = willRenew
		sub.Status = status
		if ev.PeriodStart != nil {
			sub.CurrentPeriodStart = ev.PeriodStart
		}
		if ev.PeriodEnd != nil {
			sub.CurrentPeriodEnd = ev.PeriodEnd
		}
		receivedAt := ev.ReceivedAt
		sub.LastEventAt = &receivedAt
		if ev.OriginalPurchaseDate != nil {
			sub.OriginalPurchaseDate = ev.OriginalPurchaseDate
		}
		if hadExisting {
			sub.Touch()
		} else {
			sub.Entity = types.NewEntity()
		}

		result = sub
		return tx.Set(ctx, store.CollectionSubscriptions, ev.UserID, &sub, store.SetOptions{})
	})
	if err != nil {
		return nil, SideEffects{}, fmt.Errorf("subscription: apply event for %s: %w", ev.UserID, err)
	}
	return &result, effects, nil
}
