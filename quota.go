// Package quota is the facade for the quota and subscription state engine:
// it composes the plan catalog and the user, subscription, wallet, usage,
// and webhook managers behind a single Core type.
package quota

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/plugin"
	"github.com/mkucukkoc/aiorealbackend/quotacache"
	"github.com/mkucukkoc/aiorealbackend/quser"
	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/subscription"
	"github.com/mkucukkoc/aiorealbackend/usage"
	"github.com/mkucukkoc/aiorealbackend/wallet"
	"github.com/mkucukkoc/aiorealbackend/webhook"
)

// Core is the quota and subscription state engine's entry point. Construct
// one with New and share it across request handlers; it holds no
// connection state beyond what the injected store.Store and, optionally,
// quotacache.Cache already manage.
type Core struct {
	store   store.Store
	catalog *plan.Catalog

	users   *quser.Manager
	subs    *subscription.Manager
	wallets *wallet.Manager
	ledger  *usage.Ledger
	hooks   *webhook.Processor

	cache    *quotacache.Cache
	registry *plugin.Registry
	logger   *slog.Logger
}

// Option configures a Core at construction time.
type Option func(*Core)

// WithLogger sets the structured logger propagated to every subpackage
// manager. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) { c.logger = logger }
}

// WithPlanCatalog overrides the embedded default plan catalog.
func WithPlanCatalog(catalog *plan.Catalog) Option {
	return func(c *Core) { c.catalog = catalog }
}

// WithCache enables the optional read-through snapshot cache. Without
// this option, GetSnapshot always reads through to the store.
func WithCache(cache *quotacache.Cache) Option {
	return func(c *Core) { c.cache = cache }
}

// WithPlugins registers a plugin.Registry whose hooks fire around every
// mutating operation. Without this option, Core builds an empty registry
// and hook emission is a no-op.
func WithPlugins(registry *plugin.Registry) Option {
	return func(c *Core) { c.registry = registry }
}

// New constructs a Core over s, wiring the user, subscription, wallet,
// usage, and webhook managers together.
func New(s store.Store, opts ...Option) *Core {
	c := &Core{
		store:    s,
		catalog:  plan.Default(),
		registry: plugin.NewRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.users = quser.New(s, c.logger)
	c.wallets = wallet.New(s, c.logger)
	c.subs = subscription.New(s, c.catalog, c.wallets, c.logger)
	c.ledger = usage.New(s, c.catalog, c.subs, c.wallets, c.logger)
	c.hooks = webhook.New(s, c.catalog, c.subs, c.wallets, c.logger)
	return c
}

// Snapshot is a point-in-time view of a user's subscription and wallet
// state, the shape returned by GetSnapshot and cached by quotacache.
type Snapshot struct {
	PlanID         string
	PlanKey        string
	Cycle          plan.Cycle
	IsActive       bool
	WillRenew      bool
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	QuotaTotal     int64
	QuotaUsed      int64
	QuotaRemaining int64
	WalletID       string
}

// EnsureUser creates the user's identity record if absent, updating email
// if supplied and changed. Safe to call on every authenticated request.
func (c *Core) EnsureUser(ctx context.Context, userID string, email *string) (*quser.User, error) {
	existed := true
	if _, err := c.users.Get(ctx, userID); err == store.ErrNotFound {
		existed = false
	}

	u, err := c.users.Ensure(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	c.registry.EmitUserEnsured(ctx, userID, !existed)
	return u, nil
}

// EnsureQuota materializes a user's subscription and wallet from a
// provider entitlement and returns the resulting snapshot. entitlementID,
// if non-empty, is resolved against the plan catalog exactly as a
// webhook's productId would be; premium signals a caller-observed
// entitlement when the caller cannot report a specific product id (e.g. a
// platform entitlement flag with no product detail), in which case it
// falls back to the monthly premium plan. Returns (nil, nil) if the user
// has no subscription and neither argument resolves to a plan.
func (c *Core) EnsureQuota(ctx context.Context, userID string, premium bool, entitlementID string) (*Snapshot, error) {
	candidate := entitlementID
	if candidate == "" && premium {
		candidate = plan.IDPremiumMonthly
	}

	if candidate != "" {
		sub, err := c.subs.SyncFromPlan(ctx, userID, candidate)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			c.invalidateCache(ctx, userID)
			c.registry.EmitSubscriptionSynced(ctx, userID, sub.PlanID)
		}
	}

	return c.GetSnapshot(ctx, userID)
}

// GetSnapshot returns userID's current subscription and wallet state, or
// (nil, nil) if the user has no subscription. When a cache is configured,
// a hit is served without touching the store.
func (c *Core) GetSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, userID); err == nil {
			return fromCached(cached), nil
		} else if err != quotacache.ErrMiss {
			c.logger.Warn("quota: cache read failed, falling through to store", "user_id", userID, "error", err)
		}
	}

	sub, err := c.subs.Get(ctx, userID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		PlanID:      sub.PlanID,
		PlanKey:     sub.PlanKey,
		Cycle:       sub.Cycle,
		IsActive:    sub.IsActive,
		WillRenew:   sub.WillRenew,
		PeriodStart: sub.CurrentPeriodStart,
		PeriodEnd:   sub.CurrentPeriodEnd,
	}

	if w, err := c.wallets.GetActive(ctx, userID); err == nil {
		snap.QuotaTotal = w.QuotaTotal
		snap.QuotaUsed = w.QuotaUsed
		snap.QuotaRemaining = w.Remaining()
		snap.WalletID = w.ID
	} else if err != wallet.ErrNoActiveWallet {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, userID, toCached(snap)); err != nil {
			c.logger.Warn("quota: cache write failed", "user_id", userID, "error", err)
		}
	}
	return snap, nil
}

// Reserve debits amount from userID's active wallet against requestID, a
// client-supplied idempotency key.
func (c *Core) Reserve(ctx context.Context, userID, requestID, action string, amount int64) (usage.ReserveResult, error) {
	result, err := c.ledger.Reserve(ctx, userID, requestID, action, amount)
	if err != nil {
		return usage.ReserveResult{}, err
	}
	c.invalidateCache(ctx, userID)
	switch {
	case result.Allowed:
		c.registry.EmitUsageReserved(ctx, userID, requestID, amount, result.Remaining)
	case result.Rejected:
		c.registry.EmitQuotaExceeded(ctx, userID, requestID, amount, result.Remaining)
	}
	return result, nil
}

// Commit marks a reservation committed. Returns (nil, nil) if no such
// reservation exists.
func (c *Core) Commit(ctx context.Context, userID, requestID string) (*usage.Status, error) {
	status, err := c.ledger.Commit(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}
	if status != nil && *status == usage.StatusCommitted {
		c.invalidateCache(ctx, userID)
		c.registry.EmitUsageCommitted(ctx, userID, requestID)
	}
	return status, nil
}

// Rollback reverses a reservation, refunding its amount to the wallet.
// Returns (nil, nil) if no such reservation exists.
func (c *Core) Rollback(ctx context.Context, userID, requestID string) (*usage.Status, error) {
	status, err := c.ledger.Rollback(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}
	if status != nil && *status == usage.StatusRolledBack {
		c.invalidateCache(ctx, userID)
		c.registry.EmitUsageRolledBack(ctx, userID, requestID)
	}
	return status, nil
}

// ProcessBillingEvent is the single inbound entry point for provider
// webhooks. It is idempotent: replaying an already-processed event
// produces no further subscription or wallet writes.
func (c *Core) ProcessBillingEvent(ctx context.Context, payload webhook.BillingEventPayload) (webhook.Result, error) {
	start := time.Now()
	eventType := strings.ToUpper(strings.TrimSpace(payload.EventType))
	c.registry.EmitWebhookReceived(ctx, eventType, payload.RawEvent)

	result, err := c.hooks.ProcessBillingEvent(ctx, payload)
	if err != nil {
		return webhook.Result{}, err
	}

	if result.Duplicate {
		c.registry.EmitWebhookDuplicate(ctx, result.EventID, eventType)
		return result, nil
	}

	if result.EventApplied {
		c.registry.EmitSubscriptionEventApplied(ctx, payload.UserID, eventType, result.SubscriptionStatus)
	}
	if result.WalletClosed {
		c.registry.EmitWalletClosed(ctx, payload.UserID, result.ClosedWalletID, result.WalletCloseReason)
	}
	if result.WalletOpened {
		c.registry.EmitWalletOpened(ctx, payload.UserID, result.OpenedWalletID, result.WalletPlanID, result.WalletQuotaTotal)
	}

	c.invalidateCache(ctx, payload.UserID)
	c.registry.EmitWebhookProcessed(ctx, result.EventID, eventType, time.Since(start))
	return result, nil
}

// Ping verifies connectivity to the underlying store.
func (c *Core) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close releases resources held by the underlying store.
func (c *Core) Close() error {
	return c.store.Close()
}

func (c *Core) invalidateCache(ctx context.Context, userID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, userID); err != nil {
		c.logger.Warn("quota: cache invalidate failed", "user_id", userID, "error", err)
		return
	}
	c.registry.EmitCacheInvalidated(ctx, userID)
}

func toCached(s *Snapshot) *quotacache.Snapshot {
	return &quotacache.Snapshot{
		PlanID:         s.PlanID,
		PlanKey:        s.PlanKey,
		Cycle:          string(s.Cycle),
		IsActive:       s.IsActive,
		WillRenew:      s.WillRenew,
		PeriodStart:    s.PeriodStart,
		PeriodEnd:      s.PeriodEnd,
		QuotaTotal:     s.QuotaTotal,
		QuotaUsed:      s.QuotaUsed,
		QuotaRemaining: s.QuotaRemaining,
		WalletID:       s.WalletID,
	}
}

func fromCached(s *quotacache.Snapshot) *Snapshot {
	return &Snapshot{
		PlanID:         s.PlanID,
		PlanKey:        s.PlanKey,
		Cycle:          plan.Cycle(s.Cycle),
		IsActive:       s.IsActive,
		WillRenew:      s.WillRenew,
		PeriodStart:    s.PeriodStart,
		PeriodEnd:      s.PeriodEnd,
		QuotaTotal:     s.QuotaTotal,
		QuotaUsed:      s.QuotaUsed,
		QuotaRemaining: s.QuotaRemaining,
		WalletID:       s.WalletID,
	}
}
