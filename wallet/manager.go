package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkucukkoc/aiorealbackend/id"
	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/types"
)

// Manager opens, closes, and period-rolls wallets, enforcing the
// "at most one active wallet per user" invariant.
type Manager struct {
	store  store.Store
	logger *slog.Logger
}

// New returns a Manager backed by s.
func New(s store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, logger: logger}
}

// GetActive returns the single wallet with status active for userID,
// ordered by periodEnd descending. Returns ErrNoActiveWallet if none
// exists. If more than one active wallet is found (an invariant
// violation a caller's write path should repair), the one with the
// latest periodEnd wins and the rest are logged as stale.
func (m *Manager) GetActive(ctx context.Context, userID string) (*Wallet, error) {
	var matches []Wallet
	q := store.Query{
		Collection: store.CollectionWallets,
		Filters: []store.Filter{
			{Field: "userId", Op: store.OpEqual, Value: userID},
			{Field: "status", Op: store.OpEqual, Value: string(StatusActive)},
		},
	}
	if err := m.store.Query(ctx, q, &matches); err != nil {
		return nil, fmt.Errorf("wallet: get active for %s: %w", userID, err)
	}
	if len(matches) == 0 {
		return nil, ErrNoActiveWallet
	}

	latest := &matches[0]
	for i := 1; i < len(matches); i++ {
		w := &matches[i]
		if walletEnd(w).After(*walletEnd(latest)) {
			latest = w
		}
	}
	if len(matches) > 1 {
		m.logger.Warn("wallet: multiple active wallets for user, invariant violated",
			"user_id", userID, "count", len(matches), "winner_wallet_id", latest.ID)
	}
	return latest, nil
}

func walletEnd(w *Wallet) *time.Time {
	if w.PeriodEnd != nil {
		return w.PeriodEnd
	}
	zero := time.Time{}
	return &zero
}

// EnsureActive returns the wallet a Reserve call should draw from for a
// user whose subscription reports isActive. It returns (nil, nil) if the
// subscription is not active.
//
// If an active wallet already exists and its effective end (its own
// periodEnd, falling back to params.PeriodEnd) is strictly in the future,
// that wallet is returned unchanged. If params carries no period at all,
// the existing wallet (possibly none) is returned as-is and a warning is
// logged: callers must tolerate a stale or absent wallet in that case.
// Otherwise, existing wallets are closed with reason "period_reset" and a
// new wallet is opened.
func (m *Manager) EnsureActive(ctx context.Context, isActive bool, params OpenParams) (*Wallet, error) {
	if !isActive {
		return nil, nil
	}

	active, err := m.GetActive(ctx, params.UserID)
	hasActive := err == nil
	if err != nil && err != ErrNoActiveWallet {
		return nil, err
	}

	if hasActive {
		effectiveEnd := active.PeriodEnd
		if effectiveEnd == nil {
			effectiveEnd = params.PeriodEnd
		}
		if effectiveEnd != nil && effectiveEnd.After(time.Now().UTC()) {
			return active, nil
		}
	}

	if params.PeriodEnd == nil {
		if hasActive {
			m.logger.Warn("wallet: ensure active: subscription lacks a period, returning stale wallet",
				"user_id", params.UserID, "wallet_id", active.ID)
			return active, nil
		}
		m.logger.Warn("wallet: ensure active: subscription lacks a period and no wallet exists",
			"user_id", params.UserID)
		return nil, nil
	}

	if hasActive {
		if err := m.CloseAllActive(ctx, params.UserID, ReasonPeriodReset, false); err != nil {
			return nil, fmt.Errorf("wallet: ensure active: close stale wallets for %s: %w", params.UserID, err)
		}
	}
	return m.Open(ctx, params, false)
}

// Open writes a new active wallet for params.UserID. If closeExisting, any
// currently active wallets are closed first with reason "plan_change" and
// quotaUsed left untouched (the closed wallet's remaining is historical,
// not forfeited — the new wallet starts a fresh allowance).
func (m *Manager) Open(ctx context.Context, params OpenParams, closeExisting bool) (*Wallet, error) {
	if params.UserID == "" {
		return nil, ErrInvalidInput
	}

	if closeExisting {
		if err := m.CloseAllActive(ctx, params.UserID, ReasonPlanChange, false); err != nil {
			return nil, fmt.Errorf("wallet: open: close existing for %s: %w", params.UserID, err)
		}
	}

	w := &Wallet{
		Entity:         types.NewEntity(),
		ID:             id.NewWalletID().String(),
		UserID:         params.UserID,
		SubscriptionID: params.SubscriptionID,
		PlanID:         params.PlanID,
		Scope:          params.Cycle,
		PeriodStart:    params.PeriodStart,
		PeriodEnd:      params.PeriodEnd,
		QuotaTotal:     params.QuotaTotal,
		QuotaUsed:      0,
		Status:         StatusActive,
	}

	if err := m.store.Set(ctx, store.CollectionWallets, w.ID, w, store.SetOptions{}); err != nil {
		return nil, fmt.Errorf("wallet: open: create %s: %w", w.ID, err)
	}
	return w, nil
}

// CloseAllActive transitions every active wallet for userID to closed,
// recording reason and, when setRemainingToZero, forcibly setting
// quotaUsed = quotaTotal (the user loses any remaining allowance
// immediately, as on refund or billing failure). This is not atomic as a
// group: each document update is independently atomic, and the "one
// active wallet" invariant it restores tolerates the brief window where
// some closes have landed and others have not.
func (m *Manager) CloseAllActive(ctx context.Context, userID, reason string, setRemainingToZero bool) error {
	var matches []Wallet
	q := store.Query{
		Collection: store.CollectionWallets,
		Filters: []store.Filter{
			{Field: "userId", Op: store.OpEqual, Value: userID},
			{Field: "status", Op: store.OpEqual, Value: string(StatusActive)},
		},
	}
	if err := m.store.Query(ctx, q, &matches); err != nil {
		return fmt.Errorf("wallet: close all active: query for %s: %w", userID, err)
	}

	for i := range matches {
		w := matches[i]
		w.Status = StatusClosed
		w.ClosedReason = reason
		if setRemainingToZero {
			w.QuotaUsed = w.QuotaTotal
		}
		w.Touch()
		if err := m.store.Set(ctx, store.CollectionWallets, w.ID, &w, store.SetOptions{Merge: true}); err != nil {
			return fmt.Errorf("wallet: close all active: update %s: %w", w.ID, err)
		}
	}
	return nil
}
