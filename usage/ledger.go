package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/subscription"
	"github.com/mkucukkoc/aiorealbackend/types"
	"github.com/mkucukkoc/aiorealbackend/wallet"
)

// Ledger implements the reserve/commit/rollback protocol for metered
// consumption. It is the only writer of quota_usages.
type Ledger struct {
	store    store.Store
	catalog  *plan.Catalog
	subs     *subscription.Manager
	wallets  *wallet.Manager
	validate *validator.Validate
	logger   *slog.Logger
}

// New returns a Ledger backed by s.
func New(s store.Store, catalog *plan.Catalog, subs *subscription.Manager, wallets *wallet.Manager, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, catalog: catalog, subs: subs, wallets: wallets, validate: validator.New(), logger: logger}
}

// reserveInput is the struct validator.Validate checks Reserve's arguments
// against before any store access.
type reserveInput struct {
	UserID    string `validate:"required"`
	RequestID string `validate:"required"`
	Action    string `validate:"required"`
}

func recordID(userID, requestID string) string {
	return userID + "_" + requestID
}

// Reserve debits amount (minimum 1) from userID's active wallet against
// requestID, a client-supplied idempotency key. Repeated calls with the
// same (userID, requestID) observe the same outcome: only the first call
// that finds no existing usage document mutates the wallet.
func (l *Ledger) Reserve(ctx context.Context, userID, requestID, action string, amount int64) (ReserveResult, error) {
	if err := l.validate.Struct(&reserveInput{UserID: userID, RequestID: requestID, Action: action}); err != nil {
		return ReserveResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if amount < 1 {
		amount = 1
	}

	sub, err := l.subs.Get(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return ReserveResult{Rejected: true}, nil
		}
		return ReserveResult{}, fmt.Errorf("usage: reserve: load subscription for %s: %w", userID, err)
	}
	if !sub.IsActive {
		return ReserveResult{Rejected: true}, nil
	}

	p, _ := l.catalog.GetByID(sub.PlanID)
	activeWallet, err := l.wallets.EnsureActive(ctx, sub.IsActive, wallet.OpenParams{
		UserID:         userID,
		SubscriptionID: userID,
		PlanID:         sub.PlanID,
		Cycle:          sub.Cycle,
		PeriodStart:    sub.CurrentPeriodStart,
		PeriodEnd:      sub.CurrentPeriodEnd,
		QuotaTotal:     p.Quota,
	})
	if err != nil {
		return ReserveResult{}, fmt.Errorf("usage: reserve: ensure active wallet for %s: %w", userID, err)
	}
	if activeWallet == nil {
		return ReserveResult{Rejected: true}, nil
	}

	docID := recordID(userID, requestID)
	var result ReserveResult

	err = l.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		var w wallet.Wallet
		if err := tx.Get(ctx, store.CollectionWallets, activeWallet.ID, &w); err != nil {
			if err == store.ErrNotFound {
				result = ReserveResult{Rejected: true}
				return nil
			}
			return err
		}
		if w.Status != wallet.StatusActive {
			result = ReserveResult{Rejected: true, Remaining: w.Remaining(), WalletID: w.ID}
			return nil
		}

		var existing Record
		err := tx.Get(ctx, store.CollectionUsages, docID, &existing)
		if err == nil {
			result = ReserveResult{
				Allowed:   existing.Status != StatusRolledBack,
				Rejected:  existing.Status == StatusRolledBack,
				Status:    existing.Status,
				Remaining: w.Remaining(),
				WalletID:  w.ID,
			}
			return nil
		}
		if err != store.ErrNotFound {
			return err
		}

		if w.QuotaUsed+amount > w.QuotaTotal {
			result = ReserveResult{Rejected: true, Remaining: w.Remaining(), WalletID: w.ID}
			return nil
		}

		w.QuotaUsed += amount
		now := time.Now().UTC()
		w.LastUsageAt = &now
		w.Touch()
		if err := tx.Set(ctx, store.CollectionWallets, w.ID, &w, store.SetOptions{Merge: true}); err != nil {
			return err
		}

		rec := Record{
			Entity:    types.NewEntity(),
			UserID:    userID,
			WalletID:  w.ID,
			RequestID: requestID,
			Action:    action,
			Amount:    amount,
			Status:    StatusReserved,
		}
		if err := tx.Set(ctx, store.CollectionUsages, docID, &rec, store.SetOptions{CreateOnly: true}); err != nil {
			return err
		}

		result = ReserveResult{Allowed: true, Status: StatusReserved, Remaining: w.Remaining(), WalletID: w.ID}
		return nil
	})
	if err != nil {
		return ReserveResult{}, fmt.Errorf("usage: reserve %s: %w", docID, err)
	}
	return result, nil
}

// Commit marks a reservation committed. Returns (nil, nil) if no such
// reservation exists. Idempotent: committed or rolled_back reservations
// are returned unchanged.
func (l *Ledger) Commit(ctx context.Context, userID, requestID string) (*Status, error) {
	docID := recordID(userID, requestID)
	var result *Status

	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		var rec Record
		if err := tx.Get(ctx, store.CollectionUsages, docID, &rec); err != nil {
			if err == store.ErrNotFound {
				return nil
			}
			return err
		}

		if rec.Status == StatusCommitted || rec.Status == StatusRolledBack {
			s := rec.Status
			result = &s
			return nil
		}

		rec.Status = StatusCommitted
		rec.Touch()
		if err := tx.Set(ctx, store.CollectionUsages, docID, &rec, store.SetOptions{Merge: true}); err != nil {
			return err
		}
		s := rec.Status
		result = &s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("usage: commit %s: %w", docID, err)
	}
	return result, nil
}

// Rollback reverses a reservation, refunding its amount back onto the
// wallet. Returns (nil, nil) if no such reservation exists. A reservation
// already committed is left unchanged and "committed" is returned — commit
// wins, since undoing an acknowledged debit would leak quota. An already
// rolled-back reservation is returned unchanged.
func (l *Ledger) Rollback(ctx context.Context, userID, requestID string) (*Status, error) {
	docID := recordID(userID, requestID)
	var result *Status

	err := l.store.RunTransaction(ctx, func(ctx context.Context, tx store.Transaction) error {
		var rec Record
		if err := tx.Get(ctx, store.CollectionUsages, docID, &rec); err != nil {
			if err == store.ErrNotFound {
				return nil
			}
			return err
		}

		if rec.Status == StatusCommitted || rec.Status == StatusRolledBack {
			s := rec.Status
			result = &s
			return nil
		}

		var w wallet.Wallet
		walletErr := tx.Get(ctx, store.CollectionWallets, rec.WalletID, &w)
		if walletErr != nil && walletErr != store.ErrNotFound {
			return walletErr
		}
		if walletErr == nil {
			w.QuotaUsed -= rec.Amount
			if w.QuotaUsed < 0 {
				w.QuotaUsed = 0
			}
			w.Touch()
			if err := tx.Set(ctx, store.CollectionWallets, w.ID, &w, store.SetOptions{Merge: true}); err != nil {
				return err
			}
		}

		rec.Status = StatusRolledBack
		rec.Touch()
		if err := tx.Set(ctx, store.CollectionUsages, docID, &rec, store.SetOptions{Merge: true}); err != nil {
			return err
		}
		s := rec.Status
		result = &s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("usage: rollback %s: %w", docID, err)
	}
	return result, nil
}
