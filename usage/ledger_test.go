package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/store"
	"github.com/mkucukkoc/aiorealbackend/store/memstore"
	"github.com/mkucukkoc/aiorealbackend/subscription"
	"github.com/mkucukkoc/aiorealbackend/usage"
	"github.com/mkucukkoc/aiorealbackend/wallet"
)

func testNow() time.Time       { return time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC) }
func testPeriodEnd() time.Time { return testNow().Add(30 * 24 * time.Hour) }

type harness struct {
	store   store.Store
	subs    *subscription.Manager
	wallets *wallet.Manager
	ledger  *usage.Ledger
}

func newHarness() harness {
	s := memstore.New()
	catalog := plan.Default()
	wallets := wallet.New(s, nil)
	subs := subscription.New(s, catalog, wallets, nil)
	ledger := usage.New(s, catalog, subs, wallets, nil)
	return harness{store: s, subs: subs, wallets: wallets, ledger: ledger}
}

func TestFreeUserReserveIsRejected(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := h.subs.SyncFromPlan(ctx, "u1", "free"); err != nil {
		t.Fatalf("SyncFromPlan: %v", err)
	}
	// Free plan has isActive=false per spec; reserve against it must reject.
	r, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Allowed {
		t.Fatalf("expected free (inactive) subscription reserve to reject, got %+v", r)
	}
}

func TestPremiumReserveSequenceExhaustsQuota(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := h.subs.SyncFromPlan(ctx, "u1", "com.app.aiorreal-monthly"); err != nil {
		t.Fatalf("SyncFromPlan: %v", err)
	}

	// Bring the wallet down to 1 remaining by patching quotaUsed directly,
	// exercising the quota=100 boundary at the last slot.
	w, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	w.QuotaUsed = w.QuotaTotal - 1
	// Directly patch the store to set up the boundary case described in spec:
	// quotaUsed = quotaTotal-1, amount=1 succeeds; a second reserve with a
	// different requestId rejects.
	if err := h.store.Set(ctx, store.CollectionWallets, w.ID, w, store.SetOptions{Merge: true}); err != nil {
		t.Fatalf("patch wallet: %v", err)
	}

	r1, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve r1: %v", err)
	}
	if !r1.Allowed || r1.Remaining != 0 {
		t.Fatalf("expected r1 allowed with remaining=0, got %+v", r1)
	}

	r2, err := h.ledger.Reserve(ctx, "u1", "r2", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve r2: %v", err)
	}
	if r2.Allowed {
		t.Fatalf("expected r2 to reject (quota exhausted), got %+v", r2)
	}
}

func TestIdempotentReplayReturnsUnchangedOutcome(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := h.subs.SyncFromPlan(ctx, "u1", "com.app.aiorreal-monthly"); err != nil {
		t.Fatalf("SyncFromPlan: %v", err)
	}

	first, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	if !first.Allowed {
		t.Fatalf("expected first reserve allowed, got %+v", first)
	}

	second, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("replay Reserve: %v", err)
	}
	if !second.Allowed || second.Remaining != first.Remaining {
		t.Errorf("expected replay to report the same outcome, got first=%+v second=%+v", first, second)
	}

	w, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if w.QuotaUsed != 1 {
		t.Errorf("expected wallet debited exactly once, got quotaUsed=%d", w.QuotaUsed)
	}
}

func TestRollbackAfterCommitIsIgnored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := h.subs.SyncFromPlan(ctx, "u1", "com.app.aiorreal-monthly"); err != nil {
		t.Fatalf("SyncFromPlan: %v", err)
	}

	if _, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	committed, err := h.ledger.Commit(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if committed == nil || *committed != usage.StatusCommitted {
		t.Fatalf("expected committed, got %v", committed)
	}

	before, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}

	rolledBack, err := h.ledger.Rollback(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if rolledBack == nil || *rolledBack != usage.StatusCommitted {
		t.Fatalf("expected Rollback to report committed (no-op), got %v", rolledBack)
	}

	after, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if after.QuotaUsed != before.QuotaUsed {
		t.Errorf("expected wallet unchanged after no-op rollback, before=%d after=%d", before.QuotaUsed, after.QuotaUsed)
	}
}

func TestReserveThenRollbackRestoresQuota(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if _, err := h.subs.SyncFromPlan(ctx, "u1", "com.app.aiorreal-monthly"); err != nil {
		t.Fatalf("SyncFromPlan: %v", err)
	}

	before, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	preUsed := before.QuotaUsed

	if _, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	status, err := h.ledger.Rollback(ctx, "u1", "r1")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if status == nil || *status != usage.StatusRolledBack {
		t.Fatalf("expected rolled_back, got %v", status)
	}

	after, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if after.QuotaUsed != preUsed {
		t.Errorf("expected quotaUsed restored to %d, got %d", preUsed, after.QuotaUsed)
	}
}

func TestCommitUnknownReservationReturnsNil(t *testing.T) {
	h := newHarness()
	status, err := h.ledger.Commit(context.Background(), "u1", "ghost")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if status != nil {
		t.Errorf("expected nil status for unknown reservation, got %v", status)
	}
}

func TestReserveRejectsEmptyRequestID(t *testing.T) {
	h := newHarness()
	_, err := h.ledger.Reserve(context.Background(), "u1", "", "ai_detect", 1)
	if !errors.Is(err, usage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReserveWithManuallyClosedWalletOpensReplacement(t *testing.T) {
	// A wallet closed out-of-band (e.g. by a webhook processor reacting to
	// a plan change) while the subscription remains active must not wedge
	// Reserve: EnsureActive opens a fresh wallet for the still-active
	// subscription and the reservation proceeds normally.
	h := newHarness()
	ctx := context.Background()
	if _, err := h.subs.SyncFromPlan(ctx, "u1", "com.app.aiorreal-monthly"); err != nil {
		t.Fatalf("SyncFromPlan: %v", err)
	}
	if err := h.wallets.CloseAllActive(ctx, "u1", wallet.ReasonPlanChange, false); err != nil {
		t.Fatalf("CloseAllActive: %v", err)
	}

	r, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !r.Allowed {
		t.Fatalf("expected reserve to succeed against a freshly opened wallet, got %+v", r)
	}
}

func TestReserveRejectsWhenSubscriptionHasNoActiveWallet(t *testing.T) {
	// Covers the case where the subscription itself is no longer active
	// (e.g. after a refund); Reserve must reject without consulting any
	// wallet at all.
	h := newHarness()
	ctx := context.Background()
	periodEnd := testPeriodEnd()
	if _, _, err := h.subs.ApplyEvent(ctx, subscription.BillingEvent{
		UserID: "u1", EventType: "INITIAL_PURCHASE", ProductID: "com.app.aiorreal-monthly",
		PeriodEnd: &periodEnd, ReceivedAt: testNow(),
	}); err != nil {
		t.Fatalf("initial purchase: %v", err)
	}
	if _, _, err := h.subs.ApplyEvent(ctx, subscription.BillingEvent{
		UserID: "u1", EventType: "REFUND", ReceivedAt: testNow(),
	}); err != nil {
		t.Fatalf("refund: %v", err)
	}

	r, err := h.ledger.Reserve(ctx, "u1", "r1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Allowed || !r.Rejected {
		t.Fatalf("expected reserve to reject for a refunded subscription, got %+v", r)
	}
}

