package quota_test

import (
	"context"
	"testing"

	quota "github.com/mkucukkoc/aiorealbackend"
	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/store/memstore"
	"github.com/mkucukkoc/aiorealbackend/webhook"
)

func newCore() *quota.Core {
	return quota.New(memstore.New())
}

func TestEnsureUserCreatesThenUpdatesEmail(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	u, err := c.EnsureUser(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.ID != "u1" || u.Email != nil {
		t.Fatalf("unexpected user: %+v", u)
	}

	email := "a@example.com"
	u2, err := c.EnsureUser(ctx, "u1", &email)
	if err != nil {
		t.Fatalf("EnsureUser (update): %v", err)
	}
	if u2.Email == nil || *u2.Email != email {
		t.Fatalf("expected email to be set, got %+v", u2)
	}
}

func TestEnsureQuotaOpensWalletForPaidPlan(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	snap, err := c.EnsureQuota(ctx, "u1", false, "aiorreal-monthly_ios")
	if err != nil {
		t.Fatalf("EnsureQuota: %v", err)
	}
	if snap == nil || snap.PlanID != plan.IDPremiumMonthly {
		t.Fatalf("expected premium_monthly, got %+v", snap)
	}
	if snap.WalletID == "" || snap.QuotaTotal != 100 || snap.QuotaRemaining != 100 {
		t.Fatalf("expected a fresh 100-quota wallet, got %+v", snap)
	}
}

func TestEnsureQuotaUnresolvedCandidateIsNoop(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	snap, err := c.EnsureQuota(ctx, "u1", false, "unknown_product")
	if err != nil {
		t.Fatalf("EnsureQuota: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected no snapshot for a user with no subscription and an unresolved candidate, got %+v", snap)
	}
}

func TestGetSnapshotReturnsNoneForUserWithoutSubscription(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	snap, err := c.GetSnapshot(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected no snapshot for a user with no subscription, got %+v", snap)
	}
}

func TestReserveCommitRollbackEndToEnd(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	if _, err := c.EnsureQuota(ctx, "u1", false, "aiorreal-monthly_ios"); err != nil {
		t.Fatalf("EnsureQuota: %v", err)
	}

	r, err := c.Reserve(ctx, "u1", "req-1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !r.Allowed {
		t.Fatalf("expected reserve to be allowed, got %+v", r)
	}

	snap, err := c.GetSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.QuotaUsed != 1 || snap.QuotaRemaining != 99 {
		t.Fatalf("expected 1 used / 99 remaining, got %+v", snap)
	}

	status, err := c.Commit(ctx, "u1", "req-1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if status == nil {
		t.Fatal("expected a commit status")
	}

	// Rolling back an already-committed reservation must leave it
	// unchanged (commit wins), so the wallet must not be refunded.
	if _, err := c.Rollback(ctx, "u1", "req-1"); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	snap, err = c.GetSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSnapshot (post-rollback-attempt): %v", err)
	}
	if snap.QuotaUsed != 1 {
		t.Fatalf("expected committed usage to survive a rollback attempt, got %+v", snap)
	}
}

func TestReserveRejectsWithoutSubscription(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	r, err := c.Reserve(ctx, "nobody", "req-1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Allowed || !r.Rejected {
		t.Fatalf("expected rejection for a user with no subscription, got %+v", r)
	}
}

func TestProcessBillingEventEndToEndOpensWalletAndReserveWorks(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	result, err := c.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID:    "u1",
		EventID:   "evt-1",
		EventType: "INITIAL_PURCHASE",
		ProductID: "aiorreal-yearly_ios",
		PeriodEnd: "2027-08-03T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("ProcessBillingEvent: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("expected first delivery to not be a duplicate")
	}

	snap, err := c.GetSnapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.PlanID != plan.IDPremiumYearly || snap.QuotaTotal != 1000 {
		t.Fatalf("expected premium_yearly with 1000 quota, got %+v", snap)
	}

	r, err := c.Reserve(ctx, "u1", "req-1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !r.Allowed {
		t.Fatalf("expected reserve to be allowed after purchase event, got %+v", r)
	}

	// Replaying the same event must be a no-op: no further wallet or
	// subscription writes, reported back as a duplicate.
	replay, err := c.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID:    "u1",
		EventID:   "evt-1",
		EventType: "INITIAL_PURCHASE",
		ProductID: "aiorreal-yearly_ios",
		PeriodEnd: "2027-08-03T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("ProcessBillingEvent (replay): %v", err)
	}
	if !replay.Duplicate {
		t.Fatalf("expected replay to be reported as duplicate")
	}
}

func TestProcessBillingEventRefundClosesWalletAndBlocksReserve(t *testing.T) {
	c := newCore()
	ctx := context.Background()

	if _, err := c.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID:    "u1",
		EventID:   "evt-1",
		EventType: "INITIAL_PURCHASE",
		ProductID: "aiorreal-monthly_ios",
		PeriodEnd: "2026-09-03T00:00:00Z",
	}); err != nil {
		t.Fatalf("ProcessBillingEvent (purchase): %v", err)
	}

	if _, err := c.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID:    "u1",
		EventID:   "evt-2",
		EventType: "REFUND",
	}); err != nil {
		t.Fatalf("ProcessBillingEvent (refund): %v", err)
	}

	r, err := c.Reserve(ctx, "u1", "req-1", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Allowed || !r.Rejected {
		t.Fatalf("expected reserve to reject after refund, got %+v", r)
	}
}
