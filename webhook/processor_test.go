package webhook_test

import (
	"context"
	"testing"

	"github.com/mkucukkoc/aiorealbackend/plan"
	"github.com/mkucukkoc/aiorealbackend/store/memstore"
	"github.com/mkucukkoc/aiorealbackend/subscription"
	"github.com/mkucukkoc/aiorealbackend/usage"
	"github.com/mkucukkoc/aiorealbackend/wallet"
	"github.com/mkucukkoc/aiorealbackend/webhook"
)

type harness struct {
	subs      *subscription.Manager
	wallets   *wallet.Manager
	ledger    *usage.Ledger
	processor *webhook.Processor
}

func newHarness() harness {
	s := memstore.New()
	catalog := plan.Default()
	wallets := wallet.New(s, nil)
	subs := subscription.New(s, catalog, wallets, nil)
	ledger := usage.New(s, catalog, subs, wallets, nil)
	processor := webhook.New(s, catalog, subs, wallets, nil)
	return harness{subs: subs, wallets: wallets, ledger: ledger, processor: processor}
}

func TestProcessBillingEventInitialPurchaseOpensWallet(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.processor.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID: "u1", EventID: "E1", EventType: "initial_purchase",
		ProductID: "com.app.aiorreal-monthly", PeriodEnd: "2026-09-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("ProcessBillingEvent: %v", err)
	}
	if res.Duplicate {
		t.Fatalf("expected non-duplicate, got %+v", res)
	}

	sub, err := h.subs.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("subs.Get: %v", err)
	}
	if sub.Status != subscription.StatusActive || !sub.IsActive {
		t.Errorf("expected active subscription, got %+v", sub)
	}

	w, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if w.QuotaTotal != 100 {
		t.Errorf("expected quotaTotal=100, got %d", w.QuotaTotal)
	}
}

func TestProcessBillingEventDuplicateIsNoop(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	payload := webhook.BillingEventPayload{
		UserID: "u1", EventID: "E1", EventType: "RENEWAL",
		ProductID: "com.app.aiorreal-monthly", PeriodEnd: "2026-09-01T00:00:00Z",
	}

	first, err := h.processor.ProcessBillingEvent(ctx, payload)
	if err != nil {
		t.Fatalf("first ProcessBillingEvent: %v", err)
	}
	if first.Duplicate {
		t.Fatalf("expected first call to be original, got %+v", first)
	}

	walletBefore, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}

	second, err := h.processor.ProcessBillingEvent(ctx, payload)
	if err != nil {
		t.Fatalf("replay ProcessBillingEvent: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected replay to be flagged duplicate, got %+v", second)
	}

	walletAfter, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if walletBefore.ID != walletAfter.ID {
		t.Errorf("expected no new wallet opened on replay, before=%s after=%s", walletBefore.ID, walletAfter.ID)
	}
}

func TestProcessBillingEventRefundClosesWalletAndBlocksReserve(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.processor.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID: "u1", EventID: "E1", EventType: "INITIAL_PURCHASE",
		ProductID: "com.app.aiorreal-monthly", PeriodEnd: "2026-09-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("initial purchase: %v", err)
	}

	if _, err := h.processor.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID: "u1", EventID: "E2", EventType: "REFUND",
	}); err != nil {
		t.Fatalf("refund: %v", err)
	}

	sub, err := h.subs.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("subs.Get: %v", err)
	}
	if sub.Status != subscription.StatusRefunded || sub.IsActive {
		t.Errorf("expected refunded/inactive subscription, got %+v", sub)
	}

	if _, err := h.wallets.GetActive(ctx, "u1"); err != wallet.ErrNoActiveWallet {
		t.Errorf("expected no active wallet after refund, got err=%v", err)
	}

	r, err := h.ledger.Reserve(ctx, "u1", "after-refund", "ai_detect", 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if r.Allowed {
		t.Errorf("expected reserve to reject after refund, got %+v", r)
	}
}

func TestProcessBillingEventPlanChangeMonthlyToYearly(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if _, err := h.processor.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID: "u1", EventID: "E1", EventType: "INITIAL_PURCHASE",
		ProductID: "com.app.aiorreal-monthly", PeriodEnd: "2026-09-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("initial purchase: %v", err)
	}
	monthlyWallet, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}

	if _, err := h.processor.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID: "u1", EventID: "E2", EventType: "PRODUCT_CHANGE",
		ProductID: "com.app.aiorreal-yearly", PeriodEnd: "2027-08-03T00:00:00Z",
	}); err != nil {
		t.Fatalf("plan change: %v", err)
	}

	sub, err := h.subs.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("subs.Get: %v", err)
	}
	if sub.PlanID != plan.IDPremiumYearly {
		t.Errorf("expected plan switched to yearly, got %q", sub.PlanID)
	}

	yearlyWallet, err := h.wallets.GetActive(ctx, "u1")
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if yearlyWallet.ID == monthlyWallet.ID {
		t.Error("expected a new wallet to be opened for the plan change")
	}
	if yearlyWallet.QuotaTotal != 1000 || yearlyWallet.QuotaUsed != 0 {
		t.Errorf("expected fresh yearly wallet with quotaTotal=1000, got %+v", yearlyWallet)
	}
}

func TestProcessBillingEventWithoutEventIDDerivesStableID(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	payload := webhook.BillingEventPayload{
		UserID: "u1", EventType: "INITIAL_PURCHASE",
		ProductID: "com.app.aiorreal-monthly", PeriodEnd: "2026-09-01T00:00:00Z",
	}

	first, err := h.processor.ProcessBillingEvent(ctx, payload)
	if err != nil {
		t.Fatalf("first ProcessBillingEvent: %v", err)
	}
	second, err := h.processor.ProcessBillingEvent(ctx, payload)
	if err != nil {
		t.Fatalf("replay ProcessBillingEvent: %v", err)
	}
	if first.EventID != second.EventID {
		t.Errorf("expected stable derived event id, got %q vs %q", first.EventID, second.EventID)
	}
	if !second.Duplicate {
		t.Error("expected replay with identical fields to be flagged duplicate")
	}
}

func TestProcessBillingEventUnresolvedProductStillMarkedProcessed(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.processor.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID: "u1", EventID: "E1", EventType: "INITIAL_PURCHASE",
		ProductID: "totally-unknown-sku", PeriodEnd: "2026-09-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("ProcessBillingEvent: %v", err)
	}
	if res.Duplicate {
		t.Fatalf("expected non-duplicate, got %+v", res)
	}

	replay, err := h.processor.ProcessBillingEvent(ctx, webhook.BillingEventPayload{
		UserID: "u1", EventID: "E1", EventType: "INITIAL_PURCHASE",
		ProductID: "totally-unknown-sku", PeriodEnd: "2026-09-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("replay ProcessBillingEvent: %v", err)
	}
	if !replay.Duplicate {
		t.Error("expected replay to be flagged duplicate even for an unresolved product")
	}
}
