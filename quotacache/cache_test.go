package quotacache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCacheKeyIsNamespacedPerUser(t *testing.T) {
	if cacheKey("u1") == cacheKey("u2") {
		t.Error("expected distinct keys for distinct users")
	}
	if cacheKey("u1") != "quota:snapshot:u1" {
		t.Errorf("unexpected key shape: %q", cacheKey("u1"))
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	end := time.Now().UTC().Truncate(time.Second)
	want := Snapshot{
		PlanID: "premium_monthly", Cycle: "monthly", IsActive: true, WillRenew: true,
		PeriodEnd: &end, QuotaTotal: 100, QuotaUsed: 5, QuotaRemaining: 95, WalletID: "wlt_1",
	}

	raw, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.PlanID != want.PlanID || got.QuotaRemaining != want.QuotaRemaining || !got.PeriodEnd.Equal(*want.PeriodEnd) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}
