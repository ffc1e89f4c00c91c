package plan_test

import (
	"testing"

	"github.com/mkucukkoc/aiorealbackend/plan"
)

func TestDefaultCatalogEntries(t *testing.T) {
	c := plan.Default()

	tests := []struct {
		id    string
		cycle plan.Cycle
		quota int64
	}{
		{plan.IDFree, plan.CycleMonthly, 2},
		{plan.IDPremiumMonthly, plan.CycleMonthly, 100},
		{plan.IDPremiumYearly, plan.CycleYearly, 1000},
	}

	for _, tt := range tests {
		p, ok := c.GetByID(tt.id)
		if !ok {
			t.Fatalf("GetByID(%q): not found", tt.id)
		}
		if p.Cycle != tt.cycle || p.Quota != tt.quota {
			t.Errorf("GetByID(%q) = %+v, want cycle=%s quota=%d", tt.id, p, tt.cycle, tt.quota)
		}
	}
}

func TestGetByIDCaseInsensitive(t *testing.T) {
	c := plan.Default()
	if _, ok := c.GetByID("FREE"); !ok {
		t.Fatal("expected case-insensitive match for FREE")
	}
}

func TestGetByIDMiss(t *testing.T) {
	c := plan.Default()
	if _, ok := c.GetByID("nonexistent"); ok {
		t.Fatal("expected miss for unknown plan id")
	}
}

func TestResolvePlanMonthlySubstring(t *testing.T) {
	c := plan.Default()
	p, ok := c.ResolvePlan("com.aiorreal.app.aiorreal-monthly")
	if !ok {
		t.Fatal("expected match")
	}
	if p.ID != plan.IDPremiumMonthly {
		t.Errorf("got %q, want %q", p.ID, plan.IDPremiumMonthly)
	}
}

func TestResolvePlanYearlyAndAnnualSubstrings(t *testing.T) {
	c := plan.Default()

	for _, candidate := range []string{"aiorreal-yearly", "com.app.aiorreal-annual"} {
		p, ok := c.ResolvePlan(candidate)
		if !ok {
			t.Fatalf("ResolvePlan(%q): expected match", candidate)
		}
		if p.ID != plan.IDPremiumYearly {
			t.Errorf("ResolvePlan(%q) = %q, want %q", candidate, p.ID, plan.IDPremiumYearly)
		}
	}
}

func TestResolvePlanExactID(t *testing.T) {
	c := plan.Default()
	p, ok := c.ResolvePlan("  Free  ")
	if !ok {
		t.Fatal("expected match on trimmed/lowercased exact id")
	}
	if p.ID != plan.IDFree {
		t.Errorf("got %q, want %q", p.ID, plan.IDFree)
	}
}

func TestResolvePlanProductIDSubstring(t *testing.T) {
	c, err := plan.Load(`[{"id":"custom","key":"custom","cycle":"monthly","quota":50,"productIds":["store.custom.sku"]}]`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p, ok := c.ResolvePlan("ios.store.custom.sku.v2")
	if !ok {
		t.Fatal("expected product id substring match")
	}
	if p.ID != "custom" {
		t.Errorf("got %q, want custom", p.ID)
	}
}

func TestResolvePlanNoMatch(t *testing.T) {
	c := plan.Default()
	if _, ok := c.ResolvePlan("totally-unrelated-sku"); ok {
		t.Fatal("expected no match")
	}
}

func TestLoadArrayOverride(t *testing.T) {
	c, err := plan.Load(`[{"id":"free","key":"free","cycle":"monthly","quota":5}]`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, ok := c.GetByID("free")
	if !ok || p.Quota != 5 {
		t.Errorf("got %+v, ok=%v, want quota=5", p, ok)
	}
}

func TestLoadObjectOverride(t *testing.T) {
	c, err := plan.Load(`{"plans":[{"id":"free","key":"free","cycle":"monthly","quota":7}]}`)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, ok := c.GetByID("free")
	if !ok || p.Quota != 7 {
		t.Errorf("got %+v, ok=%v, want quota=7", p, ok)
	}
}

func TestLoadEmptyReturnsError(t *testing.T) {
	if _, err := plan.Load(""); err == nil {
		t.Fatal("expected error for empty override")
	}
}

func TestLoadMalformedReturnsError(t *testing.T) {
	if _, err := plan.Load("not: [valid, yaml: structure"); err == nil {
		t.Fatal("expected error for malformed override")
	}
}
