package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is a process-wide, immutable table of plans, loaded once at
// startup. The zero value is not usable; construct with Default or Load.
type Catalog struct {
	plans []Plan
	byID  map[string]Plan
}

// Default returns the catalog's embedded default table.
func Default() *Catalog {
	return build(defaultCatalog())
}

func build(plans []Plan) *Catalog {
	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byID[normalize(p.ID)] = p
	}
	return &Catalog{plans: plans, byID: byID}
}

// overrideDoc is the object form of a catalog override: an object with a
// "plans" key. Load also accepts a bare array of plans.
type overrideDoc struct {
	Plans []Plan `json:"plans" yaml:"plans"`
}

// Load parses raw as a catalog override (YAML or JSON; JSON is valid YAML)
// and returns the resulting catalog. Empty input, malformed input, and an
// override with no plans are returned as errors; Load does not fall back to
// Default() itself, so a caller that must always start uses Default() when
// Load fails.
func Load(raw string) (*Catalog, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("plan: empty catalog override")
	}

	var plans []Plan
	if strings.HasPrefix(raw, "[") {
		if err := yaml.Unmarshal([]byte(raw), &plans); err != nil {
			return nil, fmt.Errorf("plan: parse array override: %w", err)
		}
	} else {
		var doc overrideDoc
		if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("plan: parse object override: %w", err)
		}
		plans = doc.Plans
	}

	if len(plans) == 0 {
		return nil, fmt.Errorf("plan: override contains no plans")
	}

	return build(plans), nil
}

// MarshalJSON renders the catalog's plans, useful for diagnostics.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.plans)
}

// GetByID performs an exact, case-insensitive lookup. The second return
// value is false on miss.
func (c *Catalog) GetByID(planID string) (Plan, bool) {
	p, ok := c.byID[normalize(planID)]
	return p, ok
}

// ResolvePlan matches a provider-reported candidate string against the
// catalog. Matching rules, tried in order:
//  1. candidate contains "aiorreal-monthly" -> premium_monthly, if present;
//     candidate contains "aiorreal-yearly" or "aiorreal-annual" ->
//     premium_yearly, if present.
//  2. exact planId match.
//  3. any registered productId is a substring of the candidate.
//
// Returns false if no rule matches. Substring matching absorbs the
// store-prefix variation providers report in their product identifiers.
func (c *Catalog) ResolvePlan(candidate string) (Plan, bool) {
	norm := normalize(candidate)
	if norm == "" {
		return Plan{}, false
	}

	if strings.Contains(norm, productMonthlySubstring) {
		if p, ok := c.byID[normalize(IDPremiumMonthly)]; ok {
			return p, true
		}
	}
	if strings.Contains(norm, productYearlySubstring) || strings.Contains(norm, productAnnualSubstring) {
		if p, ok := c.byID[normalize(IDPremiumYearly)]; ok {
			return p, true
		}
	}

	if p, ok := c.byID[norm]; ok {
		return p, true
	}

	for _, p := range c.plans {
		for _, pid := range p.ProductIDs {
			if pid == "" {
				continue
			}
			if strings.Contains(norm, normalize(pid)) {
				return p, true
			}
		}
	}

	return Plan{}, false
}
