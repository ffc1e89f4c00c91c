// Package quotacache is an optional read-through cache for quota
// snapshots, sitting in front of the facade's GetSnapshot/EnsureQuota
// calls. Grounded on the teacher's entitlement.Store cache contract
// (GetCached/SetCached/Invalidate), adapted to this domain's single
// per-user Snapshot instead of a per-feature result.
package quotacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot mirrors the facade's quota.Snapshot shape. Duplicated here
// (rather than imported) to keep quotacache free of a dependency on the
// root package, which would otherwise import quotacache back for wiring.
type Snapshot struct {
	PlanID         string     `json:"planId,omitempty"`
	PlanKey        string     `json:"planKey,omitempty"`
	Cycle          string     `json:"cycle,omitempty"`
	IsActive       bool       `json:"isActive"`
	WillRenew      bool       `json:"willRenew"`
	PeriodStart    *time.Time `json:"periodStart,omitempty"`
	PeriodEnd      *time.Time `json:"periodEnd,omitempty"`
	QuotaTotal     int64      `json:"quotaTotal"`
	QuotaUsed      int64      `json:"quotaUsed"`
	QuotaRemaining int64      `json:"quotaRemaining"`
	WalletID       string     `json:"walletId,omitempty"`
}

// ErrMiss is returned by Get when no cached snapshot exists for the key.
var ErrMiss = errors.New("quotacache: cache miss")

// Cache is a Redis-backed read-through cache for per-user snapshots.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a Cache backed by client, caching entries for ttl.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(userID string) string {
	return "quota:snapshot:" + userID
}

// Get returns the cached snapshot for userID, or ErrMiss if absent.
func (c *Cache) Get(ctx context.Context, userID string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("quotacache: get %s: %w", userID, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("quotacache: decode %s: %w", userID, err)
	}
	return &snap, nil
}

// Set writes snap into the cache for userID with the configured TTL.
func (c *Cache) Set(ctx context.Context, userID string, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("quotacache: encode %s: %w", userID, err)
	}
	if err := c.client.Set(ctx, cacheKey(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("quotacache: set %s: %w", userID, err)
	}
	return nil
}

// Invalidate removes any cached snapshot for userID. Called after any
// operation that mutates subscription or wallet state for that user
// (Reserve, Commit, Rollback, ProcessBillingEvent, EnsureQuota).
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("quotacache: invalidate %s: %w", userID, err)
	}
	return nil
}
