// Package store defines the storage abstraction shared by every quota-core
// component: a small collection/document interface that production code
// backs with Firestore and tests back with an in-memory implementation.
package store

import (
	"context"
	"errors"
)

// Collection names for the five logical collections this core owns.
const (
	CollectionUsers         = "users_quota"
	CollectionSubscriptions = "subscriptions_quota"
	CollectionWallets       = "quota_wallets"
	CollectionUsages        = "quota_usages"
	CollectionWebhookEvents = "webhook_events"
)

// ErrNotFound is returned by Get when no document exists at collection/id.
var ErrNotFound = errors.New("store: document not found")

// ErrAlreadyExists is returned by Set when precondition requires the
// document to be absent and it is not.
var ErrAlreadyExists = errors.New("store: document already exists")

// ErrConflict is returned by RunTransaction when the underlying driver
// could not commit due to a concurrent conflicting write, after exhausting
// its retry budget. Callers may retry the whole operation.
var ErrConflict = errors.New("store: transaction conflict")

// Op is a comparison operator for Filter.
type Op string

const (
	OpEqual          Op = "=="
	OpNotEqual       Op = "!="
	OpLessThan       Op = "<"
	OpLessOrEqual    Op = "<="
	OpGreaterThan    Op = ">"
	OpGreaterOrEqual Op = ">="
)

// Filter is a single field comparison used to build an indexed Query.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes an indexed lookup against one collection.
type Query struct {
	Collection string
	Filters    []Filter
	// Limit caps the number of matched documents. Zero means unbounded.
	Limit int
}

// SetOptions controls how Set writes a document.
type SetOptions struct {
	// Merge, when true, shallow-merges the given fields into any existing
	// document instead of replacing it wholesale.
	Merge bool
	// CreateOnly, when true, fails with ErrAlreadyExists if a document is
	// already present at collection/id. Used for first-write-wins
	// deduplication (webhook events, usage reservations).
	CreateOnly bool
}

// Store is the storage abstraction every quota-core component depends on.
// Implementations for production (Firestore) and in-memory testing
// (memstore) must be interchangeable.
type Store interface {
	// Get reads a single document by collection and id, decoding it into
	// dst (a pointer). Returns ErrNotFound if no such document exists.
	Get(ctx context.Context, collection, id string, dst any) error

	// Set writes doc at collection/id according to opts. doc must encode
	// to a document (typically a struct or map[string]any).
	Set(ctx context.Context, collection, id string, doc any, opts SetOptions) error

	// Query runs an indexed lookup and decodes each match into a fresh
	// element appended to dst, a pointer to a slice.
	Query(ctx context.Context, q Query, dst any) error

	// RunTransaction executes fn within a transaction that retries on
	// optimistic-concurrency conflicts. fn must be idempotent: the driver
	// may invoke it more than once before committing.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error

	// Ping verifies connectivity to the underlying backend.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Transaction is the read/write surface available inside RunTransaction.
// All reads within a transaction must happen before any writes, matching
// Firestore's native transaction contract.
type Transaction interface {
	Get(ctx context.Context, collection, id string, dst any) error
	Set(ctx context.Context, collection, id string, doc any, opts SetOptions) error
}
