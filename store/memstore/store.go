// Package memstore provides an in-memory store.Store implementation for
// tests, modeled on the teacher's in-memory store: a coarse mutex guarding
// plain maps, good enough for single-process test/dev use.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mkucukkoc/aiorealbackend/store"
)

// Store is an in-memory, mutex-guarded store.Store. Documents are kept as
// their JSON encoding so Get/Query round-trip through the same
// marshal/unmarshal path a real document store would use.
type Store struct {
	mu   sync.Mutex
	docs map[string]map[string]json.RawMessage // collection -> id -> doc
}

// New returns an empty Store.
func New() *Store {
	return &Store{docs: make(map[string]map[string]json.RawMessage)}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Get(_ context.Context, collection, id string, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(collection, id, dst)
}

func (s *Store) getLocked(collection, id string, dst any) error {
	coll, ok := s.docs[collection]
	if !ok {
		return store.ErrNotFound
	}
	raw, ok := coll[id]
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) Set(_ context.Context, collection, id string, doc any, opts store.SetOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(collection, id, doc, opts)
}

func (s *Store) setLocked(collection, id string, doc any, opts store.SetOptions) error {
	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]json.RawMessage)
		s.docs[collection] = coll
	}

	existing, exists := coll[id]

	if opts.CreateOnly && exists {
		return store.ErrAlreadyExists
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memstore: marshal %s/%s: %w", collection, id, err)
	}

	if opts.Merge && exists {
		merged, err := mergeJSON(existing, raw)
		if err != nil {
			return fmt.Errorf("memstore: merge %s/%s: %w", collection, id, err)
		}
		raw = merged
	}

	coll[id] = raw
	return nil
}

func mergeJSON(existing, update json.RawMessage) (json.RawMessage, error) {
	var base map[string]any
	if err := json.Unmarshal(existing, &base); err != nil {
		return nil, err
	}
	var patch map[string]any
	if err := json.Unmarshal(update, &patch); err != nil {
		return nil, err
	}
	if base == nil {
		base = make(map[string]any)
	}
	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}

func (s *Store) Query(_ context.Context, q store.Query, dst any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(q, dst)
}

func (s *Store) queryLocked(q store.Query, dst any) error {
	coll := s.docs[q.Collection]

	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matches []json.RawMessage
	for _, id := range ids {
		raw := coll[id]
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("memstore: decode %s/%s: %w", q.Collection, id, err)
		}
		if matchesAll(fields, q.Filters) {
			matches = append(matches, raw)
			if q.Limit > 0 && len(matches) >= q.Limit {
				break
			}
		}
	}

	joined := append([]byte{'['}, joinRaw(matches)...)
	joined = append(joined, ']')
	return json.Unmarshal(joined, dst)
}

func joinRaw(items []json.RawMessage) []byte {
	out := make([]byte, 0)
	for i, item := range items {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, item...)
	}
	return out
}

func matchesAll(fields map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		if !matchesOne(fields[f.Field], f.Op, f.Value) {
			return false
		}
	}
	return true
}

func matchesOne(got any, op store.Op, want any) bool {
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		switch op {
		case store.OpEqual:
			return gf == wf
		case store.OpNotEqual:
			return gf != wf
		case store.OpLessThan:
			return gf < wf
		case store.OpLessOrEqual:
			return gf <= wf
		case store.OpGreaterThan:
			return gf > wf
		case store.OpGreaterOrEqual:
			return gf >= wf
		}
	}

	switch op {
	case store.OpEqual:
		return got == want
	case store.OpNotEqual:
		return got != want
	default:
		gs, gsok := got.(string)
		ws, wsok := want.(string)
		if !gsok || !wsok {
			return false
		}
		switch op {
		case store.OpLessThan:
			return gs < ws
		case store.OpLessOrEqual:
			return gs <= ws
		case store.OpGreaterThan:
			return gs > ws
		case store.OpGreaterOrEqual:
			return gs >= ws
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// RunTransaction runs fn once under the store's single mutex. There is no
// real optimistic-concurrency conflict to retry in a single-process
// in-memory store, so fn always runs exactly once and ErrConflict is never
// returned — matching the teacher's own memory store's simplification of
// dropping the retry machinery its production backend needs.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &txn{s: s})
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// txn implements store.Transaction against a Store whose mutex is already
// held by the enclosing RunTransaction call.
type txn struct {
	s *Store
}

func (t *txn) Get(_ context.Context, collection, id string, dst any) error {
	return t.s.getLocked(collection, id, dst)
}

func (t *txn) Set(_ context.Context, collection, id string, doc any, opts store.SetOptions) error {
	return t.s.setLocked(collection, id, doc, opts)
}
