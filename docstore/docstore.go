/*
Package docstore defines the persistence interface for document collections.

PURPOSE:
  Defines the interface between the ledger domain logic and the hosted
  document database. Documents are schemaless maps grouped into named
  collections ("users", "wallets", "transactions"). Different
  implementations can use memory, SQLite, or DynamoDB.

KEY INTERFACES:
  Store:      Per-collection CRUD and querying
  TxStore:    Atomic multi-document read-modify-write (optional capability)
  WatchStore: Live-query subscriptions (optional capability)

MERGE SEMANTICS:
  Set() merges the given fields into the existing document. Fields not
  present in the update are left untouched. This mirrors the partial-update
  contract of hosted document databases and is what the wallet accessor
  relies on when touching only aggregate fields.

OPTIMISTIC TRANSACTIONS:
  TxStore.RunTransaction executes fn against a transactional view. All
  reads and writes inside fn commit atomically; a conflicting concurrent
  write surfaces as ErrConflict, which callers retry. This is the primitive
  the reconciler uses so that wallet aggregates and the transaction record
  can never diverge under a crash or a racing writer.

IMPLEMENTATIONS:
  - docstore/store/memory.go: In-memory for testing/dev
  - store/sqlite/sqlite.go:   SQLite documents table
  - store/dynamo/dynamo.go:   DynamoDB with TransactWriteItems

SEE ALSO:
  - ledger/wallets.go, ledger/transactions.go: Typed accessors over Store
  - ledger/reconciler.go: RunTransaction consumer
*/
package docstore

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// Doc is a schemaless document. Values are restricted to the types every
// backend can round-trip: string, bool, float64, int, int64, time.Time and nil.
type Doc = map[string]any

// Snapshot is a document together with its identifier, as returned by queries.
type Snapshot struct {
	ID   string
	Data Doc
}

// =============================================================================
// QUERIES
// =============================================================================

type Op string

const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpLessOrEqual    Op = "<="
)

// Where is a single field predicate.
type Where struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents in a collection. All filters must match (AND).
type Query struct {
	Filters []Where
	OrderBy string
	Desc    bool
	Limit   int // 0 means no limit
}

func Eq(field string, value any) Where  { return Where{Field: field, Op: OpEqual, Value: value} }
func Gte(field string, value any) Where { return Where{Field: field, Op: OpGreaterOrEqual, Value: value} }
func Lte(field string, value any) Where { return Where{Field: field, Op: OpLessOrEqual, Value: value} }

// =============================================================================
// STORE - Per-collection CRUD
// =============================================================================

// Store handles persistence of documents grouped into collections.
type Store interface {
	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// Create persists a new document and returns its generated id.
	Create(ctx context.Context, collection string, doc Doc) (string, error)

	// Set merges the given fields into the document, creating it if absent.
	// Fields not present in doc are left untouched.
	Set(ctx context.Context, collection, id string, doc Doc) error

	// Delete removes the document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Query returns the documents matching q.
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
}

// TxStore extends Store with atomic multi-document transactions.
type TxStore interface {
	Store

	// RunTransaction executes fn against a transactional view of the store.
	// If fn returns an error nothing is committed. A concurrent conflicting
	// write causes ErrConflict; callers are expected to retry.
	RunTransaction(ctx context.Context, fn func(tx Store) error) error
}

// WatchStore extends Store with live-query subscriptions.
type WatchStore interface {
	Store

	// Subscribe invokes onChange with the full matching result set now and
	// after every mutation of the collection. The returned func stops the
	// subscription. Backends without change feeds return ErrWatchUnsupported.
	Subscribe(ctx context.Context, collection string, q Query, onChange func([]Snapshot), onError func(error)) (func(), error)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a referenced document doesn't exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when an optimistic transaction loses a race
	// with a concurrent writer. Safe to retry.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrWatchUnsupported is returned by backends without change feeds.
	ErrWatchUnsupported = errors.New("store does not support subscriptions")
)

// InTransaction runs fn atomically when s supports transactions, and falls
// back to direct sequential execution otherwise. The fallback only exists
// for stores that genuinely cannot do better.
func InTransaction(ctx context.Context, s Store, fn func(tx Store) error) error {
	if ts, ok := s.(TxStore); ok {
		return ts.RunTransaction(ctx, fn)
	}
	return fn(s)
}

// =============================================================================
// VALUE COMPARISON - Shared by memory store and query fallbacks
// =============================================================================

// Compare orders two document values of the same kind. Returns the usual
// -1/0/1 and false when the values aren't comparable. JSON round-trips turn
// numbers into float64 and timestamps into RFC3339 strings, so numeric kinds
// are normalized and times accept both representations.
func Compare(a, b any) (int, bool) {
	if ta, ok := asTime(a); ok {
		tb, ok := asTime(b)
		if !ok {
			return 0, false
		}
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		}
		return 0, true
	}

	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case va < vb:
			return -1, true
		case va > vb:
			return 1, true
		}
		return 0, true
	case bool:
		vb, ok := b.(bool)
		if !ok || va != vb {
			return 0, ok
		}
		return 0, true
	}
	return 0, false
}

// Matches reports whether doc satisfies every filter in q.
func (q Query) Matches(doc Doc) bool {
	for _, f := range q.Filters {
		v, present := doc[f.Field]
		if !present {
			return false
		}
		cmp, ok := Compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpGreaterOrEqual:
			if cmp < 0 {
				return false
			}
		case OpLessOrEqual:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
