// Package store provides docstore.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/finvault/wallet-engine/docstore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Doc
	watchers    map[int]*watcher
	nextWatcher int
}

type watcher struct {
	collection string
	query      docstore.Query
	onChange   func([]docstore.Snapshot)
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]docstore.Doc),
		watchers:    make(map[int]*watcher),
	}
}

func (m *Memory) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (m *Memory) Create(_ context.Context, collection string, doc docstore.Doc) (string, error) {
	m.mu.Lock()
	id := uuid.NewString()
	m.setLocked(collection, id, doc)
	m.mu.Unlock()

	m.notify(collection)
	return id, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, doc docstore.Doc) error {
	m.mu.Lock()
	m.setLocked(collection, id, doc)
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	delete(m.collections[collection], id)
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(collection, q), nil
}

// setLocked merges doc into the existing document, creating it if absent.
func (m *Memory) setLocked(collection, id string, doc docstore.Doc) {
	docs := m.collections[collection]
	if docs == nil {
		docs = make(map[string]docstore.Doc)
		m.collections[collection] = docs
	}
	existing := docs[id]
	if existing == nil {
		existing = make(docstore.Doc, len(doc))
		docs[id] = existing
	}
	for k, v := range doc {
		existing[k] = v
	}
}

func (m *Memory) queryLocked(collection string, q docstore.Query) []docstore.Snapshot {
	var result []docstore.Snapshot
	for id, doc := range m.collections[collection] {
		if q.Matches(doc) {
			result = append(result, docstore.Snapshot{ID: id, Data: cloneDoc(doc)})
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			cmp, ok := docstore.Compare(result[i].Data[q.OrderBy], result[j].Data[q.OrderBy])
			if !ok {
				return false
			}
			if q.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	} else {
		// Deterministic order for tests.
		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result
}

func cloneDoc(doc docstore.Doc) docstore.Doc {
	out := make(docstore.Doc, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback under the store lock
// =============================================================================

// RunTransaction executes fn while holding the store lock, so concurrent
// writers serialize and fn's reads and writes are atomic. On error the
// pre-transaction state is restored.
func (m *Memory) RunTransaction(_ context.Context, fn func(tx docstore.Store) error) error {
	m.mu.Lock()

	snapshot := m.snapshotLocked()
	view := &txMemoryView{parent: m}

	if err := fn(view); err != nil {
		m.collections = snapshot
		m.mu.Unlock()
		return err
	}

	touched := view.touched
	m.mu.Unlock()

	for collection := range touched {
		m.notify(collection)
	}
	return nil
}

func (m *Memory) snapshotLocked() map[string]map[string]docstore.Doc {
	out := make(map[string]map[string]docstore.Doc, len(m.collections))
	for name, docs := range m.collections {
		docsCopy := make(map[string]docstore.Doc, len(docs))
		for id, doc := range docs {
			docsCopy[id] = cloneDoc(doc)
		}
		out[name] = docsCopy
	}
	return out
}

// txMemoryView writes directly to the parent while the lock is held.
type txMemoryView struct {
	parent  *Memory
	touched map[string]bool
}

func (tv *txMemoryView) touch(collection string) {
	if tv.touched == nil {
		tv.touched = make(map[string]bool)
	}
	tv.touched[collection] = true
}

func (tv *txMemoryView) Get(_ context.Context, collection, id string) (docstore.Doc, error) {
	doc, ok := tv.parent.collections[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (tv *txMemoryView) Create(_ context.Context, collection string, doc docstore.Doc) (string, error) {
	id := uuid.NewString()
	tv.parent.setLocked(collection, id, doc)
	tv.touch(collection)
	return id, nil
}

func (tv *txMemoryView) Set(_ context.Context, collection, id string, doc docstore.Doc) error {
	tv.parent.setLocked(collection, id, doc)
	tv.touch(collection)
	return nil
}

func (tv *txMemoryView) Delete(_ context.Context, collection, id string) error {
	delete(tv.parent.collections[collection], id)
	tv.touch(collection)
	return nil
}

func (tv *txMemoryView) Query(_ context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	return tv.parent.queryLocked(collection, q), nil
}

// =============================================================================
// SUBSCRIPTIONS - Live query fan-out
// =============================================================================

// Subscribe registers a live query. onChange fires immediately with the
// current result set and again after every mutation of the collection.
func (m *Memory) Subscribe(ctx context.Context, collection string, q docstore.Query, onChange func([]docstore.Snapshot), onError func(error)) (func(), error) {
	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	m.watchers[id] = &watcher{collection: collection, query: q, onChange: onChange}
	initial := m.queryLocked(collection, q)
	m.mu.Unlock()

	onChange(initial)

	stop := func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
	return stop, nil
}

func (m *Memory) notify(collection string) {
	m.mu.RLock()
	type pending struct {
		fn   func([]docstore.Snapshot)
		snap []docstore.Snapshot
	}
	var fire []pending
	for _, w := range m.watchers {
		if w.collection == collection {
			fire = append(fire, pending{fn: w.onChange, snap: m.queryLocked(collection, w.query)})
		}
	}
	m.mu.RUnlock()

	for _, p := range fire {
		p.fn(p.snap)
	}
}
