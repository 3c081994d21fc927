package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/wallet-engine/docstore"
	"github.com/finvault/wallet-engine/docstore/store"
)

// =============================================================================
// CRUD / MERGE SEMANTICS
// =============================================================================

func TestMemory_CreateAndGet(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	id, err := m.Create(ctx, "pets", docstore.Doc{"name": "rex", "age": 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := m.Get(ctx, "pets", id)
	require.NoError(t, err)
	assert.Equal(t, "rex", doc["name"])
	assert.Equal(t, 3, doc["age"])
}

func TestMemory_Get_NotFound(t *testing.T) {
	m := store.NewMemory()

	_, err := m.Get(context.Background(), "pets", "missing")

	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMemory_Set_MergesFields(t *testing.T) {
	// GIVEN: A document with two fields
	// WHEN: Set() with only one field
	// THEN: The untouched field survives

	m := store.NewMemory()
	ctx := context.Background()
	id, err := m.Create(ctx, "pets", docstore.Doc{"name": "rex", "age": 3})
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "pets", id, docstore.Doc{"age": 4}))

	doc, err := m.Get(ctx, "pets", id)
	require.NoError(t, err)
	assert.Equal(t, "rex", doc["name"])
	assert.Equal(t, 4, doc["age"])
}

func TestMemory_Set_CreatesIfAbsent(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "pets", "custom-id", docstore.Doc{"name": "cat"}))

	doc, err := m.Get(ctx, "pets", "custom-id")
	require.NoError(t, err)
	assert.Equal(t, "cat", doc["name"])
}

func TestMemory_Delete_AbsentIsNoError(t *testing.T) {
	m := store.NewMemory()

	assert.NoError(t, m.Delete(context.Background(), "pets", "missing"))
}

func TestMemory_Get_ReturnsCopy(t *testing.T) {
	// Mutating a returned doc must not leak into the store.

	m := store.NewMemory()
	ctx := context.Background()
	id, err := m.Create(ctx, "pets", docstore.Doc{"name": "rex"})
	require.NoError(t, err)

	doc, err := m.Get(ctx, "pets", id)
	require.NoError(t, err)
	doc["name"] = "mutated"

	again, err := m.Get(ctx, "pets", id)
	require.NoError(t, err)
	assert.Equal(t, "rex", again["name"])
}

// =============================================================================
// QUERIES
// =============================================================================

func seedQueryDocs(t *testing.T, m *store.Memory) {
	t.Helper()
	ctx := context.Background()
	for _, doc := range []docstore.Doc{
		{"owner": "alice", "score": 10, "when": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"owner": "alice", "score": 30, "when": time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"owner": "bob", "score": 20, "when": time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	} {
		_, err := m.Create(ctx, "scores", doc)
		require.NoError(t, err)
	}
}

func TestMemory_Query_EqualityFilter(t *testing.T) {
	m := store.NewMemory()
	seedQueryDocs(t, m)

	snaps, err := m.Query(context.Background(), "scores", docstore.Query{
		Filters: []docstore.Where{docstore.Eq("owner", "alice")},
	})

	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	for _, s := range snaps {
		assert.Equal(t, "alice", s.Data["owner"])
	}
}

func TestMemory_Query_RangeAndOrder(t *testing.T) {
	m := store.NewMemory()
	seedQueryDocs(t, m)

	snaps, err := m.Query(context.Background(), "scores", docstore.Query{
		Filters: []docstore.Where{docstore.Gte("score", 15)},
		OrderBy: "when",
		Desc:    true,
	})

	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 30, snaps[0].Data["score"]) // March before February, desc
	assert.Equal(t, 20, snaps[1].Data["score"])
}

func TestMemory_Query_Limit(t *testing.T) {
	m := store.NewMemory()
	seedQueryDocs(t, m)

	snaps, err := m.Query(context.Background(), "scores", docstore.Query{
		OrderBy: "score",
		Limit:   2,
	})

	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 10, snaps[0].Data["score"])
	assert.Equal(t, 20, snaps[1].Data["score"])
}

func TestMemory_Query_TimeRangeWithStringDates(t *testing.T) {
	// JSON round-trips store timestamps as RFC3339 strings; range filters
	// against time.Time bounds still have to match them.

	m := store.NewMemory()
	ctx := context.Background()
	_, err := m.Create(ctx, "events", docstore.Doc{"at": "2025-06-10T00:00:00Z"})
	require.NoError(t, err)
	_, err = m.Create(ctx, "events", docstore.Doc{"at": "2025-06-20T00:00:00Z"})
	require.NoError(t, err)

	snaps, err := m.Query(ctx, "events", docstore.Query{
		Filters: []docstore.Where{
			docstore.Gte("at", time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)),
		},
	})

	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "2025-06-20T00:00:00Z", snaps[0].Data["at"])
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestMemory_RunTransaction_Commits(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	var id string
	err := m.RunTransaction(ctx, func(tx docstore.Store) error {
		var err error
		id, err = tx.Create(ctx, "pets", docstore.Doc{"name": "rex"})
		if err != nil {
			return err
		}
		return tx.Set(ctx, "pets", id, docstore.Doc{"age": 1})
	})

	require.NoError(t, err)
	doc, err := m.Get(ctx, "pets", id)
	require.NoError(t, err)
	assert.Equal(t, "rex", doc["name"])
	assert.Equal(t, 1, doc["age"])
}

func TestMemory_RunTransaction_RollsBackOnError(t *testing.T) {
	// GIVEN: An existing document
	// WHEN: A transaction mutates and deletes things, then fails
	// THEN: Every mutation is undone

	m := store.NewMemory()
	ctx := context.Background()
	id, err := m.Create(ctx, "pets", docstore.Doc{"name": "rex"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.RunTransaction(ctx, func(tx docstore.Store) error {
		if err := tx.Set(ctx, "pets", id, docstore.Doc{"name": "changed"}); err != nil {
			return err
		}
		if _, err := tx.Create(ctx, "pets", docstore.Doc{"name": "extra"}); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	doc, err := m.Get(ctx, "pets", id)
	require.NoError(t, err)
	assert.Equal(t, "rex", doc["name"])
	snaps, err := m.Query(ctx, "pets", docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestMemory_RunTransaction_ReadsSeeOwnWrites(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	err := m.RunTransaction(ctx, func(tx docstore.Store) error {
		id, err := tx.Create(ctx, "pets", docstore.Doc{"name": "rex"})
		if err != nil {
			return err
		}
		doc, err := tx.Get(ctx, "pets", id)
		if err != nil {
			return err
		}
		if doc["name"] != "rex" {
			return errors.New("own write not visible")
		}
		return nil
	})

	assert.NoError(t, err)
}

func TestInTransaction_FallsBackWithoutTxStore(t *testing.T) {
	// A bare Store without RunTransaction still executes fn directly.

	m := store.NewMemory()
	bare := plainStore{m}
	called := false

	err := docstore.InTransaction(context.Background(), bare, func(tx docstore.Store) error {
		called = true
		_, err := tx.Create(context.Background(), "pets", docstore.Doc{"name": "rex"})
		return err
	})

	require.NoError(t, err)
	assert.True(t, called)
	snaps, err := m.Query(context.Background(), "pets", docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

// plainStore hides Memory's TxStore capability.
type plainStore struct {
	docstore.Store
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

func TestMemory_Subscribe_FiresOnMutations(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	var results [][]docstore.Snapshot
	stop, err := m.Subscribe(ctx, "pets", docstore.Query{}, func(snaps []docstore.Snapshot) {
		results = append(results, snaps)
	}, nil)
	require.NoError(t, err)
	defer stop()

	require.Len(t, results, 1, "initial result set fires immediately")
	assert.Empty(t, results[0])

	id, err := m.Create(ctx, "pets", docstore.Doc{"name": "rex"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[1], 1)

	require.NoError(t, m.Delete(ctx, "pets", id))
	require.Len(t, results, 3)
	assert.Empty(t, results[2])
}

func TestMemory_Subscribe_StopEndsDelivery(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	count := 0
	stop, err := m.Subscribe(ctx, "pets", docstore.Query{}, func([]docstore.Snapshot) {
		count++
	}, nil)
	require.NoError(t, err)
	stop()

	_, err = m.Create(ctx, "pets", docstore.Doc{"name": "rex"})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "only the initial delivery")
}

func TestMemory_Subscribe_FilteredQuery(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	var latest []docstore.Snapshot
	stop, err := m.Subscribe(ctx, "pets", docstore.Query{
		Filters: []docstore.Where{docstore.Eq("kind", "dog")},
	}, func(snaps []docstore.Snapshot) {
		latest = snaps
	}, nil)
	require.NoError(t, err)
	defer stop()

	_, err = m.Create(ctx, "pets", docstore.Doc{"kind": "dog", "name": "rex"})
	require.NoError(t, err)
	_, err = m.Create(ctx, "pets", docstore.Doc{"kind": "cat", "name": "tom"})
	require.NoError(t, err)

	require.Len(t, latest, 1)
	assert.Equal(t, "rex", latest[0].Data["name"])
}
