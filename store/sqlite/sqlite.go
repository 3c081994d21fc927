/*
Package sqlite provides a SQLite-backed implementation of docstore.Store.

PURPOSE:
  Persists documents in a single table keyed by (collection, id) with the
  body as a JSON blob. In production the same patterns apply to PostgreSQL
  with a jsonb column - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  docstore.Store:   Per-collection CRUD and querying
  docstore.TxStore: Atomic multi-document transactions

MERGE SEMANTICS:
  Set() reads the stored body, merges the incoming fields in Go, and
  upserts the result. Inside RunTransaction this happens on the SQL
  transaction, so concurrent writers serialize on SQLite's single-writer
  lock and a busy conflict surfaces as docstore.ErrConflict.

QUERYING:
  Bodies are decoded and filtered in Go with the shared predicate
  matcher. Collections here are small (one user's wallets and
  transactions); an indexed side-table per hot field would be the next
  step if that stopped being true.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/finvault.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - docstore/docstore.go: Interface definitions
  - docstore/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/finvault/wallet-engine/docstore"
)

// Store implements docstore.Store and docstore.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// QUERIER - Shared by direct access and transaction views
// =============================================================================

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDoc(ctx context.Context, q querier, collection, id string) (docstore.Doc, error) {
	var body string
	err := q.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeBody(body)
}

func setDoc(ctx context.Context, q querier, collection, id string, fields docstore.Doc) error {
	existing, err := getDoc(ctx, q, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		existing = docstore.Doc{}
	} else if err != nil {
		return err
	}
	for k, v := range fields {
		existing[k] = v
	}

	body, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body`,
		collection, id, string(body))
	return err
}

func deleteDoc(ctx context.Context, q querier, collection, id string) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	return err
}

func queryDocs(ctx context.Context, q querier, collection string, query docstore.Query) ([]docstore.Snapshot, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []docstore.Snapshot
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		if query.Matches(doc) {
			matched = append(matched, docstore.Snapshot{ID: id, Data: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortSnapshots(matched, query)
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, nil
}

func decodeBody(body string) (docstore.Doc, error) {
	var doc docstore.Doc
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

func sortSnapshots(snaps []docstore.Snapshot, q docstore.Query) {
	if q.OrderBy == "" {
		return
	}
	// Insertion sort; result sets are one user's documents.
	for i := 1; i < len(snaps); i++ {
		for j := i; j > 0; j-- {
			cmp, ok := docstore.Compare(snaps[j-1].Data[q.OrderBy], snaps[j].Data[q.OrderBy])
			if !ok {
				break
			}
			if (q.Desc && cmp >= 0) || (!q.Desc && cmp <= 0) {
				break
			}
			snaps[j-1], snaps[j] = snaps[j], snaps[j-1]
		}
	}
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	return getDoc(ctx, s.db, collection, id)
}

func (s *Store) Create(ctx context.Context, collection string, doc docstore.Doc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	if err := setDoc(ctx, s.db, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setDoc(ctx, s.db, collection, id, doc)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteDoc(ctx, s.db, collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	return queryDocs(ctx, s.db, collection, q)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// RunTransaction executes fn on a SQL transaction. The store mutex plus
// SQLite's single-writer lock serialize concurrent transactions; a busy
// failure maps to docstore.ErrConflict so callers retry.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapBusy(err)
	}

	view := &txView{tx: sqlTx}
	if err := fn(view); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapBusy(err)
	}
	return nil
}

func mapBusy(err error) error {
	if err != nil && strings.Contains(err.Error(), "database is locked") {
		return docstore.ErrConflict
	}
	return err
}

// txView adapts *sql.Tx to docstore.Store for use inside RunTransaction.
type txView struct {
	tx *sql.Tx
}

func (v *txView) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	return getDoc(ctx, v.tx, collection, id)
}

func (v *txView) Create(ctx context.Context, collection string, doc docstore.Doc) (string, error) {
	id := uuid.NewString()
	if err := setDoc(ctx, v.tx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (v *txView) Set(ctx context.Context, collection, id string, doc docstore.Doc) error {
	return setDoc(ctx, v.tx, collection, id, doc)
}

func (v *txView) Delete(ctx context.Context, collection, id string) error {
	return deleteDoc(ctx, v.tx, collection, id)
}

func (v *txView) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Snapshot, error) {
	return queryDocs(ctx, v.tx, collection, q)
}
