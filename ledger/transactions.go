/*
transactions.go - Typed accessor for the "transactions" collection

PURPOSE:
  Read and query access to transaction documents. All writes that affect
  wallet aggregates go through the Reconciler, which owns the only write
  path; this accessor exposes reads plus the queries the stats and
  cascade-deletion code need.
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/finvault/wallet-engine/docstore"
)

// Transactions provides read/query access to transaction documents.
type Transactions struct {
	store docstore.Store
}

func NewTransactions(store docstore.Store) *Transactions {
	return &Transactions{store: store}
}

// Get returns the transaction with the given id, or ErrTransactionNotFound.
func (t *Transactions) Get(ctx context.Context, id string) (Transaction, error) {
	return getTransaction(ctx, t.store, id)
}

// ByWallet returns up to limit transactions referencing walletID.
// limit <= 0 means no limit.
func (t *Transactions) ByWallet(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	snaps, err := t.store.Query(ctx, CollectionTransactions, docstore.Query{
		Filters: []docstore.Where{docstore.Eq("walletId", walletID)},
		Limit:   limit,
	})
	if err != nil {
		return nil, storeErr("query transactions by wallet", err)
	}
	return fromSnapshots(snaps), nil
}

// ByOwner returns all of uid's transactions, newest first.
func (t *Transactions) ByOwner(ctx context.Context, uid string) ([]Transaction, error) {
	snaps, err := t.store.Query(ctx, CollectionTransactions, docstore.Query{
		Filters: []docstore.Where{docstore.Eq("uid", uid)},
		OrderBy: "date",
		Desc:    true,
	})
	if err != nil {
		return nil, storeErr("query transactions by owner", err)
	}
	return fromSnapshots(snaps), nil
}

// ByOwnerInRange returns uid's transactions with from <= date <= to, newest first.
func (t *Transactions) ByOwnerInRange(ctx context.Context, uid string, from, to time.Time) ([]Transaction, error) {
	snaps, err := t.store.Query(ctx, CollectionTransactions, docstore.Query{
		Filters: []docstore.Where{
			docstore.Eq("uid", uid),
			docstore.Gte("date", from),
			docstore.Lte("date", to),
		},
		OrderBy: "date",
		Desc:    true,
	})
	if err != nil {
		return nil, storeErr("query transactions in range", err)
	}
	return fromSnapshots(snaps), nil
}

func fromSnapshots(snaps []docstore.Snapshot) []Transaction {
	txs := make([]Transaction, len(snaps))
	for i, s := range snaps {
		txs[i] = transactionFromDoc(s.ID, s.Data)
	}
	return txs
}

func getTransaction(ctx context.Context, s docstore.Store, id string) (Transaction, error) {
	doc, err := s.Get(ctx, CollectionTransactions, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, storeErr("get transaction", err)
	}
	return transactionFromDoc(id, doc), nil
}
