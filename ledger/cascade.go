/*
cascade.go - Wallet deletion with dependent-transaction cleanup

PURPOSE:
  Deleting a wallet must also remove every transaction referencing it
  (foreign key, not ownership: deleting a transaction never deletes the
  wallet). The coordinator deletes the wallet record, then repeatedly
  queries a bounded page of dependent transactions and deletes each page
  as one atomic batch until a query comes back empty. Bounded pages keep
  memory and write-batch size flat regardless of history size.

KNOWN RACE:
  A transaction inserted against the wallet after the final empty-result
  poll is not cleaned up here. In practice the insert path rejects it
  anyway: once the wallet document is gone, getWallet fails.
*/
package ledger

import (
	"context"

	"github.com/finvault/wallet-engine/docstore"
)

// defaultCascadeBatch bounds the page size of each query-then-delete round.
const defaultCascadeBatch = 25

// Cascade removes wallets together with their dependent transactions.
type Cascade struct {
	store docstore.Store

	// BatchSize overrides the per-round page size. Zero means the default.
	BatchSize int
}

func NewCascade(store docstore.Store) *Cascade {
	return &Cascade{store: store}
}

// DeleteWallet removes the wallet record and then every transaction
// referencing it, in bounded atomic batches.
func (c *Cascade) DeleteWallet(ctx context.Context, walletID string) error {
	if _, err := getWallet(ctx, c.store, walletID); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, CollectionWallets, walletID); err != nil {
		return storeErr("delete wallet", err)
	}

	batch := c.BatchSize
	if batch <= 0 {
		batch = defaultCascadeBatch
	}

	for {
		snaps, err := c.store.Query(ctx, CollectionTransactions, docstore.Query{
			Filters: []docstore.Where{docstore.Eq("walletId", walletID)},
			Limit:   batch,
		})
		if err != nil {
			return storeErr("query dependent transactions", err)
		}
		if len(snaps) == 0 {
			return nil
		}

		err = docstore.InTransaction(ctx, c.store, func(tx docstore.Store) error {
			for _, s := range snaps {
				if err := tx.Delete(ctx, CollectionTransactions, s.ID); err != nil {
					return storeErr("delete dependent transaction", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
}
