/*
wallets.go - Typed accessor for the "wallets" collection

PURPOSE:
  Thin read/write layer between the domain types and the document store.
  Creation zeroes the aggregate fields; detail updates (name, icon) merge
  into the stored document and never touch aggregates. Aggregate fields
  are written only by the reconciler, through the package-level helpers
  at the bottom of this file, so that they can run inside a store
  transaction alongside the transaction-record write.
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/finvault/wallet-engine/docstore"
)

// Wallets provides CRUD access to wallet documents.
type Wallets struct {
	store docstore.Store
}

func NewWallets(store docstore.Store) *Wallets {
	return &Wallets{store: store}
}

// Get returns the wallet with the given id, or ErrWalletNotFound.
func (w *Wallets) Get(ctx context.Context, id string) (Wallet, error) {
	return getWallet(ctx, w.store, id)
}

// Create persists a new wallet with zeroed aggregates.
func (w *Wallets) Create(ctx context.Context, draft WalletDraft) (Wallet, error) {
	wallet := Wallet{
		Name:    draft.Name,
		Icon:    draft.Icon,
		UID:     draft.UID,
		Created: time.Now().UTC(),
	}
	id, err := w.store.Create(ctx, CollectionWallets, wallet.doc())
	if err != nil {
		return Wallet{}, storeErr("create wallet", err)
	}
	wallet.ID = id
	return wallet, nil
}

// UpdateDetails merges name/icon changes into the wallet document.
// Aggregate fields are deliberately not reachable from here.
func (w *Wallets) UpdateDetails(ctx context.Context, id, name, icon string) error {
	if _, err := getWallet(ctx, w.store, id); err != nil {
		return err
	}
	fields := docstore.Doc{}
	if name != "" {
		fields["name"] = name
	}
	if icon != "" {
		fields["icon"] = icon
	}
	if len(fields) == 0 {
		return nil
	}
	return storeErr("update wallet", w.store.Set(ctx, CollectionWallets, id, fields))
}

// ByOwner returns all wallets belonging to uid, newest first.
func (w *Wallets) ByOwner(ctx context.Context, uid string) ([]Wallet, error) {
	snaps, err := w.store.Query(ctx, CollectionWallets, docstore.Query{
		Filters: []docstore.Where{docstore.Eq("uid", uid)},
		OrderBy: "created",
		Desc:    true,
	})
	if err != nil {
		return nil, storeErr("query wallets", err)
	}
	wallets := make([]Wallet, len(snaps))
	for i, s := range snaps {
		wallets[i] = walletFromDoc(s.ID, s.Data)
	}
	return wallets, nil
}

// =============================================================================
// RECONCILER HELPERS - Usable inside a store transaction view
// =============================================================================

func getWallet(ctx context.Context, s docstore.Store, id string) (Wallet, error) {
	doc, err := s.Get(ctx, CollectionWallets, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Wallet{}, ErrWalletNotFound
	}
	if err != nil {
		return Wallet{}, storeErr("get wallet", err)
	}
	return walletFromDoc(id, doc), nil
}

// setWalletAggregates writes the amount plus exactly one cumulative total in
// a single merge update, matching the shape of the aggregate mutation the
// reconciler computes (amount always moves together with one bucket).
func setWalletAggregates(ctx context.Context, s docstore.Store, id string, amount Amount, totalField string, total Amount) error {
	return storeErr("update wallet aggregates", s.Set(ctx, CollectionWallets, id, docstore.Doc{
		"amount":   amount.String(),
		totalField: total.String(),
	}))
}

// totalField returns the aggregate bucket a transaction type feeds.
func totalField(t TransactionType) string {
	if t == Income {
		return "totalIncome"
	}
	return "totalExpenses"
}

// totalFor returns the cumulative total matching the transaction type.
func totalFor(w Wallet, t TransactionType) Amount {
	if t == Income {
		return w.TotalIncome
	}
	return w.TotalExpenses
}
