/*
reconciler.go - Wallet-aggregate reconciliation for transaction mutations

PURPOSE:
  Every create, update, and delete of a transaction flows through the
  Reconciler so the referenced wallet's amount/totalIncome/totalExpenses
  stay consistent with the transaction log. An edit that changes the
  financial shape of a transaction (type, amount, or wallet) first reverts
  the stored version's effect on the original wallet, then applies the new
  effect to the target wallet.

ATOMICITY:
  Updating the wallet and the transaction record with separate writes
  would let a crash or a racing edit between the two leave aggregates
  inconsistent, and two concurrent expenses could both validate against
  the same starting balance. So every operation runs inside a single
  store transaction (docstore.TxStore) and is retried a bounded number
  of times on optimistic conflicts. Stores without transaction support
  fall back to sequential writes.

BALANCE RULES:
  - An expense that would drive wallet.amount negative fails with
    ErrInsufficientBalance and writes nothing.
  - Deleting an income whose removal would drive wallet.amount negative
    fails with ErrCannotDelete and writes nothing.
  - RequireTargetFunds additionally pre-checks the target wallet balance
    on edits even when the new type is income. Income cannot overdraw
    anything, so it defaults to off; some deployments want the stricter
    check anyway.

SEE ALSO:
  - cascade.go: Wallet deletion with dependent-transaction cleanup
  - docstore/docstore.go: Transaction and conflict semantics
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/finvault/wallet-engine/docstore"
)

// maxTxAttempts bounds optimistic-conflict retries per operation.
const maxTxAttempts = 3

// Reconciler applies transaction mutations while keeping wallet aggregates
// consistent. It is the only writer of aggregate fields and of the
// "transactions" collection.
type Reconciler struct {
	store docstore.Store

	// RequireTargetFunds additionally requires the target wallet to cover
	// the new amount on financial edits even when the new type is income.
	RequireTargetFunds bool
}

func NewReconciler(store docstore.Store) *Reconciler {
	return &Reconciler{store: store}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Create validates the draft, applies its effect to the referenced wallet,
// and writes the transaction record, all in one store transaction.
func (r *Reconciler) Create(ctx context.Context, draft TransactionDraft) (Transaction, error) {
	if err := validateDraft(draft); err != nil {
		return Transaction{}, err
	}
	if draft.Date.IsZero() {
		draft.Date = time.Now().UTC()
	}

	var created Transaction
	err := r.inTx(ctx, func(tx docstore.Store) error {
		wallet, err := getWallet(ctx, tx, draft.WalletID)
		if err != nil {
			return err
		}
		if err := applyEffect(ctx, tx, wallet, draft.Type, draft.Amount); err != nil {
			return err
		}
		id, err := tx.Create(ctx, CollectionTransactions, draft.doc())
		if err != nil {
			return storeErr("create transaction", err)
		}
		created = draftAsTransaction(id, draft)
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return created, nil
}

// Update replaces the stored transaction with the draft. When type, amount,
// and wallet are unchanged only the non-financial fields are written and no
// wallet is touched. Otherwise the stored version's effect is reverted from
// the original wallet and the new effect applied to the target wallet before
// the record itself is updated.
func (r *Reconciler) Update(ctx context.Context, id string, draft TransactionDraft) (Transaction, error) {
	if err := validateDraft(draft); err != nil {
		return Transaction{}, err
	}

	var updated Transaction
	err := r.inTx(ctx, func(tx docstore.Store) error {
		old, err := getTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if draft.UID == "" {
			draft.UID = old.UID
		}
		if draft.Date.IsZero() {
			draft.Date = old.Date
		}

		financial := old.Type != draft.Type ||
			!old.Amount.Equal(draft.Amount) ||
			old.WalletID != draft.WalletID

		if financial {
			if err := r.revertAndReapply(ctx, tx, old, draft); err != nil {
				return err
			}
		}

		if err := tx.Set(ctx, CollectionTransactions, id, draft.doc()); err != nil {
			return storeErr("update transaction", err)
		}
		updated = draftAsTransaction(id, draft)
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return updated, nil
}

// Delete reverses the transaction's effect on its wallet and removes the
// record. Deleting an income whose removal would drive the wallet negative
// fails with ErrCannotDelete and writes nothing.
func (r *Reconciler) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx docstore.Store) error {
		old, err := getTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		wallet, err := getWallet(ctx, tx, old.WalletID)
		if err != nil {
			return err
		}

		var newAmount Amount
		if old.Type == Income {
			newAmount = wallet.Amount.Sub(old.Amount)
		} else {
			newAmount = wallet.Amount.Add(old.Amount)
		}
		if old.Type == Income && newAmount.IsNegative() {
			return fmt.Errorf("%w: removing income %s would drive wallet %s negative",
				ErrCannotDelete, old.Amount, wallet.ID)
		}

		newTotal := totalFor(wallet, old.Type).Sub(old.Amount)
		if err := setWalletAggregates(ctx, tx, wallet.ID, newAmount, totalField(old.Type), newTotal); err != nil {
			return err
		}
		return storeErr("delete transaction", tx.Delete(ctx, CollectionTransactions, id))
	})
}

// =============================================================================
// RECONCILIATION PHASES
// =============================================================================

// applyEffect moves the wallet's aggregates by one new transaction.
func applyEffect(ctx context.Context, tx docstore.Store, wallet Wallet, typ TransactionType, amount Amount) error {
	if typ == Expense && wallet.Amount.Sub(amount).IsNegative() {
		return &InsufficientBalanceError{WalletID: wallet.ID, Available: wallet.Amount, Requested: amount}
	}

	var newAmount Amount
	if typ == Income {
		newAmount = wallet.Amount.Add(amount)
	} else {
		newAmount = wallet.Amount.Sub(amount)
	}
	newTotal := totalFor(wallet, typ).Add(amount)

	return setWalletAggregates(ctx, tx, wallet.ID, newAmount, totalField(typ), newTotal)
}

// revertAndReapply undoes old's effect on its wallet, then applies the
// draft's effect to the draft's wallet. Both phases run in the caller's
// store transaction, so a failure in either leaves every wallet untouched.
func (r *Reconciler) revertAndReapply(ctx context.Context, tx docstore.Store, old Transaction, draft TransactionDraft) error {
	original, err := getWallet(ctx, tx, old.WalletID)
	if err != nil {
		return err
	}

	// Reversal phase: compute the wallet as if old had never existed.
	var revertedAmount Amount
	if old.Type == Income {
		revertedAmount = original.Amount.Sub(old.Amount)
	} else {
		revertedAmount = original.Amount.Add(old.Amount)
	}
	revertedTotal := totalFor(original, old.Type).Sub(old.Amount)

	// A same-wallet expense must still be covered once the old effect is gone.
	if draft.Type == Expense && old.WalletID == draft.WalletID && revertedAmount.LessThan(draft.Amount) {
		return &InsufficientBalanceError{WalletID: draft.WalletID, Available: revertedAmount, Requested: draft.Amount}
	}

	if err := setWalletAggregates(ctx, tx, old.WalletID, revertedAmount, totalField(old.Type), revertedTotal); err != nil {
		return err
	}

	// Application phase: re-read the target so a same-wallet move sees the
	// reverted state.
	target, err := getWallet(ctx, tx, draft.WalletID)
	if err != nil {
		return err
	}

	if r.RequireTargetFunds && target.Amount.LessThan(draft.Amount) {
		return &InsufficientBalanceError{WalletID: target.ID, Available: target.Amount, Requested: draft.Amount}
	}

	return applyEffect(ctx, tx, target, draft.Type, draft.Amount)
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateDraft(draft TransactionDraft) error {
	if !draft.Type.Valid() {
		return &ValidationError{Field: "type", Reason: "must be income or expense"}
	}
	if !draft.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if draft.WalletID == "" {
		return &ValidationError{Field: "walletId", Reason: "is required"}
	}
	if draft.Type == Expense && draft.Category == "" {
		return &ValidationError{Field: "category", Reason: "is required for expenses"}
	}
	return nil
}

func draftAsTransaction(id string, draft TransactionDraft) Transaction {
	return Transaction{
		ID:          id,
		Type:        draft.Type,
		Amount:      draft.Amount,
		Description: draft.Description,
		Category:    draft.Category,
		Date:        draft.Date,
		WalletID:    draft.WalletID,
		Image:       draft.Image,
		UID:         draft.UID,
	}
}

// =============================================================================
// TRANSACTION WRAPPER
// =============================================================================

// inTx runs fn atomically when the store supports it and retries a bounded
// number of times on optimistic conflicts.
func (r *Reconciler) inTx(ctx context.Context, fn func(tx docstore.Store) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = docstore.InTransaction(ctx, r.store, fn)
		if !IsRetryable(err) {
			return err
		}
	}
	return err
}
