package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/wallet-engine/ledger"
)

func TestCascade_DeleteWallet_RemovesDependentTransactions(t *testing.T) {
	// GIVEN: A wallet with three transactions and an unrelated wallet
	// WHEN: Cascade-deleting the wallet
	// THEN: The wallet and all three transactions are gone; the other
	//       wallet and its history are untouched

	f := newFixture(t)
	ctx := context.Background()

	victim := f.newWallet(t, "victim")
	f.fundWallet(t, victim.ID, 100)
	_, err := f.reconciler.Create(ctx, f.expense(10, victim.ID))
	require.NoError(t, err)
	_, err = f.reconciler.Create(ctx, f.expense(5, victim.ID))
	require.NoError(t, err)

	bystander := f.newWallet(t, "bystander")
	kept := f.fundWallet(t, bystander.ID, 40)

	cascade := ledger.NewCascade(f.store)
	require.NoError(t, cascade.DeleteWallet(ctx, victim.ID))

	_, err = f.wallets.Get(ctx, victim.ID)
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)

	orphans, err := f.transactions.ByWallet(ctx, victim.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, orphans, "no transaction may remain reachable by wallet id")

	// Bystander untouched.
	_, err = f.transactions.Get(ctx, kept.ID)
	assert.NoError(t, err)
	amountEqual(t, 40, f.walletState(t, bystander.ID).Amount)
}

func TestCascade_DeleteWallet_MultipleBatches(t *testing.T) {
	// A batch size smaller than the transaction count forces several
	// query-then-delete rounds.

	f := newFixture(t)
	ctx := context.Background()

	w := f.newWallet(t, "busy")
	f.fundWallet(t, w.ID, 1000)
	for i := 0; i < 6; i++ {
		_, err := f.reconciler.Create(ctx, f.expense(1, w.ID))
		require.NoError(t, err)
	}

	cascade := ledger.NewCascade(f.store)
	cascade.BatchSize = 2
	require.NoError(t, cascade.DeleteWallet(ctx, w.ID))

	orphans, err := f.transactions.ByWallet(ctx, w.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestCascade_DeleteWallet_NotFound(t *testing.T) {
	f := newFixture(t)

	err := ledger.NewCascade(f.store).DeleteWallet(context.Background(), "nope")

	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestCascade_DeleteWallet_NoTransactions(t *testing.T) {
	f := newFixture(t)
	w := f.newWallet(t, "empty")

	err := ledger.NewCascade(f.store).DeleteWallet(context.Background(), w.ID)

	require.NoError(t, err)
	_, err = f.wallets.Get(context.Background(), w.ID)
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}
