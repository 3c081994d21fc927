/*
Package ledger keeps wallet aggregates consistent with the transaction log.

PURPOSE:
  This package contains the domain types and the reconciliation engine for
  the personal-finance core: wallets are money pools carrying a running
  amount plus cumulative income/expense totals, and transactions are the
  income/expense events that move those aggregates.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity backed by decimal.Decimal
  - Wallet: A money pool with persisted running aggregates
  - Transaction: A single income or expense event referencing one wallet

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Non-negative storage: Transactions store positive amounts only;
     signed deltas exist only inside the reconciler
  3. Single mutation path: Aggregate fields change only through the
     Reconciler, never through direct wallet edits

INVARIANT:
  wallet.amount == sum(income transactions) - sum(expense transactions)
  over all transactions referencing the wallet, after every successful
  reconciliation. The amount is never negative as an observable post-state.

SEE ALSO:
  - reconciler.go: Create/update/delete reconciliation
  - cascade.go: Wallet deletion with dependent-transaction cleanup
  - wallets.go, transactions.go: Typed accessors over the document store
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/finvault/wallet-engine/docstore"
)

// Collection names in the document store.
const (
	CollectionUsers        = "users"
	CollectionWallets      = "wallets"
	CollectionTransactions = "transactions"
)

// =============================================================================
// AMOUNT - Monetary quantity
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

func NewAmountFromInt(value int) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value))}
}

func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d}, nil
}

func (a Amount) Add(b Amount) Amount      { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount      { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount              { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsNegative() bool         { return a.Value.IsNegative() }
func (a Amount) IsZero() bool             { return a.Value.IsZero() }
func (a Amount) IsPositive() bool         { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool      { return a.Value.Equal(b.Value) }
func (a Amount) LessThan(b Amount) bool   { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) String() string           { return a.Value.String() }

// =============================================================================
// WALLET - Money pool with running aggregates
// =============================================================================

type Wallet struct {
	ID            string
	Name          string
	Icon          string // opaque image URL
	Amount        Amount
	TotalIncome   Amount
	TotalExpenses Amount
	Created       time.Time
	UID           string // owner
}

// WalletDraft is the caller-supplied part of a wallet. Aggregates are zeroed
// by the accessor on create and never settable from outside the reconciler.
type WalletDraft struct {
	Name string
	Icon string
	UID  string
}

// =============================================================================
// TRANSACTION - Income or expense event
// =============================================================================

type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

func (t TransactionType) Valid() bool { return t == Income || t == Expense }

type Transaction struct {
	ID          string
	Type        TransactionType
	Amount      Amount // strictly positive
	Description string
	Category    string // required iff Type == Expense
	Date        time.Time
	WalletID    string
	Image       string // opaque receipt URL, optional
	UID         string // owner
}

// TransactionDraft carries the mutable fields of a transaction for create and
// update operations.
type TransactionDraft struct {
	Type        TransactionType
	Amount      Amount
	Description string
	Category    string
	Date        time.Time
	WalletID    string
	Image       string
	UID         string
}

// =============================================================================
// DOCUMENT CODECS
// =============================================================================
// Documents round-trip through JSON in some backends, so readers accept both
// native and post-JSON representations (time.Time vs RFC3339 string).

func (w Wallet) doc() docstore.Doc {
	return docstore.Doc{
		"name":          w.Name,
		"icon":          w.Icon,
		"amount":        w.Amount.String(),
		"totalIncome":   w.TotalIncome.String(),
		"totalExpenses": w.TotalExpenses.String(),
		"created":       w.Created,
		"uid":           w.UID,
	}
}

func walletFromDoc(id string, doc docstore.Doc) Wallet {
	return Wallet{
		ID:            id,
		Name:          docString(doc, "name"),
		Icon:          docString(doc, "icon"),
		Amount:        docAmount(doc, "amount"),
		TotalIncome:   docAmount(doc, "totalIncome"),
		TotalExpenses: docAmount(doc, "totalExpenses"),
		Created:       docTime(doc, "created"),
		UID:           docString(doc, "uid"),
	}
}

func (t Transaction) doc() docstore.Doc {
	return TransactionDraft{
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		Category:    t.Category,
		Date:        t.Date,
		WalletID:    t.WalletID,
		Image:       t.Image,
		UID:         t.UID,
	}.doc()
}

func (d TransactionDraft) doc() docstore.Doc {
	return docstore.Doc{
		"type":        string(d.Type),
		"amount":      d.Amount.String(),
		"description": d.Description,
		"category":    d.Category,
		"date":        d.Date,
		"walletId":    d.WalletID,
		"image":       d.Image,
		"uid":         d.UID,
	}
}

func transactionFromDoc(id string, doc docstore.Doc) Transaction {
	return Transaction{
		ID:          id,
		Type:        TransactionType(docString(doc, "type")),
		Amount:      docAmount(doc, "amount"),
		Description: docString(doc, "description"),
		Category:    docString(doc, "category"),
		Date:        docTime(doc, "date"),
		WalletID:    docString(doc, "walletId"),
		Image:       docString(doc, "image"),
		UID:         docString(doc, "uid"),
	}
}

func docString(doc docstore.Doc, field string) string {
	s, _ := doc[field].(string)
	return s
}

func docTime(doc docstore.Doc, field string) time.Time {
	switch v := doc[field].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

func docAmount(doc docstore.Doc, field string) Amount {
	switch v := doc[field].(type) {
	case string:
		a, err := ParseAmount(v)
		if err == nil {
			return a
		}
	case float64:
		return NewAmount(v)
	case int64:
		return Amount{Value: decimal.NewFromInt(v)}
	}
	return Amount{}
}
