/*
stats.go - Income/expense aggregation for the home-screen charts

PURPOSE:
  Buckets a user's transactions into the three windows the application
  charts: the last 7 days, the last 12 months, and every year since the
  user's first transaction. Only the numeric series is produced here;
  rendering, colors, and label styling are the UI's problem.
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Bucket is one chart bar pair: total income and expenses for a label.
type Bucket struct {
	Label   string
	Income  Amount
	Expense Amount
}

// Stats aggregates a user's transactions into chartable series.
type Stats struct {
	transactions *Transactions

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time
}

func NewStats(transactions *Transactions) *Stats {
	return &Stats{transactions: transactions, Now: time.Now}
}

// Weekly returns one bucket per day for the last 7 days, oldest first.
func (s *Stats) Weekly(ctx context.Context, uid string) ([]Bucket, error) {
	now := s.Now().UTC()
	start := truncateDay(now).AddDate(0, 0, -6)

	txs, err := s.transactions.ByOwnerInRange(ctx, uid, start, now)
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 7)
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		buckets[i] = Bucket{Label: day.Format("Mon")}
		index[key] = i
	}

	for _, tx := range txs {
		i, ok := index[tx.Date.UTC().Format("2006-01-02")]
		if !ok {
			continue
		}
		addToBucket(&buckets[i], tx)
	}
	return buckets, nil
}

// Monthly returns one bucket per month for the last 12 months, oldest first.
func (s *Stats) Monthly(ctx context.Context, uid string) ([]Bucket, error) {
	now := s.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)

	txs, err := s.transactions.ByOwnerInRange(ctx, uid, start, now)
	if err != nil {
		return nil, err
	}

	buckets := make([]Bucket, 12)
	index := make(map[string]int, 12)
	for i := 0; i < 12; i++ {
		month := start.AddDate(0, i, 0)
		key := month.Format("2006-01")
		buckets[i] = Bucket{Label: month.Format("Jan 06")}
		index[key] = i
	}

	for _, tx := range txs {
		i, ok := index[tx.Date.UTC().Format("2006-01")]
		if !ok {
			continue
		}
		addToBucket(&buckets[i], tx)
	}
	return buckets, nil
}

// Yearly returns one bucket per year from the user's first transaction to
// the current year, oldest first.
func (s *Stats) Yearly(ctx context.Context, uid string) ([]Bucket, error) {
	txs, err := s.transactions.ByOwner(ctx, uid)
	if err != nil {
		return nil, err
	}

	currentYear := s.Now().UTC().Year()
	firstYear := currentYear
	for _, tx := range txs {
		if y := tx.Date.UTC().Year(); y < firstYear {
			firstYear = y
		}
	}

	buckets := make([]Bucket, 0, currentYear-firstYear+1)
	index := make(map[int]int)
	for y := firstYear; y <= currentYear; y++ {
		index[y] = len(buckets)
		buckets = append(buckets, Bucket{Label: fmt.Sprintf("%d", y)})
	}

	for _, tx := range txs {
		i, ok := index[tx.Date.UTC().Year()]
		if !ok {
			continue
		}
		addToBucket(&buckets[i], tx)
	}
	return buckets, nil
}

func addToBucket(b *Bucket, tx Transaction) {
	if tx.Type == Income {
		b.Income = b.Income.Add(tx.Amount)
	} else {
		b.Expense = b.Expense.Add(tx.Amount)
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
