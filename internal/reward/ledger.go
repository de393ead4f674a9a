package reward

import "github.com/shopspring/decimal"

// Ledger converts click events into balance deltas.
type Ledger struct {
	Reward decimal.Decimal
}

// NewLedger returns a ledger paying ClickReward per click.
func NewLedger() *Ledger {
	return &Ledger{Reward: ClickReward}
}

// ApplyClick computes the balance and click count after one click on the
// given snapshot. It does not persist anything.
func (l *Ledger) ApplyClick(a Account) (decimal.Decimal, int64) {
	return a.Balance.Add(l.Reward), a.TotalClicks + 1
}

// Mutation returns the store mutation writing ApplyClick(snapshot). It must
// be paired with snapshot.Version so that it never overwrites a newer record.
func (l *Ledger) Mutation(snapshot Account) Mutation {
	balance, clicks := l.ApplyClick(snapshot)
	return func(a *Account) error {
		a.Balance = balance
		a.TotalClicks = clicks
		return nil
	}
}
