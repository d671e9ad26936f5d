package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LedgerSummary holds aggregate balances derived from one ledger snapshot.
type LedgerSummary struct {
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	// ByCategory sums amounts per category id. Every known category is
	// present, including those without transactions.
	ByCategory map[string]decimal.Decimal
}

// CategoryTotal returns the total for id and whether the category is known.
func (s LedgerSummary) CategoryTotal(id string) (decimal.Decimal, bool) {
	v, ok := s.ByCategory[id]
	return v, ok
}

// Equal reports whether two summaries carry the same values.
func (s LedgerSummary) Equal(o LedgerSummary) bool {
	if !s.TotalIncome.Equal(o.TotalIncome) || !s.TotalExpense.Equal(o.TotalExpense) || !s.Balance.Equal(o.Balance) {
		return false
	}
	if len(s.ByCategory) != len(o.ByCategory) {
		return false
	}
	for id, v := range s.ByCategory {
		w, ok := o.ByCategory[id]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Summarize computes totals over transactions in a single pass.
//
// Transactions pointing at an unknown category still count towards the
// global totals but not towards ByCategory. The result depends only on the
// arguments.
func Summarize(transactions []Transaction, categories []Category) LedgerSummary {
	s := LedgerSummary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		Balance:      decimal.Zero,
		ByCategory:   make(map[string]decimal.Decimal, len(categories)),
	}
	for _, c := range categories {
		s.ByCategory[c.ID] = decimal.Zero
	}

	for _, t := range transactions {
		switch t.Kind {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			s.Balance = s.Balance.Add(t.Amount)
		case Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
			s.Balance = s.Balance.Sub(t.Amount)
		default:
			continue
		}
		if total, ok := s.ByCategory[t.CategoryID]; ok {
			s.ByCategory[t.CategoryID] = total.Add(t.Amount)
		}
	}
	return s
}

// Filter selects transactions by kind (empty means all) and a
// case-insensitive search over description and category name.
func Filter(transactions []Transaction, categories []Category, kind Kind, search string) []Transaction {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = strings.ToLower(c.Name)
	}
	needle := strings.ToLower(strings.TrimSpace(search))

	out := make([]Transaction, 0, len(transactions))
	for _, t := range transactions {
		if kind != "" && t.Kind != kind {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(t.Description), needle) &&
			!strings.Contains(names[t.CategoryID], needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}
