package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"finwise/internal/core"
)

// Build turns rows into transactions for userID. Rows are independent: each
// failing row yields one RowError and is dropped. Transactions carry no id
// or creation time; the store assigns them.
func Build(userID string, rows []RawImportRow, lookup CategoryLookup) ([]core.Transaction, []RowError) {
	txs := make([]core.Transaction, 0, len(rows))
	var errs []RowError

	for _, row := range rows {
		kind, amount, rowErr := checkFields(row)
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}

		cat, ok := lookup.Find(row.Category)
		if !ok {
			reason := fmt.Sprintf("category %q could not be resolved", row.Category)
			if err := (core.NewCategory{Name: row.Category, Kind: kind}).Validate(); err != nil {
				reason = fmt.Sprintf("category %q: %v", row.Category, err)
			}
			errs = append(errs, RowError{
				Row:    row.Row,
				Code:   CategoryResolutionFailed,
				Reason: reason,
			})
			continue
		}
		if cat.Kind != kind {
			errs = append(errs, RowError{
				Row:    row.Row,
				Code:   KindMismatch,
				Reason: fmt.Sprintf("category %q is %s, row is %s", cat.Name, cat.Kind, kind),
			})
			continue
		}

		txs = append(txs, core.Transaction{
			UserID:      userID,
			Kind:        kind,
			Amount:      amount,
			Description: row.Description,
			CategoryID:  cat.ID,
			Date:        strings.TrimSpace(row.Date),
		})
	}
	return txs, errs
}

// checkFields runs the field-level checks shared by Reconcile and Build.
func checkFields(row RawImportRow) (core.Kind, decimal.Decimal, *RowError) {
	for _, f := range []struct{ name, value string }{
		{"date", row.Date},
		{"description", row.Description},
		{"category", row.Category},
		{"type", row.Kind},
		{"amount", row.Amount},
	} {
		if strings.TrimSpace(f.value) == "" {
			return "", decimal.Zero, &RowError{Row: row.Row, Code: MissingField, Reason: "missing " + f.name}
		}
	}

	kind, err := core.ParseKind(row.Kind)
	if err != nil {
		return "", decimal.Zero, &RowError{
			Row:    row.Row,
			Code:   InvalidKind,
			Reason: fmt.Sprintf("type %q must be income or expense", row.Kind),
		}
	}

	amount, err := core.ParseAmount(row.Amount)
	if err != nil {
		return "", decimal.Zero, &RowError{
			Row:    row.Row,
			Code:   InvalidAmount,
			Reason: fmt.Sprintf("amount %q is not a number", row.Amount),
		}
	}
	return kind, amount, nil
}
