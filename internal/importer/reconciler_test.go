package importer

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"finwise/internal/core"
)

func row(n int, cat, kind, amount string) RawImportRow {
	return RawImportRow{Row: n, Date: "2025-09-24", Description: "d", Category: cat, Kind: kind, Amount: amount}
}

func TestReconcileReusesExisting(t *testing.T) {
	existing := []core.Category{{ID: "c1", Name: "Salary", Kind: core.Income}}
	rows := []RawImportRow{
		row(2, "salary", "income", "10"),
		row(3, "Bonus", "income", "5"),
		row(4, "BONUS", "income", "5"),
	}
	r := Reconcile(rows, existing)
	if len(r.Staged) != 1 || r.Staged[0].Name != "Bonus" || r.Staged[0].Kind != core.Income {
		t.Fatalf("expected exactly Bonus staged, got %+v", r.Staged)
	}
	if c, ok := r.Lookup.Find("SALARY "); !ok || c.ID != "c1" {
		t.Fatalf("existing category not found: %+v", c)
	}
}

func TestReconcileFirstKindWins(t *testing.T) {
	rows := []RawImportRow{
		row(2, "Gifts", "expense", "10"),
		row(3, "gifts", "income", "5"),
	}
	r := Reconcile(rows, nil)
	if len(r.Staged) != 1 || r.Staged[0].Kind != core.Expense {
		t.Fatalf("expected first kind to win, got %+v", r.Staged)
	}
}

func TestReconcileSkipsUnusableRows(t *testing.T) {
	rows := []RawImportRow{
		row(2, "Ghost", "transfer", "1"),
		row(3, "Phantom", "expense", "abc"),
		row(4, "", "expense", "1"),
	}
	if r := Reconcile(rows, nil); len(r.Staged) != 0 {
		t.Fatalf("rows that cannot import must not stage categories: %+v", r.Staged)
	}
}

func TestMergeThenBuild(t *testing.T) {
	rows := []RawImportRow{
		row(2, "Salary", "income", "5000"),
		row(3, "Groceries", "expense", "75.50"),
	}
	r := Reconcile(rows, []core.Category{{ID: "s", Name: "Salary", Kind: core.Income}})
	r.Merge([]core.Category{{ID: "g", Name: "Groceries", Kind: core.Expense}})

	txs, errs := Build("u1", rows, r.Lookup)
	if len(errs) != 0 || len(txs) != 2 {
		t.Fatalf("txs=%+v errs=%+v", txs, errs)
	}
	if txs[1].CategoryID != "g" || !txs[1].Amount.Equal(decimal.RequireFromString("75.5")) || txs[1].UserID != "u1" {
		t.Fatalf("unexpected transaction: %+v", txs[1])
	}
}

func TestReconcileSkipsInvalidNames(t *testing.T) {
	rows := []RawImportRow{row(2, strings.Repeat("a", 101), "expense", "1"), row(3, "Food", "expense", "2")}
	r := Reconcile(rows, nil)
	if got := r.StagedNames(); len(got) != 1 || got[0] != "Food" {
		t.Fatalf("staged = %v", got)
	}
}
