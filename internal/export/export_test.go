package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finwise/internal/core"
	"finwise/internal/importer"
)

func TestFilename(t *testing.T) {
	now := time.Date(2025, 9, 26, 23, 59, 0, 0, time.UTC)
	if got := Filename(now); got != "transactions_2025-09-26.csv" {
		t.Fatalf("Filename() = %q", got)
	}
}

func TestWrite(t *testing.T) {
	cats := []core.Category{
		{ID: "c1", Name: "Salary", Kind: core.Income},
		{ID: "c2", Name: "Food, drinks", Kind: core.Expense},
	}
	txs := []core.Transaction{
		{Kind: core.Income, Amount: decimal.RequireFromString("5000"), Description: "September salary", CategoryID: "c1", Date: "2025-09-01"},
		{Kind: core.Expense, Amount: decimal.RequireFromString("12.50"), Description: `Pizza "Margherita"`, CategoryID: "c2", Date: "2025-09-20"},
		{Kind: core.Expense, Amount: decimal.RequireFromString("3"), Description: "", CategoryID: "gone", Date: "2025-09-10"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, txs, cats); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := strings.Join([]string{
		"date,description,category,type,amount",
		`2025-09-20,"Pizza ""Margherita""","Food, drinks",expense,12.5`,
		`2025-09-10,"",Uncategorized,expense,3`,
		`2025-09-01,"September salary",Salary,income,5000`,
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("Write() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.String() != importer.Header+"\n" {
		t.Fatalf("expected header only, got %q", buf.String())
	}
}

func TestExportImportsBack(t *testing.T) {
	cats := []core.Category{{ID: "c1", Name: "Rent", Kind: core.Expense}}
	txs := []core.Transaction{
		{Kind: core.Expense, Amount: decimal.RequireFromString("1200"), Description: `Flat, "north" side`, CategoryID: "c1", Date: "2025-09-05"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, txs, cats); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	rows, rowErrs, err := importer.Parse(buf.String())
	if err != nil || len(rowErrs) != 0 || len(rows) != 1 {
		t.Fatalf("Parse() rows=%+v errs=%+v err=%v", rows, rowErrs, err)
	}
	r := rows[0]
	if r.Description != `Flat, "north" side` || r.Category != "Rent" || r.Kind != "expense" || r.Amount != "1200" {
		t.Fatalf("round trip changed the row: %+v", r)
	}
}

func TestWriteFlattensLineBreaks(t *testing.T) {
	cats := []core.Category{{ID: "c1", Name: "Home\nOffice", Kind: core.Expense}}
	txs := []core.Transaction{
		{Kind: core.Expense, Amount: decimal.RequireFromString("9.99"), Description: "Paper\r\nand ink", CategoryID: "c1", Date: "2025-09-06"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, txs, cats); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(buf.String()), "\n"); len(lines) != 2 {
		t.Fatalf("expected header plus one record, got %q", buf.String())
	}

	rows, rowErrs, err := importer.Parse(buf.String())
	if err != nil || len(rowErrs) != 0 || len(rows) != 1 {
		t.Fatalf("Parse() rows=%+v errs=%+v err=%v", rows, rowErrs, err)
	}
	if rows[0].Description != "Paper and ink" || rows[0].Category != "Home Office" || rows[0].Amount != "9.99" {
		t.Fatalf("unexpected row: %+v", rows[0])
	}
}
