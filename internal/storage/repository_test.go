package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"finwise/internal/core"
	"finwise/internal/store"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "finwise.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finwise.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	defer repo.Close()

	v, dirty, err := SchemaVersion(path)
	if err != nil || dirty || v != 1 {
		t.Fatalf("version=%d dirty=%v err=%v", v, dirty, err)
	}
	// Running again is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Fatalf("rerun migrations: %v", err)
	}
}

func TestCategoriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateCategories(ctx, "u1", []core.NewCategory{
		{Name: " Salary ", Kind: core.Income},
		{Name: "Groceries", Kind: core.Expense},
	})
	if err != nil || len(created) != 2 || created[0].Name != "Salary" {
		t.Fatalf("create: %+v %v", created, err)
	}

	_, err = repo.CreateCategories(ctx, "u1", []core.NewCategory{
		{Name: "Bonus", Kind: core.Income},
		{Name: "groceries", Kind: core.Expense},
	})
	if !errors.Is(err, store.ErrDuplicateCategory) {
		t.Fatalf("expected ErrDuplicateCategory, got %v", err)
	}

	cats, err := repo.ListCategories(ctx, "u1")
	if err != nil || len(cats) != 2 {
		t.Fatalf("failed batch must roll back: %+v %v", cats, err)
	}
	if cats[0].Name != "Groceries" || cats[1].Kind != core.Income {
		t.Fatalf("unexpected list: %+v", cats)
	}
}

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cats, _ := repo.CreateCategories(ctx, "u1", []core.NewCategory{{Name: "Food", Kind: core.Expense}})

	err := repo.InsertTransactions(ctx, "u1", []core.Transaction{
		{Kind: core.Expense, Amount: decimal.RequireFromString("75.50"), Description: `Milk, "fresh"`, CategoryID: cats[0].ID, Date: "2025-09-24"},
		{Kind: core.Expense, Amount: decimal.RequireFromString("0.10"), CategoryID: cats[0].ID, Date: "2025-09-25"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	txs, err := repo.ListTransactions(ctx, "u1")
	if err != nil || len(txs) != 2 {
		t.Fatalf("list: %+v %v", txs, err)
	}
	if txs[0].Date != "2025-09-25" {
		t.Fatalf("expected newest first, got %s", txs[0].Date)
	}
	if !txs[1].Amount.Equal(decimal.RequireFromString("75.5")) || txs[1].Description != `Milk, "fresh"` {
		t.Fatalf("unexpected row: %+v", txs[1])
	}

	if err := repo.InsertTransactions(ctx, "u1", []core.Transaction{
		{Kind: core.Expense, Amount: decimal.NewFromInt(1), CategoryID: cats[0].ID, Date: "2025-09-26"},
		{Kind: core.Expense, Amount: decimal.NewFromInt(1), CategoryID: "nope", Date: "2025-09-26"},
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if txs, _ := repo.ListTransactions(ctx, "u1"); len(txs) != 2 {
		t.Fatalf("bulk insert must be all-or-nothing, got %d rows", len(txs))
	}
}

func TestCategoryOwnership(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	other, _ := repo.CreateCategories(ctx, "u2", []core.NewCategory{{Name: "Food", Kind: core.Expense}})

	_, err := repo.InsertTransaction(ctx, "u1", core.Transaction{Kind: core.Expense, Amount: decimal.NewFromInt(1), CategoryID: other[0].ID, Date: "2025-01-01"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign category must not resolve, got %v", err)
	}
}

func TestWithinTxRollback(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	boom := errors.New("boom")

	err := repo.WithinTx(ctx, func(s store.Store) error {
		cats, err := s.CreateCategories(ctx, "u1", []core.NewCategory{{Name: "Gifts", Kind: core.Income}})
		if err != nil {
			return err
		}
		if err := s.InsertTransactions(ctx, "u1", []core.Transaction{{Kind: core.Income, Amount: decimal.NewFromInt(9), CategoryID: cats[0].ID, Date: "2025-01-01"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if cats, _ := repo.ListCategories(ctx, "u1"); len(cats) != 0 {
		t.Fatalf("rollback failed: %+v", cats)
	}
}

func TestEditAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	cats, _ := repo.CreateCategories(ctx, "u1", []core.NewCategory{
		{Name: "Food", Kind: core.Expense},
		{Name: "Fun", Kind: core.Expense},
	})
	tx, err := repo.InsertTransaction(ctx, "u1", core.Transaction{Kind: core.Expense, Amount: decimal.NewFromInt(4), CategoryID: cats[0].ID, Date: "2025-02-01"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	tx.CategoryID = cats[1].ID
	tx.Amount = decimal.NewFromInt(6)
	got, err := repo.UpdateTransaction(ctx, "u1", tx)
	if err != nil || got.CategoryID != cats[1].ID || !got.Amount.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("update: %+v %v", got, err)
	}

	if n, _ := repo.CountByCategory(ctx, "u1", cats[1].ID); n != 1 {
		t.Fatalf("count = %d", n)
	}
	if _, err := repo.UpdateCategory(ctx, "u1", core.Category{ID: cats[0].ID, Name: "FUN", Kind: core.Expense}); !errors.Is(err, store.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := repo.DeleteCategory(ctx, "u1", cats[0].ID); err != nil {
		t.Fatalf("delete unused category: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "u1", tx.ID); err != nil {
		t.Fatalf("delete tx: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "u1", tx.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
