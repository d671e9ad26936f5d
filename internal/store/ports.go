// Package store declares the persistence ports consumed by the ledger engine.
package store

import (
	"context"
	"errors"

	"finwise/internal/core"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateCategory = errors.New("category name already exists")
)

// Ports for outbound adapters.
type (
	CategoryStore interface {
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)
		// CreateCategories persists all categories or none and returns them
		// with ids assigned, in input order.
		CreateCategories(ctx context.Context, userID string, cats []core.NewCategory) ([]core.Category, error)
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		// InsertTransactions is a bulk insert: all rows or none.
		InsertTransactions(ctx context.Context, userID string, txs []core.Transaction) error
		InsertTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error)
	}

	Store interface {
		CategoryStore
		TransactionStore
	}

	// Transactor is implemented by stores that can run several calls as one
	// atomic unit. fn receives a Store bound to the unit of work.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(Store) error) error
	}

	// CategoryEditor covers explicit category maintenance.
	CategoryEditor interface {
		UpdateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, userID, id string) error
		CountByCategory(ctx context.Context, userID, categoryID string) (int, error)
	}

	// TransactionEditor covers explicit transaction maintenance.
	TransactionEditor interface {
		UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	// Ledger is the full set of operations a backend offers.
	Ledger interface {
		Store
		CategoryEditor
		TransactionEditor
	}
)
