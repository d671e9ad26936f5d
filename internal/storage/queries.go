package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row models. Amounts and timestamps are stored as text.
type (
	Category struct {
		ID        string
		UserID    string
		Name      string
		NameKey   string
		Kind      string
		CreatedAt string
	}

	Transaction struct {
		ID          string
		UserID      string
		Kind        string
		Amount      string
		Description string
		CategoryID  string
		Date        string
		CreatedAt   string
	}
)

const listCategories = `SELECT id, user_id, name, name_key, kind, created_at
FROM categories WHERE user_id = ? ORDER BY name_key`

func (q *Queries) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.NameKey, &c.Kind, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const getCategoryKind = `SELECT kind FROM categories WHERE user_id = ? AND id = ?`

func (q *Queries) GetCategoryKind(ctx context.Context, userID, id string) (string, error) {
	var kind string
	err := q.db.QueryRowContext(ctx, getCategoryKind, userID, id).Scan(&kind)
	return kind, err
}

const createCategory = `INSERT INTO categories (id, user_id, name, name_key, kind, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, c Category) error {
	_, err := q.db.ExecContext(ctx, createCategory, c.ID, c.UserID, c.Name, c.NameKey, c.Kind, c.CreatedAt)
	return err
}

const updateCategory = `UPDATE categories SET name = ?, name_key = ?, kind = ?
WHERE user_id = ? AND id = ?`

func (q *Queries) UpdateCategory(ctx context.Context, c Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, c.Name, c.NameKey, c.Kind, c.UserID, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE user_id = ? AND id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countTransactionsByCategory = `SELECT COUNT(*) FROM transactions WHERE user_id = ? AND category_id = ?`

func (q *Queries) CountTransactionsByCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactionsByCategory, userID, categoryID).Scan(&n)
	return n, err
}

const listTransactions = `SELECT id, user_id, kind, amount, description, category_id, date, created_at
FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`

func (q *Queries) ListTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Description, &t.CategoryID, &t.Date, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTransaction = `SELECT id, user_id, kind, amount, description, category_id, date, created_at
FROM transactions WHERE user_id = ? AND id = ?`

func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (Transaction, error) {
	var t Transaction
	err := q.db.QueryRowContext(ctx, getTransaction, userID, id).
		Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Description, &t.CategoryID, &t.Date, &t.CreatedAt)
	return t, err
}

const createTransaction = `INSERT INTO transactions (id, user_id, kind, amount, description, category_id, date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction, t.ID, t.UserID, t.Kind, t.Amount, t.Description, t.CategoryID, t.Date, t.CreatedAt)
	return err
}

const updateTransaction = `UPDATE transactions SET kind = ?, amount = ?, description = ?, category_id = ?, date = ?
WHERE user_id = ? AND id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction, t.Kind, t.Amount, t.Description, t.CategoryID, t.Date, t.UserID, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE user_id = ? AND id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, userID, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
