package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finwise/internal/core"
	applog "finwise/internal/log"
	"finwise/internal/store"

	_ "modernc.org/sqlite"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	// inTx is set on repositories bound to an open transaction.
	inTx bool
	now  func() time.Time
}

var (
	_ store.Ledger     = (*SQLiteRepository)(nil)
	_ store.Transactor = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations first; they use their own connection.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps pragmas consistent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil && !r.inTx {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithinTx runs fn inside one database transaction. fn's error triggers a
// rollback and is returned unchanged.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(store.Store) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	bound := &SQLiteRepository{db: r.db, queries: r.queries.WithTx(tx), inTx: true, now: r.now}
	if err := fn(bound); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			applog.FromContext(ctx).WithComponent(applog.ComponentStorage).WarnContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// atomic runs fn with queries bound to a transaction, reusing the current
// one when there is one.
func (r *SQLiteRepository) atomic(ctx context.Context, fn func(*Queries) error) error {
	if r.inTx {
		return fn(r.queries)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCoreCategory(row))
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategories(ctx context.Context, userID string, cats []core.NewCategory) ([]core.Category, error) {
	created := make([]core.Category, 0, len(cats))
	err := r.atomic(ctx, func(q *Queries) error {
		for _, nc := range cats {
			if err := nc.Validate(); err != nil {
				return fmt.Errorf("category %q: %w", nc.Name, err)
			}
			c := core.Category{
				ID:        uuid.NewString(),
				UserID:    userID,
				Name:      strings.TrimSpace(nc.Name),
				Kind:      nc.Kind,
				CreatedAt: r.now().UTC(),
			}
			if err := q.CreateCategory(ctx, fromCoreCategory(c)); err != nil {
				return fmt.Errorf("create category %q: %w", nc.Name, mapConstraint(err))
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentStorage).DebugContext(ctx, "Categories saved to SQLite", applog.FieldUserID, userID, "count", len(created))
	return created, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	if err := (core.NewCategory{Name: c.Name, Kind: c.Kind}).Validate(); err != nil {
		return core.Category{}, err
	}
	c.UserID = userID
	c.Name = strings.TrimSpace(c.Name)
	n, err := r.queries.UpdateCategory(ctx, fromCoreCategory(c))
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", mapConstraint(err))
	}
	if n == 0 {
		return core.Category{}, store.ErrNotFound
	}
	cats, err := r.ListCategories(ctx, userID)
	if err != nil {
		return core.Category{}, err
	}
	for _, existing := range cats {
		if existing.ID == c.ID {
			return existing, nil
		}
	}
	return core.Category{}, store.ErrNotFound
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteCategory(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", mapConstraint(err))
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountByCategory(ctx context.Context, userID, categoryID string) (int, error) {
	n, err := r.queries.CountTransactionsByCategory(ctx, userID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toCoreTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertTransactions(ctx context.Context, userID string, txs []core.Transaction) error {
	err := r.atomic(ctx, func(q *Queries) error {
		for _, t := range txs {
			if _, err := r.insert(ctx, q, userID, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentStorage).DebugContext(ctx, "Transactions saved to SQLite", applog.FieldUserID, userID, "count", len(txs))
	return nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	return r.insert(ctx, r.queries, userID, t)
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	if err := r.checkCategory(ctx, r.queries, userID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	t.UserID = userID
	n, err := r.queries.UpdateTransaction(ctx, fromCoreTransaction(t))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", mapConstraint(err))
	}
	if n == 0 {
		return core.Transaction{}, store.ErrNotFound
	}
	row, err := r.queries.GetTransaction(ctx, userID, t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toCoreTransaction(row)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) insert(ctx context.Context, q *Queries, userID string, t core.Transaction) (core.Transaction, error) {
	if !t.Kind.Valid() {
		return core.Transaction{}, core.ErrInvalidKind
	}
	if err := r.checkCategory(ctx, q, userID, t.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	t.ID = uuid.NewString()
	t.UserID = userID
	t.CreatedAt = r.now().UTC()
	if err := q.CreateTransaction(ctx, fromCoreTransaction(t)); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", mapConstraint(err))
	}
	return t, nil
}

// checkCategory verifies the category exists and belongs to userID.
func (r *SQLiteRepository) checkCategory(ctx context.Context, q *Queries, userID, id string) error {
	if _, err := q.GetCategoryKind(ctx, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("category %s: %w", id, store.ErrNotFound)
		}
		return fmt.Errorf("get category: %w", err)
	}
	return nil
}

// mapConstraint translates SQLite constraint failures into store errors.
func mapConstraint(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrDuplicateCategory, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	default:
		return err
	}
}

func toCoreCategory(row Category) core.Category {
	created, _ := time.Parse(timeLayout, row.CreatedAt)
	return core.Category{
		ID:        row.ID,
		UserID:    row.UserID,
		Name:      row.Name,
		Kind:      core.Kind(row.Kind),
		CreatedAt: created,
	}
}

func fromCoreCategory(c core.Category) Category {
	return Category{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		NameKey:   core.NameKey(c.Name),
		Kind:      string(c.Kind),
		CreatedAt: c.CreatedAt.UTC().Format(timeLayout),
	}
}

func toCoreTransaction(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: bad amount %q: %w", row.ID, row.Amount, err)
	}
	created, _ := time.Parse(timeLayout, row.CreatedAt)
	return core.Transaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Kind:        core.Kind(row.Kind),
		Amount:      amount,
		Description: row.Description,
		CategoryID:  row.CategoryID,
		Date:        row.Date,
		CreatedAt:   created,
	}, nil
}

func fromCoreTransaction(t core.Transaction) Transaction {
	return Transaction{
		ID:          t.ID,
		UserID:      t.UserID,
		Kind:        string(t.Kind),
		Amount:      t.Amount.String(),
		Description: t.Description,
		CategoryID:  t.CategoryID,
		Date:        t.Date,
		CreatedAt:   t.CreatedAt.UTC().Format(timeLayout),
	}
}
