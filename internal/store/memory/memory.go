// Package memory is an in-process ledger backend used for development and
// tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finwise/internal/core"
	"finwise/internal/store"
)

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	cats map[string][]core.Category
	txs  map[string][]core.Transaction
	now  func() time.Time
}

var (
	_ store.Ledger     = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
)

func New() *Store {
	return &Store{
		cats: make(map[string][]core.Category),
		txs:  make(map[string][]core.Transaction),
		now:  time.Now,
	}
}

// NewFromFiles seeds userID's categories from base/seed_categories.txt.
// Each line is "name,kind"; blank lines and # comments are skipped. A
// missing or empty file yields a small default set.
func NewFromFiles(base, userID string) *Store {
	seed := readSeed(filepath.Join(base, "seed_categories.txt"))
	if len(seed) == 0 {
		seed = []core.NewCategory{
			{Name: "Salary", Kind: core.Income},
			{Name: "Groceries", Kind: core.Expense},
			{Name: "Rent", Kind: core.Expense},
		}
	}
	s := New()
	for _, c := range seed {
		// Invalid or duplicate seed lines are skipped one by one.
		_, _ = s.CreateCategories(context.Background(), userID, []core.NewCategory{c})
	}
	return s
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Category(nil), s.cats[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return core.NameKey(out[i].Name) < core.NameKey(out[j].Name) })
	return out, nil
}

// CreateCategories is all-or-nothing: one invalid or duplicate name rejects
// the whole batch.
func (s *Store) CreateCategories(_ context.Context, userID string, cats []core.NewCategory) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]struct{}, len(s.cats[userID])+len(cats))
	for _, c := range s.cats[userID] {
		taken[core.NameKey(c.Name)] = struct{}{}
	}
	created := make([]core.Category, 0, len(cats))
	for _, nc := range cats {
		if err := nc.Validate(); err != nil {
			return nil, fmt.Errorf("category %q: %w", nc.Name, err)
		}
		key := core.NameKey(nc.Name)
		if _, ok := taken[key]; ok {
			return nil, fmt.Errorf("category %q: %w", nc.Name, store.ErrDuplicateCategory)
		}
		taken[key] = struct{}{}
		created = append(created, core.Category{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      strings.TrimSpace(nc.Name),
			Kind:      nc.Kind,
			CreatedAt: s.now(),
		})
	}
	s.cats[userID] = append(s.cats[userID], created...)
	return append([]core.Category(nil), created...), nil
}

func (s *Store) UpdateCategory(_ context.Context, userID string, c core.Category) (core.Category, error) {
	if err := (core.NewCategory{Name: c.Name, Kind: c.Kind}).Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, existing := range s.cats[userID] {
		if existing.ID == c.ID {
			idx = i
			continue
		}
		if core.NameKey(existing.Name) == core.NameKey(c.Name) {
			return core.Category{}, store.ErrDuplicateCategory
		}
	}
	if idx < 0 {
		return core.Category{}, store.ErrNotFound
	}
	updated := s.cats[userID][idx]
	updated.Name = strings.TrimSpace(c.Name)
	updated.Kind = c.Kind
	s.cats[userID][idx] = updated
	return updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats := s.cats[userID]
	for i, c := range cats {
		if c.ID == id {
			s.cats[userID] = append(cats[:i:i], cats[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) CountByCategory(_ context.Context, userID, categoryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.txs[userID] {
		if t.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// ListTransactions returns the newest date first.
func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Transaction(nil), s.txs[userID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// InsertTransactions is all-or-nothing. Every transaction must reference an
// existing category of the user.
func (s *Store) InsertTransactions(_ context.Context, userID string, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepared := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		p, err := s.prepare(userID, t)
		if err != nil {
			return err
		}
		prepared = append(prepared, p)
	}
	s.txs[userID] = append(s.txs[userID], prepared...)
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.prepare(userID, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.txs[userID] = append(s.txs[userID], p)
	return p, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.txs[userID] {
		if existing.ID != t.ID {
			continue
		}
		if !s.hasCategory(userID, t.CategoryID) {
			return core.Transaction{}, fmt.Errorf("category %s: %w", t.CategoryID, store.ErrNotFound)
		}
		t.UserID = userID
		t.CreatedAt = existing.CreatedAt
		s.txs[userID][i] = t
		return t, nil
	}
	return core.Transaction{}, store.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := s.txs[userID]
	for i, t := range txs {
		if t.ID == id {
			s.txs[userID] = append(txs[:i:i], txs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// WithinTx runs fn and, if it fails, restores the users fn wrote to. Only
// one unit of work runs at a time; writes made outside it are kept.
func (s *Store) WithinTx(_ context.Context, fn func(store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	view := &txView{Store: s, saved: make(map[string]userState)}
	if err := fn(view); err != nil {
		view.rollback()
		return err
	}
	return nil
}

type userState struct {
	cats []core.Category
	txs  []core.Transaction
}

// txView is the Store handed to a unit of work. It saves a user's slices
// before the first write to them.
type txView struct {
	*Store
	saved map[string]userState
}

func (v *txView) touch(userID string) {
	if _, ok := v.saved[userID]; ok {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.saved[userID] = userState{
		cats: append([]core.Category(nil), v.cats[userID]...),
		txs:  append([]core.Transaction(nil), v.txs[userID]...),
	}
}

func (v *txView) rollback() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for userID, st := range v.saved {
		v.cats[userID] = st.cats
		v.txs[userID] = st.txs
	}
}

func (v *txView) CreateCategories(ctx context.Context, userID string, cats []core.NewCategory) ([]core.Category, error) {
	v.touch(userID)
	return v.Store.CreateCategories(ctx, userID, cats)
}

func (v *txView) UpdateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	v.touch(userID)
	return v.Store.UpdateCategory(ctx, userID, c)
}

func (v *txView) DeleteCategory(ctx context.Context, userID, id string) error {
	v.touch(userID)
	return v.Store.DeleteCategory(ctx, userID, id)
}

func (v *txView) InsertTransactions(ctx context.Context, userID string, txs []core.Transaction) error {
	v.touch(userID)
	return v.Store.InsertTransactions(ctx, userID, txs)
}

func (v *txView) InsertTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	v.touch(userID)
	return v.Store.InsertTransaction(ctx, userID, t)
}

func (v *txView) UpdateTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	v.touch(userID)
	return v.Store.UpdateTransaction(ctx, userID, t)
}

func (v *txView) DeleteTransaction(ctx context.Context, userID, id string) error {
	v.touch(userID)
	return v.Store.DeleteTransaction(ctx, userID, id)
}

// prepare assigns identity fields. Callers hold mu.
func (s *Store) prepare(userID string, t core.Transaction) (core.Transaction, error) {
	if !t.Kind.Valid() {
		return core.Transaction{}, core.ErrInvalidKind
	}
	if !s.hasCategory(userID, t.CategoryID) {
		return core.Transaction{}, fmt.Errorf("category %s: %w", t.CategoryID, store.ErrNotFound)
	}
	t.ID = uuid.NewString()
	t.UserID = userID
	t.CreatedAt = s.now()
	return t, nil
}

func (s *Store) hasCategory(userID, id string) bool {
	for _, c := range s.cats[userID] {
		if c.ID == id {
			return true
		}
	}
	return false
}

func readSeed(path string) []core.NewCategory {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []core.NewCategory
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, kind, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		k, err := core.ParseKind(kind)
		if err != nil {
			continue
		}
		out = append(out, core.NewCategory{Name: strings.TrimSpace(name), Kind: k})
	}
	return out
}
