package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

// DateLayout is the calendar date format used for transactions.
const DateLayout = "2006-01-02"

type (
	// Kind classifies categories and transactions.
	Kind string

	Category struct {
		ID        string
		UserID    string
		Name      string
		Kind      Kind
		CreatedAt time.Time
	}

	// NewCategory is a category staged for creation; the store assigns the id.
	NewCategory struct {
		Name string
		Kind Kind
	}

	Transaction struct {
		ID          string
		UserID      string
		Kind        Kind
		Amount      decimal.Decimal
		Description string
		CategoryID  string
		Date        string // YYYY-MM-DD
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidKind      = errors.New("invalid kind")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyCategory    = errors.New("category is required")
	ErrEmptyName        = errors.New("category name is required")
	ErrKindMismatch     = errors.New("category kind does not match transaction kind")
	ErrNameTooLong      = errors.New("category name too long (max 100 characters)")
	ErrDescriptionLong  = errors.New("description too long (max 500 characters)")
	ErrCategoryNotFound = errors.New("category not found")
)

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Income, Expense:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (k Kind) String() string {
	return string(k)
}

// NameKey is the case-insensitive identity of a category name.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func (c NewCategory) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

// Validate enforces the rules of the transaction editor. The import path
// deliberately does not call it: imported amounts are not checked for sign.
func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := CheckAmount(t.Amount); err != nil {
		return err
	}
	if _, err := ParseDate(t.Date); err != nil {
		return err
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > 500 {
		return ErrDescriptionLong
	}
	return nil
}

// CheckCategory verifies the transaction may reference c.
func (t Transaction) CheckCategory(c Category) error {
	if c.ID != t.CategoryID {
		return ErrCategoryNotFound
	}
	if c.Kind != t.Kind {
		return ErrKindMismatch
	}
	return nil
}

// Signed returns the amount as it affects the balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}
