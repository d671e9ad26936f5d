package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	PolicyWarn  Policy = "warn"
	PolicyBlock Policy = "block"
	PolicyAllow Policy = "allow"
)

const (
	Proceed Decision = iota
	Blocked
	ProceedWithCorrection
	// AwaitingChoice means the Warn policy needs the user to pick a Choice.
	AwaitingChoice
)

const (
	ChoiceNone Choice = ""
	// ChoiceCancel drops the pending transaction.
	ChoiceCancel Choice = "cancel"
	// ChoiceIgnore persists the pending transaction as given.
	ChoiceIgnore Choice = "ignore"
	// ChoiceCorrect persists a correction income first, then the pending one.
	ChoiceCorrect Choice = "correct"
)

// CorrectionDescription labels synthetic correction transactions.
const CorrectionDescription = "Balance correction"

type (
	// Policy configures how a negative prospective balance is handled.
	Policy string

	Decision int

	Choice string

	// Assessment is the outcome of evaluating a pending transaction.
	Assessment struct {
		Decision    Decision
		Policy      Policy
		Balance     decimal.Decimal
		Prospective decimal.Decimal
	}

	// Plan lists what the caller must persist, in order.
	Plan struct {
		Decision   Decision
		Correction *Transaction
		Pending    *Transaction
	}
)

var (
	ErrInvalidPolicy = errors.New("invalid negative balance policy")
	ErrInvalidChoice = errors.New("invalid negative balance choice")
	// ErrChoiceRequired is returned when a Warn assessment is resolved
	// without a choice.
	ErrChoiceRequired = errors.New("negative balance: a choice is required")
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyWarn, PolicyBlock, PolicyAllow:
		return p, nil
	default:
		return "", ErrInvalidPolicy
	}
}

func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceNone, ChoiceCancel, ChoiceIgnore, ChoiceCorrect:
		return c, nil
	default:
		return "", ErrInvalidChoice
	}
}

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Blocked:
		return "blocked"
	case ProceedWithCorrection:
		return "proceed_with_correction"
	case AwaitingChoice:
		return "awaiting_choice"
	default:
		return "unknown"
	}
}

// Prospective returns the balance after applying amount of the given kind.
func Prospective(balance, amount decimal.Decimal, kind Kind) decimal.Decimal {
	if kind == Income {
		return balance.Add(amount)
	}
	return balance.Sub(amount)
}

// Evaluate classifies a pending transaction against the current balance.
// A non-negative prospective balance always proceeds. An unknown policy is
// treated as Warn.
func Evaluate(balance, amount decimal.Decimal, kind Kind, policy Policy) Assessment {
	a := Assessment{
		Decision:    Proceed,
		Policy:      policy,
		Balance:     balance,
		Prospective: Prospective(balance, amount, kind),
	}
	if !a.Prospective.IsNegative() {
		return a
	}
	switch policy {
	case PolicyAllow:
		a.Decision = Proceed
	case PolicyBlock:
		a.Decision = Blocked
	default:
		a.Decision = AwaitingChoice
	}
	return a
}

// Resolve turns an assessment and the user's choice into a Plan. The choice
// only matters for AwaitingChoice. correctionCategoryID must name an income
// category when the choice is ChoiceCorrect.
func Resolve(a Assessment, choice Choice, pending Transaction, correctionCategoryID string) (Plan, error) {
	switch a.Decision {
	case Proceed:
		return Plan{Decision: Proceed, Pending: &pending}, nil
	case Blocked:
		return Plan{Decision: Blocked}, nil
	case AwaitingChoice:
	default:
		return Plan{}, ErrInvalidChoice
	}

	switch choice {
	case ChoiceNone:
		return Plan{}, ErrChoiceRequired
	case ChoiceCancel:
		return Plan{Decision: Blocked}, nil
	case ChoiceIgnore:
		return Plan{Decision: Proceed, Pending: &pending}, nil
	case ChoiceCorrect:
		if strings.TrimSpace(correctionCategoryID) == "" {
			return Plan{}, ErrEmptyCategory
		}
		correction := Correction(a.Prospective, pending, correctionCategoryID)
		return Plan{Decision: ProceedWithCorrection, Correction: &correction, Pending: &pending}, nil
	default:
		return Plan{}, ErrInvalidChoice
	}
}

// Correction builds the income transaction that brings a negative
// prospective balance back to exactly zero.
func Correction(prospective decimal.Decimal, pending Transaction, categoryID string) Transaction {
	return Transaction{
		UserID:      pending.UserID,
		Kind:        Income,
		Amount:      prospective.Abs(),
		Description: CorrectionDescription,
		CategoryID:  categoryID,
		Date:        pending.Date,
	}
}
