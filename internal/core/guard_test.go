package core

import (
	"errors"
	"testing"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name    string
		balance string
		amount  string
		kind    Kind
		policy  Policy
		want    Decision
	}{
		{"stays positive under block", "100", "50", Expense, PolicyBlock, Proceed},
		{"lands on zero", "100", "100", Expense, PolicyBlock, Proceed},
		{"income leaves balance negative", "-10", "5", Income, PolicyBlock, Blocked},
		{"income lifts balance", "-10", "15", Income, PolicyBlock, Proceed},
		{"block", "100", "150", Expense, PolicyBlock, Blocked},
		{"allow", "100", "150", Expense, PolicyAllow, Proceed},
		{"warn", "100", "150", Expense, PolicyWarn, AwaitingChoice},
		{"unknown policy behaves as warn", "0", "1", Expense, Policy("other"), AwaitingChoice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Evaluate(dec(tc.balance), dec(tc.amount), tc.kind, tc.policy)
			if a.Decision != tc.want {
				t.Fatalf("decision = %s, want %s", a.Decision, tc.want)
			}
		})
	}
}

func TestResolveWarnCorrection(t *testing.T) {
	pending := Transaction{UserID: "u1", Kind: Expense, Amount: dec("150"), CategoryID: "rent", Date: "2025-09-24"}
	a := Evaluate(dec("100"), pending.Amount, pending.Kind, PolicyWarn)

	plan, err := Resolve(a, ChoiceCorrect, pending, "corr")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if plan.Decision != ProceedWithCorrection || plan.Correction == nil || plan.Pending == nil {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	c := plan.Correction
	if c.Kind != Income || !c.Amount.Equal(dec("50")) || c.Date != pending.Date || c.CategoryID != "corr" || c.UserID != "u1" {
		t.Fatalf("unexpected correction: %+v", c)
	}

	afterCorrection := Prospective(dec("100"), c.Amount, c.Kind)
	if !afterCorrection.Equal(dec("150")) {
		t.Fatalf("balance after correction = %s", afterCorrection)
	}
	final := Prospective(afterCorrection, pending.Amount, pending.Kind)
	if !final.IsZero() {
		t.Fatalf("final balance = %s, want 0", final)
	}
}

func TestResolveChoices(t *testing.T) {
	pending := Transaction{Kind: Expense, Amount: dec("150"), Date: "2025-09-24"}
	warn := Evaluate(dec("100"), pending.Amount, pending.Kind, PolicyWarn)

	if _, err := Resolve(warn, ChoiceNone, pending, "corr"); !errors.Is(err, ErrChoiceRequired) {
		t.Fatalf("expected ErrChoiceRequired, got %v", err)
	}
	if plan, _ := Resolve(warn, ChoiceCancel, pending, ""); plan.Decision != Blocked || plan.Pending != nil {
		t.Fatalf("cancel should persist nothing: %+v", plan)
	}
	if plan, _ := Resolve(warn, ChoiceIgnore, pending, ""); plan.Decision != Proceed || plan.Pending == nil || plan.Correction != nil {
		t.Fatalf("ignore should persist as given: %+v", plan)
	}
	if _, err := Resolve(warn, ChoiceCorrect, pending, ""); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}

	// Choices are irrelevant outside the Warn branch.
	block := Evaluate(dec("100"), pending.Amount, pending.Kind, PolicyBlock)
	if plan, _ := Resolve(block, ChoiceIgnore, pending, ""); plan.Decision != Blocked || plan.Pending != nil {
		t.Fatalf("block must not be overridden: %+v", plan)
	}
	ok := Evaluate(dec("500"), pending.Amount, pending.Kind, PolicyBlock)
	if plan, _ := Resolve(ok, ChoiceCancel, pending, ""); plan.Decision != Proceed || plan.Pending == nil {
		t.Fatalf("non-negative balance should proceed: %+v", plan)
	}
}

func TestParsePolicyAndChoice(t *testing.T) {
	if p, err := ParsePolicy("BLOCK"); err != nil || p != PolicyBlock {
		t.Fatalf("ParsePolicy: %q %v", p, err)
	}
	if _, err := ParsePolicy("sometimes"); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	if c, err := ParseChoice("Correct"); err != nil || c != ChoiceCorrect {
		t.Fatalf("ParseChoice: %q %v", c, err)
	}
	if _, err := ParseChoice("maybe"); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("expected ErrInvalidChoice, got %v", err)
	}
}
