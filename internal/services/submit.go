package services

import (
	"context"
	"errors"

	"finwise/internal/amqp"
	"finwise/internal/core"
	applog "finwise/internal/log"
	"finwise/internal/metrics"
	"finwise/internal/store"
)

// SubmitRequest is a single new transaction entered by a user.
type SubmitRequest struct {
	Transaction core.Transaction
	// Choice answers an earlier AwaitingChoice result. Empty on first try.
	Choice core.Choice
	// Policy overrides the service default when set.
	Policy core.Policy
}

// SubmitResult describes what the guard decided and what was saved.
type SubmitResult struct {
	Assessment  core.Assessment
	Decision    core.Decision
	Transaction *core.Transaction
	Correction  *core.Transaction
}

// Submit validates a new transaction, runs it through the negative balance
// guard and persists whatever the resulting plan asks for.
//
// Under the warn policy a negative prospective balance returns the
// assessment together with core.ErrChoiceRequired; the caller asks the user
// and submits again with a Choice. A correction income is saved in the
// configured correction category, created on first use.
func (s *LedgerService) Submit(ctx context.Context, userID string, req SubmitRequest) (*SubmitResult, error) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentGuard)

	t := req.Transaction
	t.UserID = userID
	if err := t.Validate(); err != nil {
		return nil, err
	}

	cats, txs, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	cat, ok := categoryByID(cats, t.CategoryID)
	if !ok {
		return nil, core.ErrCategoryNotFound
	}
	if err := t.CheckCategory(cat); err != nil {
		return nil, err
	}

	policy := req.Policy
	if policy == "" {
		policy = s.policy
	}
	balance := core.Summarize(txs, cats).Balance
	a := core.Evaluate(balance, t.Amount, t.Kind, policy)
	res := &SubmitResult{Assessment: a, Decision: a.Decision}

	apply := func(st store.Store) error {
		correctionID := ""
		if a.Decision == core.AwaitingChoice && req.Choice == core.ChoiceCorrect {
			id, err := s.ensureCorrectionCategory(ctx, st, userID, cats)
			if err != nil {
				return err
			}
			correctionID = id
		}

		plan, err := core.Resolve(a, req.Choice, t, correctionID)
		if err != nil {
			return err
		}
		res.Decision = plan.Decision

		if plan.Correction != nil {
			saved, err := st.InsertTransaction(ctx, userID, *plan.Correction)
			if err != nil {
				return err
			}
			res.Correction = &saved
		}
		if plan.Pending != nil {
			saved, err := st.InsertTransaction(ctx, userID, *plan.Pending)
			if err != nil {
				return err
			}
			res.Transaction = &saved
		}
		return nil
	}

	if tx, ok := s.store.(store.Transactor); ok {
		err = tx.WithinTx(ctx, apply)
	} else {
		err = apply(s.store)
	}

	metrics.GuardDecisions.WithLabelValues(res.Decision.String(), string(policy)).Inc()
	fields := applog.NewFields().
		WithUser(userID).
		WithTransaction("", string(t.Kind), t.Amount.String(), t.CategoryID).
		WithDecision(res.Decision.String(), string(policy), a.Balance.String(), a.Prospective.String())

	if err != nil {
		if errors.Is(err, core.ErrChoiceRequired) {
			logger.InfoContext(ctx, "Negative balance needs a choice", fields.ToSlice()...)
			return res, err
		}
		logger.ErrorContext(ctx, "Submit failed", fields.WithError(err).ToSlice()...)
		return nil, err
	}

	logger.InfoContext(ctx, "Transaction submitted", fields.ToSlice()...)
	if saved := savedCount(res); saved > 0 {
		s.changed(ctx, userID, amqp.ReasonTransaction, saved, applog.OpSubmit)
	}
	return res, nil
}

// ensureCorrectionCategory returns the id of the correction category,
// creating it as an income category when it does not exist yet.
func (s *LedgerService) ensureCorrectionCategory(ctx context.Context, st store.Store, userID string, cats []core.Category) (string, error) {
	key := core.NameKey(s.correction)
	for _, c := range cats {
		if core.NameKey(c.Name) != key {
			continue
		}
		if c.Kind != core.Income {
			return "", ErrCorrectionCategoryKind
		}
		return c.ID, nil
	}
	created, err := st.CreateCategories(ctx, userID, []core.NewCategory{{Name: s.correction, Kind: core.Income}})
	if err != nil {
		return "", err
	}
	return created[0].ID, nil
}

func categoryByID(cats []core.Category, id string) (core.Category, bool) {
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return core.Category{}, false
}

func savedCount(r *SubmitResult) int {
	n := 0
	if r.Transaction != nil {
		n++
	}
	if r.Correction != nil {
		n++
	}
	return n
}
