package importer

import (
	"context"

	applog "finwise/internal/log"
	"finwise/internal/store"
)

// Orchestrator sequences an import against a store.
type Orchestrator struct {
	store store.Store
}

func NewOrchestrator(s store.Store) *Orchestrator {
	return &Orchestrator{store: s}
}

// Import parses text and persists its rows for userID.
//
// Row problems are reported in the Outcome. A header mismatch or a store
// error returns an error and no Outcome. When the store implements
// store.Transactor the category creation and the bulk insert are applied
// atomically.
func (o *Orchestrator) Import(ctx context.Context, userID, text string) (*Outcome, error) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentImport)

	rows, parseErrs, err := Parse(text)
	if err != nil {
		logger.WarnContext(ctx, "Import rejected", applog.FieldUserID, userID, applog.FieldError, err.Error())
		return nil, err
	}

	var (
		imported   int
		rowErrs    []RowError
		newCatsOut []string
	)
	apply := func(s store.Store) error {
		existing, err := s.ListCategories(ctx, userID)
		if err != nil {
			return storageError("list categories", err)
		}

		rec := Reconcile(rows, existing)
		if len(rec.Staged) > 0 {
			created, err := s.CreateCategories(ctx, userID, rec.Staged)
			if err != nil {
				return storageError("create categories", err)
			}
			rec.Merge(created)
		}

		txs, errs := Build(userID, rows, rec.Lookup)
		if len(txs) > 0 {
			if err := s.InsertTransactions(ctx, userID, txs); err != nil {
				return storageError("insert transactions", err)
			}
		}

		imported, rowErrs, newCatsOut = len(txs), errs, rec.StagedNames()
		return nil
	}

	if tx, ok := o.store.(store.Transactor); ok {
		err = tx.WithinTx(ctx, apply)
	} else {
		err = apply(o.store)
	}
	if err != nil {
		logger.ErrorContext(ctx, "Import failed", applog.FieldUserID, userID, applog.FieldError, err.Error())
		return nil, err
	}

	failures := append(parseErrs, rowErrs...)
	out := newOutcome(len(rows)+len(parseErrs), failures, imported, newCatsOut)
	applog.NewStructuredLogger(logger).LogImportCompleted(ctx, userID, out.RowsRead, out.RowsImported, out.RowsSkipped, len(out.NewCategories))
	return out, nil
}
