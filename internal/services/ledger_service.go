// Package services coordinates the ledger engine with storage, the summary
// cache and change notifications.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"finwise/internal/amqp"
	"finwise/internal/cache"
	"finwise/internal/core"
	"finwise/internal/export"
	applog "finwise/internal/log"
	"finwise/internal/metrics"
	"finwise/internal/store"
)

var (
	// ErrCategoryInUse is returned when a referenced category would be
	// deleted or change kind.
	ErrCategoryInUse = errors.New("category is used by existing transactions")
	// ErrCorrectionCategoryKind is returned when the configured correction
	// category exists as an expense category.
	ErrCorrectionCategoryKind = errors.New("correction category must be an income category")
)

// Publisher sends ledger change notifications. *amqp.Client implements it.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

type LedgerOptions struct {
	Policy             core.Policy
	CorrectionCategory string
	// Cache holds summaries by user id. Nil disables caching.
	Cache cache.Cache[core.LedgerSummary]
	// Publisher is optional.
	Publisher Publisher
}

// LedgerService runs the non-import ledger operations for any user.
type LedgerService struct {
	store      store.Ledger
	policy     core.Policy
	correction string
	summaries  cache.Cache[core.LedgerSummary]
	publisher  Publisher
}

func NewLedgerService(s store.Ledger, opts LedgerOptions) *LedgerService {
	if opts.Policy == "" {
		opts.Policy = core.PolicyWarn
	}
	if strings.TrimSpace(opts.CorrectionCategory) == "" {
		opts.CorrectionCategory = core.CorrectionDescription
	}
	return &LedgerService{
		store:      s,
		policy:     opts.Policy,
		correction: strings.TrimSpace(opts.CorrectionCategory),
		summaries:  opts.Cache,
		publisher:  opts.Publisher,
	}
}

// Policy returns the default negative balance policy.
func (s *LedgerService) Policy() core.Policy {
	return s.policy
}

// Snapshot loads the categories and transactions of userID concurrently.
func (s *LedgerService) Snapshot(ctx context.Context, userID string) ([]core.Category, []core.Transaction, error) {
	var (
		cats []core.Category
		txs  []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cats, err = s.store.ListCategories(gctx, userID)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cats, txs, nil
}

// Summary returns the ledger summary of userID, served from the cache when
// possible.
func (s *LedgerService) Summary(ctx context.Context, userID string) (core.LedgerSummary, error) {
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(userID); ok {
			metrics.SummaryCache.WithLabelValues("hit").Inc()
			return sum, nil
		}
		metrics.SummaryCache.WithLabelValues("miss").Inc()
	}

	cats, txs, err := s.Snapshot(ctx, userID)
	if err != nil {
		return core.LedgerSummary{}, err
	}
	sum := core.Summarize(txs, cats)
	if s.summaries != nil {
		s.summaries.Set(userID, sum)
	}
	return sum, nil
}

// Invalidate drops the cached summary of userID.
func (s *LedgerService) Invalidate(userID string) {
	if s.summaries != nil {
		s.summaries.Delete(userID)
	}
}

func (s *LedgerService) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	return s.store.ListCategories(ctx, userID)
}

// ListTransactions returns the transactions of userID matching kind (empty
// for all) and search, newest first, along with the categories.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, kind core.Kind, search string) ([]core.Transaction, []core.Category, error) {
	cats, txs, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return core.Filter(txs, cats, kind, search), cats, nil
}

// Export writes every transaction of userID as CSV.
func (s *LedgerService) Export(ctx context.Context, userID string, w io.Writer) error {
	cats, txs, err := s.Snapshot(ctx, userID)
	if err != nil {
		return err
	}
	if err := export.Write(w, txs, cats); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	applog.FromContext(ctx).WithComponent(applog.ComponentExport).InfoContext(ctx, "Export written",
		applog.FieldUserID, userID, "count", len(txs))
	return nil
}

func (s *LedgerService) CreateCategory(ctx context.Context, userID string, nc core.NewCategory) (core.Category, error) {
	if err := nc.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategories(ctx, userID, []core.NewCategory{nc})
	if err != nil {
		return core.Category{}, err
	}
	s.changed(ctx, userID, amqp.ReasonCategory, 1, "create_category")
	return created[0], nil
}

// UpdateCategory renames a category or changes its kind. The kind can only
// change while no transaction references the category.
func (s *LedgerService) UpdateCategory(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	if err := (core.NewCategory{Name: c.Name, Kind: c.Kind}).Validate(); err != nil {
		return core.Category{}, err
	}
	current, err := s.findCategory(ctx, userID, c.ID)
	if err != nil {
		return core.Category{}, err
	}
	if current.Kind != c.Kind {
		n, err := s.store.CountByCategory(ctx, userID, c.ID)
		if err != nil {
			return core.Category{}, err
		}
		if n > 0 {
			return core.Category{}, ErrCategoryInUse
		}
	}
	updated, err := s.store.UpdateCategory(ctx, userID, c)
	if err != nil {
		return core.Category{}, err
	}
	s.changed(ctx, userID, amqp.ReasonCategory, 1, "update_category")
	return updated, nil
}

// UpdateTransaction applies the editor rules and saves t.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cat, err := s.findCategory(ctx, userID, t.CategoryID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := t.CheckCategory(cat); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.store.UpdateTransaction(ctx, userID, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.changed(ctx, userID, amqp.ReasonTransaction, 1, "update_transaction")
	return updated, nil
}

// Delete removes a transaction or an unreferenced category.
func (s *LedgerService) Delete(ctx context.Context, userID string, target core.DeletionTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}
	switch target.Kind {
	case core.DeleteCategory:
		n, err := s.store.CountByCategory(ctx, userID, target.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrCategoryInUse
		}
		if err := s.store.DeleteCategory(ctx, userID, target.ID); err != nil {
			return err
		}
		s.changed(ctx, userID, amqp.ReasonDelete, 1, "delete_category")
	default:
		if err := s.store.DeleteTransaction(ctx, userID, target.ID); err != nil {
			return err
		}
		s.changed(ctx, userID, amqp.ReasonDelete, 1, "delete_transaction")
	}
	return nil
}

func (s *LedgerService) findCategory(ctx context.Context, userID, id string) (core.Category, error) {
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range cats {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("category %s: %w", id, store.ErrNotFound)
}

// changed runs after every successful write: it records the mutation,
// drops the cached summary and notifies listeners. Notification failures
// are logged only; the write already happened.
func (s *LedgerService) changed(ctx context.Context, userID, reason string, count int, operation string) {
	metrics.LedgerMutations.WithLabelValues(operation).Inc()
	applog.FromContext(ctx).WithComponent(applog.ComponentLedger).DebugContext(ctx, "Ledger changed",
		applog.FieldUserID, userID, applog.FieldOperation, operation, "count", count)
	s.Invalidate(userID)
	publish(ctx, s.publisher, userID, reason, count)
}

func publish(ctx context.Context, p Publisher, userID, reason string, count int) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAMQP)
	if p == nil {
		logger.DebugContext(ctx, "AMQP client not available, skipping ledger changed message")
		return
	}
	if err := p.PublishLedgerChanged(ctx, amqp.NewLedgerChangedMessage(userID, reason, count)); err != nil {
		metrics.AMQPPublished.WithLabelValues("error").Inc()
		logger.ErrorContext(ctx, "Failed to publish ledger changed message",
			applog.FieldUserID, userID, applog.FieldError, err.Error())
		return
	}
	metrics.AMQPPublished.WithLabelValues("ok").Inc()
}
