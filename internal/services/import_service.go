package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"finwise/internal/amqp"
	"finwise/internal/importer"
	applog "finwise/internal/log"
	"finwise/internal/metrics"
	"finwise/internal/store"
)

// ErrImportTooLarge is returned when an upload exceeds the size limit.
var ErrImportTooLarge = errors.New("import file too large")

// ImportService runs CSV imports and keeps summaries and listeners in
// step with the new rows.
type ImportService struct {
	orchestrator *importer.Orchestrator
	ledger       *LedgerService
	maxBytes     int
}

func NewImportService(s store.Store, ledger *LedgerService, maxBytes int) *ImportService {
	return &ImportService{
		orchestrator: importer.NewOrchestrator(s),
		ledger:       ledger,
		maxBytes:     maxBytes,
	}
}

// Import reads at most maxBytes from r and imports it for userID.
func (s *ImportService) Import(ctx context.Context, userID string, r io.Reader) (*importer.Outcome, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(s.maxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		metrics.RecordImportFailure("too_large")
		return nil, ErrImportTooLarge
	}
	return s.ImportText(ctx, userID, string(data))
}

// ImportText imports already loaded CSV text.
func (s *ImportService) ImportText(ctx context.Context, userID, text string) (*importer.Outcome, error) {
	out, err := s.orchestrator.Import(ctx, userID, text)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrHeaderMismatch):
			metrics.RecordImportFailure("header_mismatch")
		case errors.Is(err, importer.ErrStorageFailure):
			metrics.RecordImportFailure("storage_failure")
		default:
			metrics.RecordImportFailure("error")
		}
		return nil, err
	}

	codes := make([]string, 0, len(out.Failures))
	for _, f := range out.Failures {
		codes = append(codes, string(f.Code))
	}
	metrics.RecordImport(out.RowsImported, out.RowsSkipped, len(out.NewCategories), codes)

	if out.RowsImported > 0 || len(out.NewCategories) > 0 {
		metrics.LedgerMutations.WithLabelValues(applog.OpImport).Inc()
		if s.ledger != nil {
			s.ledger.Invalidate(userID)
			publish(ctx, s.ledger.publisher, userID, amqp.ReasonImport, out.RowsImported)
		}
	}
	return out, nil
}
