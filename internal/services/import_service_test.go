package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/cache"
	"finwise/internal/core"
	"finwise/internal/importer"
	"finwise/internal/store/memory"
)

func newImportFixture(maxBytes int) (*ImportService, *LedgerService, *recordingPublisher) {
	st := memory.New()
	pub := &recordingPublisher{}
	ledger := NewLedgerService(st, LedgerOptions{
		Cache:     cache.NewLRUCache[core.LedgerSummary](4, time.Minute),
		Publisher: pub,
	})
	return NewImportService(st, ledger, maxBytes), ledger, pub
}

func TestImportService_Sample(t *testing.T) {
	ctx := context.Background()
	svc, ledger, pub := newImportFixture(1 << 20)

	before, _ := ledger.Summary(ctx, "u1")
	if !before.Balance.IsZero() {
		t.Fatalf("empty ledger balance = %s", before.Balance)
	}

	out, err := svc.Import(ctx, "u1", strings.NewReader(importer.SampleCSV))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if out.RowsImported != 2 || len(out.NewCategories) != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}

	after, _ := ledger.Summary(ctx, "u1")
	if after.Balance.String() != "4924.5" {
		t.Fatalf("summary must be refreshed after import, balance = %s", after.Balance)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Reason != amqp.ReasonImport || pub.msgs[0].Count != 2 {
		t.Fatalf("notifications = %+v", pub.msgs)
	}
}

func TestImportService_TooLarge(t *testing.T) {
	svc, _, pub := newImportFixture(32)

	_, err := svc.Import(context.Background(), "u1", strings.NewReader(importer.SampleCSV))
	if !errors.Is(err, ErrImportTooLarge) {
		t.Fatalf("expected ErrImportTooLarge, got %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("rejected import must not notify")
	}
}

func TestImportService_NothingImported(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"header mismatch", "when,what\n2025-01-01,x", importer.ErrHeaderMismatch},
		{"only bad rows", importer.Header + "\n2025-01-01,x,Food,transfer,1\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, pub := newImportFixture(1 << 20)
			_, err := svc.ImportText(context.Background(), "u1", tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ImportText() error = %v, want %v", err, tt.wantErr)
			}
			if len(pub.msgs) != 0 {
				t.Fatalf("no change, no notification: %+v", pub.msgs)
			}
		})
	}
}
