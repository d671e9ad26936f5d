// Package sheets declares the spreadsheet mirror the worker keeps in step
// with each user's ledger.
package sheets

import (
	"context"

	"finwise/internal/core"
)

// Snapshot is what a mirror receives: export rows newest first plus the
// totals computed from the same data.
type Snapshot struct {
	UserID  string
	Rows    [][]string
	Summary core.LedgerSummary
}

// Ports for outbound adapters.
type (
	// Mirror replaces the copy of a user's ledger with snap.
	Mirror interface {
		Replace(ctx context.Context, snap Snapshot) error
	}
)
