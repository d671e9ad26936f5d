package importer

import (
	"errors"
	"fmt"
)

const (
	MalformedRow             RowErrorCode = "malformed_row"
	MissingField             RowErrorCode = "missing_field"
	InvalidKind              RowErrorCode = "invalid_kind"
	InvalidAmount            RowErrorCode = "invalid_amount"
	CategoryResolutionFailed RowErrorCode = "category_resolution_failed"
	KindMismatch             RowErrorCode = "kind_mismatch"
)

var (
	// ErrHeaderMismatch aborts an import before any row is processed.
	ErrHeaderMismatch = errors.New("invalid CSV header, expected: " + Header)
	// ErrStorageFailure wraps any error returned by a store during an import.
	ErrStorageFailure = errors.New("storage failure")
)

type (
	// RowErrorCode classifies a skipped row.
	RowErrorCode string

	// RowError describes why a single row was skipped. Row is the 1-based
	// position in the file, counting the header as row 1.
	RowError struct {
		Row    int          `json:"row"`
		Code   RowErrorCode `json:"code"`
		Reason string       `json:"reason"`
	}
)

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
