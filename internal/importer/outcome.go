package importer

import (
	"fmt"
	"sort"
	"strings"
)

// Outcome summarizes a completed import.
type Outcome struct {
	RowsRead      int        `json:"rows_read"`
	RowsImported  int        `json:"rows_imported"`
	RowsSkipped   int        `json:"rows_skipped"`
	Failures      []RowError `json:"failures"`
	NewCategories []string   `json:"new_categories"`
}

func newOutcome(rowsRead int, failures []RowError, imported int, newCategories []string) *Outcome {
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Row < failures[j].Row })
	if failures == nil {
		failures = []RowError{}
	}
	if newCategories == nil {
		newCategories = []string{}
	}
	return &Outcome{
		RowsRead:      rowsRead,
		RowsImported:  imported,
		RowsSkipped:   len(failures),
		Failures:      failures,
		NewCategories: newCategories,
	}
}

// Message is the one-line summary shown to the user.
func (o *Outcome) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Imported %d of %d rows", o.RowsImported, o.RowsRead)
	if o.RowsSkipped > 0 {
		fmt.Fprintf(&b, ", skipped %d", o.RowsSkipped)
	}
	if n := len(o.NewCategories); n > 0 {
		fmt.Fprintf(&b, ", created %d new categories (%s)", n, strings.Join(o.NewCategories, ", "))
	}
	b.WriteString(".")
	return b.String()
}
