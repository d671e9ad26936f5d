// Package importer turns CSV transaction feeds into ledger records.
//
// The pipeline is Parse -> Reconcile -> Build, driven by Orchestrator which
// also talks to the stores. Everything except Orchestrator is pure.
package importer

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// Header is the mandatory first line of an import file (case-insensitive).
const Header = "date,description,category,type,amount"

// SampleCSV is a minimal valid import file.
const SampleCSV = Header + "\n" +
	"2025-09-24,\"Monthly Salary\",Salary,income,5000\n" +
	"2025-09-24,\"Groceries, milk and bread\",Groceries,expense,75.50\n"

const fieldCount = 5

// RawImportRow is one tokenized data line. Fields are not validated yet.
type RawImportRow struct {
	Row         int
	Date        string
	Description string
	Category    string
	Kind        string
	Amount      string
}

// Parse splits text into rows. A header mismatch fails the whole parse; a
// line that does not yield five fields is reported as MalformedRow and
// skipped.
func Parse(text string) ([]RawImportRow, []RowError, error) {
	lines := nonEmptyLines(text)
	if len(lines) == 0 || strings.ToLower(lines[0]) != Header {
		return nil, nil, ErrHeaderMismatch
	}

	rows := make([]RawImportRow, 0, len(lines)-1)
	var errs []RowError
	for i, line := range lines[1:] {
		rowNum := i + 2
		fields, err := tokenize(line)
		if err != nil {
			errs = append(errs, RowError{Row: rowNum, Code: MalformedRow, Reason: fmt.Sprintf("cannot tokenize line: %v", err)})
			continue
		}
		if len(fields) < fieldCount {
			errs = append(errs, RowError{
				Row:    rowNum,
				Code:   MalformedRow,
				Reason: fmt.Sprintf("expected %d columns, got %d", fieldCount, len(fields)),
			})
			continue
		}
		rows = append(rows, RawImportRow{
			Row:         rowNum,
			Date:        fields[0],
			Description: fields[1],
			Category:    fields[2],
			Kind:        fields[3],
			Amount:      fields[4],
		})
	}
	return rows, errs, nil
}

func nonEmptyLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// tokenize reads a single CSV record. Quoted fields may contain commas and
// "" escapes; stray quotes are tolerated and stripped from field edges.
func tokenize(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	record, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i, f := range record {
		record[i] = strings.TrimSpace(stripStrayQuote(strings.TrimSpace(f)))
	}
	return record, nil
}

// stripStrayQuote removes an unbalanced quote left at either edge of a field,
// as in `Rent",`. Balanced inner quotes are content.
func stripStrayQuote(f string) string {
	if strings.Count(f, `"`)%2 == 0 {
		return f
	}
	if strings.HasPrefix(f, `"`) {
		return strings.TrimPrefix(f, `"`)
	}
	return strings.TrimSuffix(f, `"`)
}
