// Package export renders a user's ledger as CSV in the same layout the
// importer reads. The importer is line based, so line breaks inside a
// description or category are written as spaces; a field ending in an
// unbalanced quote does not survive the round trip.
package export

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"time"

	"finwise/internal/core"
	"finwise/internal/importer"
)

// Uncategorized names transactions whose category no longer exists.
const Uncategorized = "Uncategorized"

// Filename returns the download name for an export taken at now.
func Filename(now time.Time) string {
	return "transactions_" + now.Format(core.DateLayout) + ".csv"
}

// Rows returns the export records, newest date first, without the header.
// Each record is date, description, category, type, amount.
func Rows(txs []core.Transaction, cats []core.Category) [][]string {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	sorted := make([]core.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date > sorted[j].Date
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	out := make([][]string, 0, len(sorted))
	for _, t := range sorted {
		name, ok := names[t.CategoryID]
		if !ok {
			name = Uncategorized
		}
		out = append(out, []string{t.Date, t.Description, name, t.Kind.String(), t.Amount.String()})
	}
	return out
}

// Write streams the CSV export to w, one record per line. The description is
// always quoted; the category is quoted only when it would otherwise split
// the record.
func Write(w io.Writer, txs []core.Transaction, cats []core.Category) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(importer.Header + "\n"); err != nil {
		return err
	}
	for _, r := range Rows(txs, cats) {
		line := strings.Join([]string{r[0], quote(singleLine(r[1])), quoteIfNeeded(singleLine(r[2])), r[3], r[4]}, ",")
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, ",\"") {
		return quote(s)
	}
	return s
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func singleLine(s string) string {
	return lineBreaks.Replace(s)
}
