// Package google mirrors ledger exports into a Google Sheets spreadsheet,
// one tab per user.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"finwise/internal/importer"
	applog "finwise/internal/log"
	ports "finwise/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// maxTitle is the longest tab title Sheets accepts.
const maxTitle = 100

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountFile string
	ServiceAccountJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Transactions"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: base}, nil
}

// newSheetsService initializes a Sheets Service from inline JSON or a
// credentials file, inline taking precedence.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentSheets).InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func credentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Replace rewrites the user's tab: transactions in A:E, totals in G:H.
func (c *Client) Replace(ctx context.Context, snap ports.Snapshot) error {
	title := tabTitle(c.sheetBase, snap.UserID)
	if err := c.ensureTab(ctx, title); err != nil {
		return err
	}

	all := quoteTitle(title) + "!A:H"
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", title, err)
	}

	data := &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*gsheet.ValueRange{
			{Range: quoteTitle(title) + "!A1", Values: transactionValues(snap.Rows)},
			{Range: quoteTitle(title) + "!G1", Values: summaryValues(snap)},
		},
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, data).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", title, err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentSheets).InfoContext(ctx, "Ledger mirrored to Google Sheets",
		applog.FieldUserID, snap.UserID,
		"sheet", title,
		"rows", len(snap.Rows))
	return nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}

// tabTitle names the per-user tab, e.g. "Transactions - alice".
func tabTitle(base, userID string) string {
	title := base + " - " + userID
	if r := []rune(title); len(r) > maxTitle {
		title = string(r[:maxTitle])
	}
	return title
}

// quoteTitle quotes a tab title for A1 notation.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func transactionValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, 0, len(rows)+1)
	out = append(out, toInterfaces(strings.Split(importer.Header, ",")))
	for _, r := range rows {
		out = append(out, toInterfaces(r))
	}
	return out
}

func summaryValues(snap ports.Snapshot) [][]interface{} {
	s := snap.Summary
	return [][]interface{}{
		{"total_income", s.TotalIncome.String()},
		{"total_expense", s.TotalExpense.String()},
		{"balance", s.Balance.String()},
	}
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
