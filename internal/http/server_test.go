package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finwise/internal/cache"
	"finwise/internal/core"
	"finwise/internal/importer"
	applog "finwise/internal/log"
	"finwise/internal/services"
	"finwise/internal/store/memory"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	st := memory.New()
	ledger := services.NewLedgerService(st, services.LedgerOptions{
		Cache: cache.NewLRUCache[core.LedgerSummary](8, time.Minute),
	})
	srv := NewServer(opts, ledger, services.NewImportService(st, ledger, 1<<20))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body, user string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func importSample(t *testing.T, srv *Server, user string) {
	t.Helper()
	if rr := do(t, srv, http.MethodPost, "/api/import", importer.SampleCSV, user); rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func categoryID(t *testing.T, srv *Server, user, name string) string {
	t.Helper()
	for _, c := range decode[[]categoryResponse](t, do(t, srv, http.MethodGet, "/api/categories", "", user)) {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not found", name)
	return ""
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s missing security headers", path)
		}
	}

	down := newTestServer(t, Options{Ping: func(context.Context) error { return errors.New("db down") }})
	if rr := do(t, down, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing ping status=%d", rr.Code)
	}
}

func TestUserResolution(t *testing.T) {
	srv := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/summary", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing user status=%d", rr.Code)
	}
	if body := decode[errorBody](t, rr); body.Error.Type != "unauthorized" {
		t.Fatalf("error body = %+v", body)
	}

	withDefault := newTestServer(t, Options{DefaultUserID: "local"})
	if rr := do(t, withDefault, http.MethodGet, "/api/summary", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("default user status=%d", rr.Code)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"create", `{"name":"Food","type":"expense"}`, http.StatusCreated},
		{"duplicate ignoring case", `{"name":"food","type":"expense"}`, http.StatusConflict},
		{"invalid kind", `{"name":"Rent","type":"transfer"}`, http.StatusUnprocessableEntity},
		{"empty name", `{"name":"  ","type":"income"}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"name":"Rent","type":"expense","color":"red"}`, http.StatusBadRequest},
		{"not json", `name=Rent`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPost, "/api/categories", tt.body, "u1"); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	id := categoryID(t, srv, "u1", "Food")
	rr := do(t, srv, http.MethodPut, "/api/categories/"+id, `{"name":"Groceries","type":"expense"}`, "u1")
	if rr.Code != http.StatusOK || decode[categoryResponse](t, rr).Name != "Groceries" {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodGet, "/api/categories", "", "u2"); len(decode[[]categoryResponse](t, rr)) != 0 {
		t.Fatalf("categories leaked across users: %s", rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, "/api/categories/"+id, "", "u1"); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/categories/"+id, "", "u1"); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestCategoryInUse(t *testing.T) {
	srv := newTestServer(t, Options{})
	importSample(t, srv, "u1")
	id := categoryID(t, srv, "u1", "Salary")

	if rr := do(t, srv, http.MethodDelete, "/api/categories/"+id, "", "u1"); rr.Code != http.StatusConflict {
		t.Fatalf("delete referenced category status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/api/categories/"+id, `{"name":"Salary","type":"expense"}`, "u1"); rr.Code != http.StatusConflict {
		t.Fatalf("re-kind referenced category status=%d", rr.Code)
	}
}

func TestImportAndSummary(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/import", importer.SampleCSV, "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decode[struct {
		RowsImported  int      `json:"rows_imported"`
		NewCategories []string `json:"new_categories"`
		Message       string   `json:"message"`
	}](t, rr)
	if out.RowsImported != 2 || len(out.NewCategories) != 2 || !strings.HasPrefix(out.Message, "Imported 2 of 2 rows") {
		t.Fatalf("unexpected outcome %+v", out)
	}

	summary := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/api/summary", "", "u1"))
	if !summary.Balance.Equal(decimal.RequireFromString("4924.5")) || len(summary.ByCategory) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	txs := decode[[]transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions?type=expense", "", "u1"))
	if len(txs) != 1 || txs[0].CategoryName != "Groceries" {
		t.Fatalf("filtered list = %+v", txs)
	}
	txs = decode[[]transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions?q=salary", "", "u1"))
	if len(txs) != 1 || txs[0].Type != core.Income {
		t.Fatalf("search list = %+v", txs)
	}
	if rr := do(t, srv, http.MethodGet, "/api/transactions?type=transfer", "", "u1"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad type filter status=%d", rr.Code)
	}
}

func TestImportLogsCompletionOnce(t *testing.T) {
	var buf bytes.Buffer
	srv := newTestServer(t, Options{Logger: applog.New(applog.Config{Format: "json", Output: &buf})})

	importSample(t, srv, "u1")
	if n := strings.Count(buf.String(), `"msg":"Import completed"`); n != 1 {
		t.Fatalf("import completion logged %d times:\n%s", n, buf.String())
	}
}

func TestImportErrors(t *testing.T) {
	srv := newTestServer(t, Options{ImportsPerMinute: 100})

	if rr := do(t, srv, http.MethodPost, "/api/import", "when,what\n2025-01-01,x\n", "u1"); rr.Code != http.StatusBadRequest {
		t.Fatalf("header mismatch status=%d", rr.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "ignored")
	fw, _ := mw.CreateFormFile("file", "tx.csv")
	_, _ = io.WriteString(fw, importer.SampleCSV)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(UserHeader, "u1")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("multipart import status=%d body=%s", rr.Code, rr.Body.String())
	}

	buf.Reset()
	mw = multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no file")
	_ = mw.Close()
	req = httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(UserHeader, "u1")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("multipart without file status=%d", rr.Code)
	}
}

func TestImportRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{ImportsPerMinute: 1})
	importSample(t, srv, "u1")

	rr := do(t, srv, http.MethodPost, "/api/import", importer.SampleCSV, "u1")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second import status=%d", rr.Code)
	}
	importSample(t, srv, "u2")
}

func TestSubmitNegativeBalance(t *testing.T) {
	srv := newTestServer(t, Options{})
	importSample(t, srv, "u1")
	groceries := categoryID(t, srv, "u1", "Groceries")
	base := `"type":"expense","amount":"10000","description":"Laptop","category_id":"` + groceries + `","date":"2025-10-01"`

	rr := do(t, srv, http.MethodPost, "/api/transactions", "{"+base+"}", "u1")
	if rr.Code != http.StatusConflict {
		t.Fatalf("warn status=%d body=%s", rr.Code, rr.Body.String())
	}
	pending := decode[submitResponse](t, rr)
	if pending.Decision != "awaiting_choice" || len(pending.Choices) != 3 ||
		!pending.Assessment.Prospective.Equal(decimal.RequireFromString("-5075.5")) {
		t.Fatalf("unexpected assessment %+v", pending)
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "{"+base+`,"policy":"block"}`, "u1")
	if rr.Code != http.StatusConflict || decode[submitResponse](t, rr).Decision != "blocked" {
		t.Fatalf("block status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "{"+base+`,"choice":"cancel"}`, "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "{"+base+`,"choice":"correct"}`, "u1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("correct status=%d body=%s", rr.Code, rr.Body.String())
	}
	saved := decode[submitResponse](t, rr)
	if saved.Correction == nil || !saved.Correction.Amount.Equal(decimal.RequireFromString("5075.5")) ||
		saved.Correction.CategoryName != core.CorrectionDescription {
		t.Fatalf("unexpected correction %+v", saved.Correction)
	}

	summary := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/api/summary", "", "u1"))
	if !summary.Balance.IsZero() {
		t.Fatalf("balance after correction = %s", summary.Balance)
	}
}

func TestSubmitValidation(t *testing.T) {
	srv := newTestServer(t, Options{})
	importSample(t, srv, "u1")
	salary := categoryID(t, srv, "u1", "Salary")

	tests := []struct {
		name string
		body string
		want int
	}{
		{"zero amount", `{"type":"income","amount":"0","category_id":"` + salary + `","date":"2025-10-01"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"type":"income","amount":"5","category_id":"` + salary + `","date":"01/10/2025"}`, http.StatusUnprocessableEntity},
		{"kind mismatch", `{"type":"expense","amount":"5","category_id":"` + salary + `","date":"2025-10-01"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"type":"income","amount":"5","category_id":"nope","date":"2025-10-01"}`, http.StatusUnprocessableEntity},
		{"bad choice", `{"type":"income","amount":"5","category_id":"` + salary + `","date":"2025-10-01","choice":"maybe"}`, http.StatusUnprocessableEntity},
		{"numeric amount", `{"type":"income","amount":12.5,"category_id":"` + salary + `","date":"2025-10-01"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPost, "/api/transactions", tt.body, "u1"); rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestEditAndDeleteTransaction(t *testing.T) {
	srv := newTestServer(t, Options{})
	importSample(t, srv, "u1")
	salary := categoryID(t, srv, "u1", "Salary")

	txs := decode[[]transactionResponse](t, do(t, srv, http.MethodGet, "/api/transactions?type=income", "", "u1"))
	id := txs[0].ID

	body := `{"type":"income","amount":"5500","description":"Raise","category_id":"` + salary + `","date":"2025-09-24"}`
	rr := do(t, srv, http.MethodPut, "/api/transactions/"+id, body, "u1")
	if rr.Code != http.StatusOK || !decode[transactionResponse](t, rr).Amount.Equal(decimal.NewFromInt(5500)) {
		t.Fatalf("edit status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/api/transactions/"+id, strings.Replace(body, "5500", "-1", 1), "u1")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("edit with negative amount status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/transactions/"+id, "", "u1"); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/transactions/"+id, "", "u1"); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestExportAndSample(t *testing.T) {
	srv := newTestServer(t, Options{})
	importSample(t, srv, "u1")

	rr := do(t, srv, http.MethodGet, "/api/export", "", "u1")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename=transactions_") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), importer.Header+"\n") {
		t.Fatalf("export body = %q", rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/api/import/sample", "", "u1")
	if rr.Body.String() != importer.SampleCSV || !strings.Contains(rr.Header().Get("Content-Disposition"), sampleFilename) {
		t.Fatalf("sample response %q %v", rr.Body.String(), rr.Header())
	}
}

func TestUnknownRoutes(t *testing.T) {
	srv := newTestServer(t, Options{})
	if rr := do(t, srv, http.MethodGet, "/nope", "", ""); rr.Code != http.StatusNotFound || decode[errorBody](t, rr).Error.Type != "not_found" {
		t.Fatalf("unknown route status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodPatch, "/api/summary", "", "u1"); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method status=%d", rr.Code)
	}
}
