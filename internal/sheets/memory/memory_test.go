package memory

import (
	"context"
	"testing"

	"finwise/internal/sheets"
)

func TestMirrorReplace(t *testing.T) {
	m := New()
	rows := [][]string{{"2025-09-01", "Pay", "Salary", "income", "10"}}
	if err := m.Replace(context.Background(), sheets.Snapshot{UserID: "u1", Rows: rows}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	rows[0][1] = "changed"

	got, ok := m.Get("u1")
	if !ok || got.Rows[0][1] != "Pay" {
		t.Fatalf("mirror must keep its own copy, got %+v", got)
	}
	if _, ok := m.Get("u2"); ok {
		t.Fatalf("unexpected snapshot for u2")
	}
	if m.Calls() != 1 {
		t.Fatalf("Calls() = %d", m.Calls())
	}
}
