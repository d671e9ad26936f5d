// Package memory is an in-process sheets.Mirror for development and tests.
package memory

import (
	"context"
	"sync"

	"finwise/internal/sheets"
)

type Mirror struct {
	mu    sync.Mutex
	snaps map[string]sheets.Snapshot
	calls int
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{snaps: make(map[string]sheets.Snapshot)}
}

func (m *Mirror) Replace(_ context.Context, snap sheets.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([][]string, len(snap.Rows))
	for i, r := range snap.Rows {
		rows[i] = append([]string(nil), r...)
	}
	snap.Rows = rows
	m.snaps[snap.UserID] = snap
	m.calls++
	return nil
}

// Get returns the last snapshot mirrored for userID.
func (m *Mirror) Get(userID string) (sheets.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[userID]
	return s, ok
}

// Calls reports how many times Replace ran.
func (m *Mirror) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
