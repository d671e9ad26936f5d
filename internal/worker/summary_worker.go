// Package worker consumes ledger change notifications, refreshes summaries
// and keeps the optional spreadsheet mirror up to date.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finwise/internal/amqp"
	"finwise/internal/export"
	applog "finwise/internal/log"
	"finwise/internal/metrics"
	"finwise/internal/services"
	"finwise/internal/sheets"
)

type Config struct {
	// ResyncInterval is how often every known user is mirrored again as a
	// backup for lost messages (default: 15m).
	ResyncInterval time.Duration
	// Users are mirrored at startup even before any message arrives.
	Users []string
}

func DefaultConfig() Config {
	return Config{ResyncInterval: 15 * time.Minute}
}

// SummaryWorker reacts to ledger.changed messages.
type SummaryWorker struct {
	ledger *services.LedgerService
	mirror sheets.Mirror
	config Config

	mu      sync.Mutex
	known   map[string]struct{}
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSummaryWorker creates a worker. mirror may be nil.
func NewSummaryWorker(ledger *services.LedgerService, mirror sheets.Mirror, config Config) *SummaryWorker {
	if config.ResyncInterval <= 0 {
		config.ResyncInterval = DefaultConfig().ResyncInterval
	}
	known := make(map[string]struct{}, len(config.Users))
	for _, u := range config.Users {
		known[u] = struct{}{}
	}
	return &SummaryWorker{ledger: ledger, mirror: mirror, config: config, known: known}
}

// HandleLedgerChanged recomputes the summary of the message's user and
// mirrors the ledger. A returned error makes the consumer requeue.
func (w *SummaryWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
	logger.InfoContext(ctx, "Processing ledger changed message",
		applog.FieldUserID, msg.UserID,
		"reason", msg.Reason,
		"count", msg.Count,
		"timestamp", msg.Timestamp)

	w.remember(msg.UserID)
	if err := w.Refresh(ctx, msg.UserID); err != nil {
		metrics.WorkerMessages.WithLabelValues("error").Inc()
		return err
	}
	metrics.WorkerMessages.WithLabelValues("ok").Inc()
	return nil
}

// Refresh drops the cached summary of userID, recomputes it from a fresh
// snapshot and pushes the snapshot to the mirror.
func (w *SummaryWorker) Refresh(ctx context.Context, userID string) error {
	w.ledger.Invalidate(userID)
	sum, err := w.ledger.Summary(ctx, userID)
	if err != nil {
		return fmt.Errorf("summary for %s: %w", userID, err)
	}

	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
	logger.InfoContext(ctx, "Summary refreshed",
		applog.FieldUserID, userID,
		applog.FieldBalance, sum.Balance.String(),
		"total_income", sum.TotalIncome.String(),
		"total_expense", sum.TotalExpense.String())

	if w.mirror == nil {
		return nil
	}
	cats, txs, err := w.ledger.Snapshot(ctx, userID)
	if err != nil {
		return fmt.Errorf("snapshot for %s: %w", userID, err)
	}
	snap := sheets.Snapshot{UserID: userID, Rows: export.Rows(txs, cats), Summary: sum}
	if err := w.mirror.Replace(ctx, snap); err != nil {
		return fmt.Errorf("mirror ledger of %s: %w", userID, err)
	}
	return nil
}

// Start runs the periodic resync loop. Returns an error if already running.
func (w *SummaryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("summary worker is already running")
	}
	w.running = true
	stop, done := make(chan struct{}), make(chan struct{})
	w.stopCh, w.doneCh = stop, done
	w.mu.Unlock()

	go w.runLoop(ctx, stop, done)

	applog.FromContext(ctx).WithComponent(applog.ComponentWorker).InfoContext(ctx, "Summary worker started",
		"resync_interval", w.config.ResyncInterval)
	return nil
}

// Stop stops the resync loop and waits for it to finish. It may be called
// again after ctx expired to keep waiting.
func (w *SummaryWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *SummaryWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SummaryWorker) runLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.ResyncInterval)
	defer ticker.Stop()

	// Resync immediately on startup
	w.ResyncAll(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ResyncAll(ctx)
		}
	}
}

// ResyncAll refreshes every known user and returns how many failed.
func (w *SummaryWorker) ResyncAll(ctx context.Context) int {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
	failed := 0
	for _, userID := range w.users() {
		if err := w.Refresh(ctx, userID); err != nil {
			failed++
			logger.ErrorContext(ctx, "Resync failed", applog.FieldUserID, userID, applog.FieldError, err.Error())
		}
	}
	return failed
}

func (w *SummaryWorker) remember(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.known[userID] = struct{}{}
}

func (w *SummaryWorker) users() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.known))
	for u := range w.known {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
