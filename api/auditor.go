/*
auditor.go - Background invariant auditor

PURPOSE:
  Periodically scans the ledger for states the Core must never produce:
  a movie with more than one open rental, or a customer holding more
  rentals than their plan allows. Findings are logged at error level and
  kept for GET /api/audit.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Only the last report is kept; the log is the history

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the auditor is active (default: true)

USAGE:
  auditor := NewAuditor(store, log)
  auditor.Start()
  // ... later
  auditor.Stop()

SEE ALSO:
  - rental/audit.go: Violation types
  - handlers.go: GetAudit / RunAudit endpoints
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/videostore/rental"
)

// AuditReport is the result of one audit pass.
type AuditReport struct {
	RanAt      time.Time
	Duration   time.Duration
	Violations []rental.Violation
	Err        error
}

// Auditor runs rental.Auditable scans on a ticker.
type Auditor struct {
	Store         rental.Auditable
	CheckInterval time.Duration
	Enabled       bool

	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu sync.RWMutex
	last   AuditReport
}

func NewAuditor(store rental.Auditable, log *slog.Logger) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{
		Store:         store,
		CheckInterval: time.Hour,
		Enabled:       true,
		log:           log,
	}
}

// Start begins the auditor.
func (a *Auditor) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.Enabled {
		a.log.Info("auditor disabled, not starting")
		return
	}
	if a.ticker != nil {
		return
	}

	a.ticker = time.NewTicker(a.CheckInterval)
	a.stop = make(chan struct{})
	a.wg.Add(1)
	go a.run()

	a.log.Info("auditor started", "interval", a.CheckInterval)
}

// Stop stops the auditor and waits for an in-flight pass to finish.
func (a *Auditor) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ticker == nil {
		return
	}
	a.ticker.Stop()
	close(a.stop)
	a.wg.Wait()
	a.ticker = nil
	a.log.Info("auditor stopped")
}

func (a *Auditor) run() {
	defer a.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-a.stop
		cancel()
	}()

	a.RunNow(ctx)
	for {
		select {
		case <-a.ticker.C:
			a.RunNow(ctx)
		case <-a.stop:
			return
		}
	}
}

// RunNow performs one audit pass and records it as the last report.
func (a *Auditor) RunNow(ctx context.Context) AuditReport {
	start := time.Now()
	violations, err := a.Store.FindViolations(ctx)
	report := AuditReport{
		RanAt:      start.UTC(),
		Duration:   time.Since(start),
		Violations: violations,
		Err:        err,
	}

	switch {
	case err != nil:
		a.log.ErrorContext(ctx, "audit failed", "error", err)
	case len(violations) > 0:
		for _, v := range violations {
			a.log.ErrorContext(ctx, "invariant violated",
				"kind", v.Kind, "movie_id", v.MovieID, "customer_id", v.CustomerID,
				"count", v.Count, "limit", v.Limit)
		}
	default:
		a.log.DebugContext(ctx, "audit clean", "duration", report.Duration)
	}

	a.lastMu.Lock()
	a.last = report
	a.lastMu.Unlock()
	return report
}

// Last returns the most recent report. RanAt is zero if no pass has run.
func (a *Auditor) Last() AuditReport {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	return a.last
}
