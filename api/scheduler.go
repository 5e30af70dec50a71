/*
scheduler.go - Periodic balance audit

PURPOSE:
  Periodically replays every party's entries and compares the result with
  the stored balance. Drift means something wrote a balance without its
  entry (or the other way round) and needs a human.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Audits all merchants in one sweep (AuditAll with empty merchant)
  - Never corrects anything, only logs and reports

USAGE:
  scheduler := NewAuditScheduler(svc, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: AuditParty endpoint (manual audit of one party)
  - ledger/audit.go: replay logic
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/party-ledger/ledger"
)

// SweepRecorder receives the reports of one full audit sweep.
type SweepRecorder interface {
	SweepCompleted(reports []ledger.AuditReport)
}

// AuditScheduler runs ledger.Service.AuditAll on a ticker.
type AuditScheduler struct {
	Service       *ledger.Service
	Log           *zap.Logger
	Recorder      SweepRecorder
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAuditScheduler creates a new scheduler.
func NewAuditScheduler(svc *ledger.Service, log *zap.Logger) *AuditScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditScheduler{
		Service:       svc,
		Log:           log.Named("audit"),
		CheckInterval: time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (as *AuditScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled || as.CheckInterval <= 0 {
		as.Log.Info("scheduler disabled, not starting")
		return
	}
	if as.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	as.cancel = cancel
	as.stop = make(chan struct{})
	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run(ctx)

	as.Log.Info("scheduler started", zap.Duration("interval", as.CheckInterval))
}

// Stop stops the scheduler and waits for a running sweep to return.
func (as *AuditScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker == nil {
		return
	}
	as.ticker.Stop()
	as.cancel()
	close(as.stop)
	as.wg.Wait()
	as.ticker = nil
	as.Log.Info("scheduler stopped")
}

func (as *AuditScheduler) run(ctx context.Context) {
	defer as.wg.Done()

	// Run immediately on start
	as.RunNow(ctx)

	for {
		select {
		case <-as.ticker.C:
			as.RunNow(ctx)
		case <-as.stop:
			return
		}
	}
}

// RunNow performs one sweep and returns its reports.
func (as *AuditScheduler) RunNow(ctx context.Context) []ledger.AuditReport {
	start := time.Now()
	reports, err := as.Service.AuditAll(ctx, "")
	if err != nil {
		as.Log.Error("audit sweep failed", zap.Int("audited", len(reports)), zap.Error(err))
		return reports
	}

	drifted := 0
	for _, r := range reports {
		if !r.Consistent() {
			drifted++
		}
	}
	if as.Recorder != nil {
		as.Recorder.SweepCompleted(reports)
	}

	fields := []zap.Field{
		zap.Int("parties", len(reports)),
		zap.Int("drifted", drifted),
		zap.Duration("took", time.Since(start)),
	}
	if drifted > 0 {
		as.Log.Warn("audit sweep found drift", fields...)
	} else {
		as.Log.Info("audit sweep completed", fields...)
	}
	return reports
}
