// Package monitor runs the platform's background work: the start/stop price
// monitor and the scheduled yield accrual.
package monitor

import (
	"context"
	"sync"
	"time"

	"analyticaos/internal/invest"
	"analyticaos/internal/listing"
	"analyticaos/internal/metrics"
	"analyticaos/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Fetcher returns the current listings
type Fetcher interface {
	Fetch(ctx context.Context) ([]listing.Listing, error)
}

// Syncer applies listings to the token catalog
type Syncer interface {
	SyncListings(ctx context.Context, listings []listing.Listing) (*invest.SyncReport, error)
}

// Status is a snapshot of the price monitor
type Status struct {
	Running   bool       `json:"running"`
	Interval  string     `json:"interval,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
}

// PriceMonitor polls the listing service on an interval while started
type PriceMonitor struct {
	fetcher   Fetcher
	syncer    Syncer
	db        *gorm.DB
	threshold decimal.Decimal

	// AfterSync, when set, runs after every successful poll
	AfterSync func(*invest.SyncReport)

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
	started  time.Time
	lastRun  time.Time
	lastErr  string
	runs     int
}

// NewPriceMonitor creates a stopped monitor. Watchers are notified when a
// price moves by at least thresholdPct percent.
func NewPriceMonitor(f Fetcher, s Syncer, db *gorm.DB, thresholdPct float64) *PriceMonitor {
	return &PriceMonitor{fetcher: f, syncer: s, db: db, threshold: decimal.NewFromFloat(thresholdPct)}
}

// Start begins polling. It returns false if the monitor was already running.
func (m *PriceMonitor) Start(interval time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.interval = interval
	m.started = time.Now()
	go m.loop(ctx, interval, m.done)
	metrics.MonitorRunning(true)
	logrus.WithField("interval", interval.String()).Info("Price monitor started")
	return true
}

// Stop ends polling and waits for an in-flight poll to finish. It returns
// false if the monitor was not running.
func (m *PriceMonitor) Stop() bool {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	metrics.MonitorRunning(false)
	logrus.Info("Price monitor stopped")
	return true
}

// Status reports whether the monitor is running and how its last poll went
func (m *PriceMonitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Status{Running: m.cancel != nil, LastError: m.lastErr, Runs: m.runs}
	if st.Running {
		started := m.started
		st.StartedAt = &started
		st.Interval = m.interval.String()
	}
	if !m.lastRun.IsZero() {
		last := m.lastRun
		st.LastRunAt = &last
	}
	return st
}

func (m *PriceMonitor) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *PriceMonitor) poll(ctx context.Context) {
	_, err := m.RunOnce(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.lastRun = time.Now()
	m.lastErr = ""
	if err != nil && ctx.Err() == nil {
		m.lastErr = err.Error()
		logrus.WithField("error", err.Error()).Error("Price monitor poll failed")
	}
}

// RunOnce fetches listings, syncs prices and alerts watchers of large moves
func (m *PriceMonitor) RunOnce(ctx context.Context) (*invest.SyncReport, error) {
	listings, err := m.fetcher.Fetch(ctx)
	if err != nil {
		metrics.JobRun("price_monitor", err)
		return nil, err
	}
	report, err := m.syncer.SyncListings(ctx, listings)
	metrics.JobRun("price_monitor", err)
	if err != nil {
		return nil, err
	}
	for _, change := range report.Changes {
		if change.ChangePct.Abs().LessThan(m.threshold) {
			continue
		}
		n, err := notify.PriceMove(m.db.WithContext(ctx), change.Token, change.OldPrice, change.ChangePct)
		if err != nil {
			return report, err
		}
		logrus.WithFields(logrus.Fields{
			"token":    change.Token.Symbol,
			"change":   change.ChangePct.String(),
			"notified": n,
		}).Info("Price alert sent")
	}
	if m.AfterSync != nil {
		m.AfterSync(report)
	}
	return report, nil
}
