package monitor

import (
	"context"
	"fmt"
	"time"

	"analyticaos/internal/invest"
	"analyticaos/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Accruer recomputes accrued yield
type Accruer interface {
	AccrueAll(ctx context.Context) (*invest.AccrualReport, error)
}

// Scheduler runs yield accrual on a cron spec
type Scheduler struct {
	cron    *cron.Cron
	accruer Accruer
	timeout time.Duration
}

// NewScheduler registers the accrual job. spec accepts standard five-field
// expressions and descriptors such as @daily.
func NewScheduler(spec string, a Accruer) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		accruer: a,
		timeout: 10 * time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.runAccrual); err != nil {
		return nil, fmt.Errorf("schedule accrual %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runAccrual() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.accruer.AccrueAll(ctx)
	metrics.JobRun("yield_accrual", err)
	if err != nil {
		logrus.WithField("error", err.Error()).Error("Scheduled accrual failed")
	}
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for a running job
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

// Next returns the next scheduled run
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
