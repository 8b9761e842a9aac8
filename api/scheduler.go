/*
scheduler.go - Periodic policy expiry sweep

PURPOSE:
  Periodically runs the expiry report so the number of policies about to
  expire is logged and exported as a gauge, without anyone opening the
  report page.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Each run is a read: no transaction, no audit entry
  - The window is the same one the report endpoint defaults to

USAGE:
  sweeper := NewExpirySweeper(services.Policies, logger, m)
  sweeper.Start(ctx)
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: ListExpiringPolicies endpoint (same report on demand)
  - metrics/metrics.go: SetExpiringPolicies gauge
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/brokerdesk/brokerage"
)

// ExpiryLister produces the expiry report. *brokerage.PolicyService satisfies it.
type ExpiryLister interface {
	ListExpiring(ctx context.Context, windowDays int) ([]brokerage.ExpiringPolicyView, error)
}

// ExpiryGauge records the size of the latest report. May be nil.
type ExpiryGauge interface {
	SetExpiringPolicies(n int)
}

// SweepResult is the outcome of one sweep.
type SweepResult struct {
	At       time.Time
	Expiring int
	Err      error
}

// ExpirySweeper runs the expiry report on a ticker.
type ExpirySweeper struct {
	Policies      ExpiryLister
	Logger        logrus.FieldLogger
	Gauge         ExpiryGauge
	CheckInterval time.Duration
	WindowDays    int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   SweepResult
}

// NewExpirySweeper creates a sweeper with an hourly interval and the
// default window.
func NewExpirySweeper(policies ExpiryLister, logger logrus.FieldLogger, gauge ExpiryGauge) *ExpirySweeper {
	return &ExpirySweeper{
		Policies:      policies,
		Logger:        logger,
		Gauge:         gauge,
		CheckInterval: time.Hour,
		WindowDays:    brokerage.DefaultExpiryWindowDays,
	}
}

// Start begins the sweeper. It stops when ctx is done or Stop is called.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(ctx, s.ticker, s.stop)

	s.Logger.WithFields(logrus.Fields{
		"module":   "scheduler",
		"interval": s.CheckInterval.String(),
		"window":   s.WindowDays,
	}).Info("expiry sweeper started")
}

// Stop stops the sweeper and waits for a running sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.Logger.WithField("module", "scheduler").Info("expiry sweeper stopped")
}

func (s *ExpirySweeper) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunNow(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunNow performs one sweep synchronously and returns its result.
func (s *ExpirySweeper) RunNow(ctx context.Context) SweepResult {
	policies, err := s.Policies.ListExpiring(ctx, s.WindowDays)
	res := SweepResult{At: time.Now(), Expiring: len(policies), Err: err}

	log := s.Logger.WithField("module", "scheduler")
	if err != nil {
		log.WithError(err).Error("expiry sweep failed")
	} else {
		if s.Gauge != nil {
			s.Gauge.SetExpiringPolicies(res.Expiring)
		}
		log.WithFields(logrus.Fields{
			"expiring": res.Expiring,
			"window":   s.WindowDays,
		}).Info("expiry sweep completed")
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
	return res
}

// LastRun returns the result of the most recent sweep.
func (s *ExpirySweeper) LastRun() SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
