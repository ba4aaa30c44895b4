// Package scheduler runs background maintenance while the API is serving
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweptCampaigns = promauto.NewCounter(prometheus.CounterOpts{
	Name: "nba_expiry_sweep_expired_total",
	Help: "Campaigns moved to Expired by the background sweep",
})

// Reconciler expires every stale campaign in one pass
type Reconciler interface {
	ReconcileAll(ctx context.Context) (*dto.ReconcileResult, error)
}

// ExpirySweeper periodically reconciles campaign expiry so stale campaigns
// are Expired in storage even when nobody reads them
type ExpirySweeper struct {
	reconciler Reconciler
	logger     *log.Logger
	interval   time.Duration
	timeout    time.Duration
}

func NewExpirySweeper(reconciler Reconciler, logger *log.Logger, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ExpirySweeper{
		reconciler: reconciler,
		logger:     logger,
		interval:   interval,
		timeout:    time.Minute,
	}
}

// Start launches the sweep loop in a background goroutine and returns a stop function
func (s *ExpirySweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce performs a single sweep and returns how many campaigns expired
func (s *ExpirySweeper) RunOnce(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.reconciler.ReconcileAll(runCtx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Printf("expiry sweep failed: %v", err)
		}
		return 0
	}
	if n := len(res.Expired); n > 0 {
		sweptCampaigns.Add(float64(n))
		s.logger.Printf("expiry sweep: expired campaigns %v", res.Expired)
	}
	return len(res.Expired)
}
