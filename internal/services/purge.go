package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	log "github.com/sirupsen/logrus"

	"github.com/corvidmail/mail-backend/internal/apptracker"
	"github.com/corvidmail/mail-backend/internal/data"
	"github.com/corvidmail/mail-backend/internal/metrics"
)

// purgeInterval gates how often read traffic may trigger a purge sweep.
const purgeInterval = time.Hour

// PurgeScheduler opportunistically removes stale query-state snapshots.
// Query traffic calls MaybeSchedule; at most one sweep runs at a time and
// sweeps are spaced at least purgeInterval apart. Purge failures are logged
// and counted, never surfaced to the request that triggered them.
type PurgeScheduler struct {
	queryStates    *data.QueryStateModel
	metricsService metrics.MetricsService
	appTracker     apptracker.AppTracker
	pool           pond.Pool
	lastRunNanos   atomic.Int64
}

// NewPurgeScheduler builds the scheduler. metricsService and appTracker may
// be nil.
func NewPurgeScheduler(queryStates *data.QueryStateModel, metricsService metrics.MetricsService, appTracker apptracker.AppTracker) *PurgeScheduler {
	return &PurgeScheduler{
		queryStates:    queryStates,
		metricsService: metricsService,
		appTracker:     appTracker,
		pool:           pond.NewPool(1),
	}
}

// Pool exposes the worker pool for metrics registration.
func (p *PurgeScheduler) Pool() pond.Pool {
	return p.pool
}

// MaybeSchedule submits a purge sweep when the interval has elapsed.
func (p *PurgeScheduler) MaybeSchedule() {
	now := time.Now().UnixNano()
	last := p.lastRunNanos.Load()
	if now-last < purgeInterval.Nanoseconds() {
		return
	}
	if !p.lastRunNanos.CompareAndSwap(last, now) {
		// Another request won the race and scheduled the sweep.
		return
	}

	p.pool.Submit(func() {
		ctx := context.Background()
		purged, err := p.queryStates.PurgeStale(ctx, data.QueryStateTTL)
		if err != nil {
			log.WithError(err).Error("purging stale query states")
			if p.metricsService != nil {
				p.metricsService.IncQueryStatePurgeFailure()
			}
			if p.appTracker != nil {
				p.appTracker.CaptureException(err)
			}
			return
		}
		if purged > 0 {
			log.Infof("purged %d stale query states", purged)
		}
		if p.metricsService != nil && purged > 0 {
			p.metricsService.IncQueryStatesPurged(int(purged))
		}
	})
}

// Stop drains the worker pool. Used on server shutdown.
func (p *PurgeScheduler) Stop() {
	p.pool.StopAndWait()
}
