package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/pkg/icron"
	"github.com/MimeLyc/srs-generator/pkg/log"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// Janitor finalises jobs whose pipeline died with the process. Nothing is
// resumed: a job left Processing for longer than staleAfter is marked Failed.
type Janitor struct {
	store      jobs.Store
	staleAfter time.Duration
	cronExpr   string
	cron       *cron.Cron
	now        func() time.Time

	group singleflight.Group
}

type Option func(*Janitor)

func WithClock(now func() time.Time) Option {
	return func(j *Janitor) {
		if now != nil {
			j.now = now
		}
	}
}

func New(store jobs.Store, cronExpr string, staleAfter time.Duration, opts ...Option) *Janitor {
	j := &Janitor{
		store:      store,
		staleAfter: staleAfter,
		cronExpr:   cronExpr,
		cron:       cron.New(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start registers the sweep and starts the scheduler. Stop must be called to
// release it.
func (j *Janitor) Start(ctx context.Context) error {
	if j.cronExpr == "" {
		return fmt.Errorf("cron expression is required")
	}
	if _, err := j.cron.AddFunc(j.cronExpr, func() {
		if _, err := j.Sweep(ctx); err != nil {
			log.Error("Janitor sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.cron.Start()

	if info, err := icron.GetTriggerInfo(j.cronExpr, j.now()); err == nil {
		log.Info("Janitor scheduled %s", info)
	}
	return nil
}

// Stop halts the scheduler and waits for a running sweep.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep marks every stale Processing job Failed and returns how many were
// finalised. Concurrent calls share one sweep.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	v, err, _ := j.group.Do("sweep", func() (any, error) {
		return j.sweep(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (j *Janitor) sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.staleAfter)
	stale, err := j.store.FindStale(ctx, jobs.StatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale jobs: %w", err)
	}

	finalised := 0
	for _, job := range stale {
		ok, err := j.store.Update(ctx, job.ID, jobs.FailedUpdate())
		if err != nil {
			// the orchestrator may have finished it in the meantime
			log.Warn("Janitor could not finalise job %s: %v", job.ID, err)
			continue
		}
		if ok {
			finalised++
			log.Info("Janitor marked job %s failed (last update %s)", job.ID, job.UpdatedAt.Format(time.RFC3339))
		}
	}
	if finalised > 0 {
		log.Info("Janitor finalised %d stale jobs", finalised)
	}
	return finalised, nil
}
