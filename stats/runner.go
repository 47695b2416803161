package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
)

const DefaultInterval = 300 * time.Second

// RepresentativeSource lists every known representative.
type RepresentativeSource interface {
	Representatives() []records.Representative
}

// Runner recomputes today's daily stats of every representative on a fixed
// interval. Runs never overlap, and on-demand daily computations wait for the
// current run instead of racing it.
type Runner struct {
	aggregator *Aggregator
	reps       RepresentativeSource
	interval   time.Duration
	running    chan struct{}
}

func NewRunner(aggregator *Aggregator, reps RepresentativeSource, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Runner{
		aggregator: aggregator,
		reps:       reps,
		interval:   interval,
		running:    make(chan struct{}, 1),
	}
}

// Run ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("Stats runner started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stats runner stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce computes today's row for every representative. It returns false
// without doing anything when another run is still in progress.
func (r *Runner) RunOnce(ctx context.Context) bool {
	select {
	case r.running <- struct{}{}:
	default:
		log.Warn().Msg("Previous stats run still in progress, skipping")
		return false
	}
	defer func() { <-r.running }()

	start := time.Now()
	failed := 0
	reps := r.reps.Representatives()
	for _, rep := range reps {
		if ctx.Err() != nil {
			break
		}
		if _, err := r.aggregator.ComputeDaily(ctx, rep, ""); err != nil {
			failed++
			log.Error().Err(err).Str("representative_id", rep.ID).Msg("Error computing daily stats")
		}
	}

	log.Info().
		Int("representatives", len(reps)).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("Daily stats updated")
	return true
}

// ComputeDaily computes and stores one representative's row for date. It
// queues behind a run in progress and gives up when ctx is done first.
func (r *Runner) ComputeDaily(ctx context.Context, rep records.Representative, date string) (records.DailyStats, error) {
	select {
	case r.running <- struct{}{}:
	case <-ctx.Done():
		return records.DailyStats{}, ctx.Err()
	}
	defer func() { <-r.running }()

	return r.aggregator.ComputeDaily(ctx, rep, date)
}
