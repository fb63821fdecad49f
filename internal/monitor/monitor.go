// Package monitor provides the background staleness monitor: a polling loop
// that flags tasks stuck in progress past a threshold.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tverenko/flowboard/internal/hook"
	"github.com/tverenko/flowboard/internal/model"
)

// StaleFinder is the board query surface the monitor depends on.
type StaleFinder interface {
	FindStale(threshold time.Duration) []model.Task
}

// Monitor polls the board on a schedule and fires on_stale_task once per
// stale task.
type Monitor struct {
	board     StaleFinder
	hooks     *hook.Registry
	threshold time.Duration
	interval  time.Duration
}

// New creates a monitor. It does not start polling until Run is called.
func New(board StaleFinder, hooks *hook.Registry, threshold, interval time.Duration) *Monitor {
	return &Monitor{
		board:     board,
		hooks:     hooks,
		threshold: threshold,
		interval:  interval,
	}
}

// Run polls until ctx is cancelled and returns ctx.Err(). Each tick scans
// for stale tasks and fires events sequentially, waiting for each listener
// before moving on; cancellation interrupts the wait between scans promptly.
func (m *Monitor) Run(ctx context.Context) error {
	log.Info().Dur("threshold", m.threshold).Dur("interval", m.interval).Msg("stale task monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stale task monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.scan(ctx)
		}
	}
}

func (m *Monitor) scan(ctx context.Context) {
	stale := m.board.FindStale(m.threshold)
	if len(stale) == 0 {
		return
	}
	log.Warn().Int("count", len(stale)).Msg("stale tasks found")
	for _, task := range stale {
		if ctx.Err() != nil {
			return
		}
		m.hooks.Fire(ctx, hook.EventStaleTask, task)
	}
}
