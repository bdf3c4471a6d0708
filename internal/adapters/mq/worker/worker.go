// Package worker applies completed battle outcomes to entity counters.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/jwpark-dev/facearena/internal/adapters/mq/queue"
	"github.com/jwpark-dev/facearena/internal/adapters/store"
	"github.com/jwpark-dev/facearena/pkg/logger"
	"github.com/jwpark-dev/facearena/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
)

// Result abstracts what workers read off the queue.
type Result = queue.Result

// Updater applies one battle outcome to one entity's counters.
type Updater interface {
	IncrementStats(ctx context.Context, id string, won bool) error
}

// Queue defines how workers receive battle results.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Result
}

// StatsWorker consumes battle results and applies the counter updates.
type StatsWorker struct {
	queue   Queue
	updater Updater
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewStatsWorker creates a new worker with configuration options.
func NewStatsWorker(q Queue, updater Updater, opts ...Option) *StatsWorker {
	w := &StatsWorker{
		queue:    q,
		updater:  updater,
		name:     "stats-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *StatsWorker) Run(ctx context.Context) {
	defer close(w.done)

	results := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			w.apply(ctx, r)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *StatsWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// apply increments every participant's battle count and the winner's win
// count. Each participant's counters are disjoint state, so the updates
// fan out concurrently and are awaited jointly. A participant that is not
// visible yet (eventually consistent create) is skipped with a warning
// rather than failing the whole battle.
func (w *StatsWorker) apply(ctx context.Context, r Result) {
	start := time.Now()
	defer func() {
		metrics.RecordStatsApplyLatency(float64(time.Since(start).Milliseconds()))
	}()

	var wg sync.WaitGroup
	for _, pid := range r.ParticipantIDs {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			err := w.updater.IncrementStats(ctx, pid, pid == r.WinnerID)
			switch {
			case err == nil:
			case errors.Is(err, store.ErrNotFound):
				metrics.RecordStatsSkipped()
				w.logger.Warn(ctx, "participant not visible yet, skipping",
					logger.String("battleID", r.ID),
					logger.String("entityID", pid),
				)
			default:
				metrics.RecordStatsError()
				w.logger.Error(ctx, "stat update failed",
					logger.String("battleID", r.ID),
					logger.String("entityID", pid),
					logger.Error(err),
				)
			}
		}(pid)
	}
	wg.Wait()
	metrics.RecordBattleApplied()
}

// Pool manages multiple stats workers.
type Pool struct {
	workers []*StatsWorker

	logger logger.Logger
}

// NewPool creates a pool of workerCount stats workers.
func NewPool(workerCount int, q Queue, updater Updater) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers: make([]*StatsWorker, workerCount),
		logger:  logger.Get().Named("stats-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewStatsWorker(q, updater, WithName("stats-worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		close(w.shutdown)
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}
