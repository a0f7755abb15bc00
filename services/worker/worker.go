package worker

import (
	"context"
	"time"

	"sjsage522/couponwatcher/helpers"
	"sjsage522/couponwatcher/internal/workflow"
	"sjsage522/couponwatcher/logger"
	"sjsage522/couponwatcher/services/publisher"
)

// Runner performs one update run
type Runner interface {
	Handle(ctx context.Context, em workflow.Emitter) *workflow.Result
}

// Worker triggers update runs on a fixed interval
type Worker struct {
	ctx       context.Context
	runner    Runner
	emitter   workflow.Emitter
	publisher publisher.Publisher
	logger    helpers.LoggerInterface
	interval  time.Duration
}

// NewWorker creates a new worker. pub may be nil when messages are not
// published to a stream.
func NewWorker(
	ctx context.Context,
	runner Runner,
	emitter workflow.Emitter,
	pub publisher.Publisher,
	logger helpers.LoggerInterface,
	interval time.Duration,
) *Worker {
	return &Worker{
		ctx:       ctx,
		runner:    runner,
		emitter:   emitter,
		publisher: pub,
		logger:    logger,
		interval:  interval,
	}
}

// Start runs once immediately and then on every tick until the context is
// canceled. Runs never overlap.
func (w *Worker) Start() error {
	log := logger.ForWorker()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.runOnce()
		if w.ctx.Err() != nil {
			log.Info().Msg("Worker stopped")
			return nil
		}

		select {
		case <-w.ctx.Done():
			log.Info().Msg("Worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// runOnce triggers one run and then trims the stream
func (w *Worker) runOnce() {
	start := time.Now()
	res := w.runner.Handle(w.ctx, w.emitter)
	if res != nil && res.Err == nil {
		w.logger.LogInfo("Update run %s finished in %s", res.RunID, time.Since(start))
	}

	if w.publisher == nil {
		return
	}
	if err := w.publisher.TrimStreams(); err != nil {
		w.logger.LogError("StreamTrimming", err)
	}
}
