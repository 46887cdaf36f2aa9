package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Harsh-BH/qsweep/internal/domain"
	"github.com/Harsh-BH/qsweep/internal/metrics"
)

// SweepRunner executes one sweep run. It reports whether the run was a
// duplicate delivery.
type SweepRunner interface {
	Execute(ctx context.Context, run *domain.SweepRun) (bool, error)
}

// WorkerPool manages a fixed-size pool of goroutines that process sweep runs.
type WorkerPool struct {
	size   int
	sweeps <-chan *domain.SweepMessage
	runner SweepRunner
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, sweeps <-chan *domain.SweepMessage, runner SweepRunner, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:   size,
		sweeps: sweeps,
		runner: runner,
		logger: logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current sweeps and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case msg, ok := <-p.sweeps:
			if !ok {
				p.logger.Debug("Sweep channel closed", zap.Int("worker_id", id))
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

func (p *WorkerPool) handle(ctx context.Context, id int, msg *domain.SweepMessage) {
	run := msg.Run
	log := p.logger.With(zap.Int("worker_id", id), zap.String("sweep_id", run.SweepID.String()))

	log.Info("Worker processing sweep",
		zap.String("target", run.Target),
		zap.Int("repetitions", run.Repetitions),
	)

	metrics.WorkersActive.Inc()
	isDuplicate, err := p.execute(ctx, run)
	metrics.WorkersActive.Dec()

	if err != nil {
		// Interrupted by shutdown: put the sweep back for another worker.
		// Anything else goes to the DLQ instead of looping.
		requeue := ctx.Err() != nil
		if requeue {
			log.Warn("Sweep interrupted by shutdown, requeueing", zap.Error(err))
		} else {
			log.Error("Sweep execution failed", zap.Error(err))
		}

		if nackErr := msg.Nack(requeue); nackErr != nil {
			log.Error("Failed to NACK message", zap.Error(nackErr))
		}
		target := run.Target
		if target == "" {
			target = "default"
		}
		metrics.SweepsTotal.WithLabelValues(target, "error").Inc()
		return
	}

	if isDuplicate {
		log.Debug("Duplicate sweep skipped")
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message", zap.Error(ackErr))
	}
}

// execute runs the sweep, turning a panic into an error so the worker survives.
func (p *WorkerPool) execute(ctx context.Context, run *domain.SweepRun) (dup bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.runner.Execute(ctx, run)
}
