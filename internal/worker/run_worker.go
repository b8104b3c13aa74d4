// Package worker runs the per-queue consumer pools. Each pool processes
// jobs one at a time per goroutine; pool size defaults to 1 so the
// external sandbox is never hit by more than one job per queue.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/metrics"
	"github.com/arbiter-oj/arbiter/internal/queue"
	"github.com/arbiter-oj/arbiter/internal/usecase"
)

// RunPool consumes run jobs and replies to the producer through the
// delivery's reply queue.
type RunPool struct {
	size   int
	jobs   <-chan *queue.Delivery
	runUC  *usecase.RunCodeUsecase
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewRunPool creates a fixed-size pool for the run queue.
func NewRunPool(size int, jobs <-chan *queue.Delivery, runUC *usecase.RunCodeUsecase, logger *zap.Logger) *RunPool {
	if size < 1 {
		size = 1
	}
	return &RunPool{
		size:   size,
		jobs:   jobs,
		runUC:  runUC,
		logger: logger,
	}
}

// Start launches the worker goroutines. Call Stop to wait for them.
func (p *RunPool) Start(ctx context.Context) {
	p.logger.Info("Starting run worker pool", zap.Int("pool_size", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their in-flight jobs and exit.
func (p *RunPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Run worker pool stopped")
}

func (p *RunPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.jobs:
			if !ok {
				return
			}
			p.handle(ctx, id, msg)
		}
	}
}

// handle isolates one delivery: a panicking job is nacked to the DLQ
// and the worker goroutine keeps consuming.
func (p *RunPool) handle(ctx context.Context, workerID int, msg *queue.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Run worker panic recovered",
				zap.Int("worker_id", workerID),
				zap.Any("panic", r),
			)
			if err := msg.Nack(false); err != nil {
				p.logger.Error("Failed to NACK panicked run job", zap.Error(err))
			}
			metrics.JobsProcessed.WithLabelValues(queue.RunQueue, "panic").Inc()
		}
	}()
	p.process(ctx, workerID, msg)
}

func (p *RunPool) process(ctx context.Context, workerID int, msg *queue.Delivery) {
	var job domain.RunJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		p.logger.Error("Failed to unmarshal run job", zap.Error(err))
		msg.Nack(false) // reject → DLQ
		return
	}

	p.logger.Info("Processing run job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.JobID.String()),
		zap.String("language", string(job.Language)),
		zap.Int("testcases", len(job.Testcases)),
	)

	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()
	start := time.Now()

	result, err := p.runUC.Execute(ctx, &job)

	metrics.JobDuration.WithLabelValues(queue.RunQueue).Observe(time.Since(start).Seconds())

	if err != nil {
		// Whole-job failure: no partial result for run jobs. The
		// producer gets a generic failure on the reply queue.
		p.reply(ctx, msg, &queue.RunReply{Error: domain.ErrRunFailed.Error()})
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Error("Failed to NACK run job",
				zap.String("job_id", job.JobID.String()),
				zap.Error(nackErr),
			)
		}
		metrics.JobsProcessed.WithLabelValues(queue.RunQueue, "error").Inc()
		return
	}

	p.reply(ctx, msg, &queue.RunReply{Result: result})
	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Error("Failed to ACK run job",
			zap.String("job_id", job.JobID.String()),
			zap.Error(ackErr),
		)
	}
	metrics.JobsProcessed.WithLabelValues(queue.RunQueue, "ok").Inc()
}

func (p *RunPool) reply(ctx context.Context, msg *queue.Delivery, reply *queue.RunReply) {
	if msg.Reply == nil {
		p.logger.Warn("Run job has no reply address, dropping result")
		return
	}
	body, err := json.Marshal(reply)
	if err != nil {
		p.logger.Error("Failed to marshal run reply", zap.Error(err))
		return
	}
	if err := msg.Reply(ctx, body); err != nil {
		p.logger.Error("Failed to publish run reply", zap.Error(err))
	}
}
