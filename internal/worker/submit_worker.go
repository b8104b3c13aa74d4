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

// SubmitPool consumes submit jobs. Failed jobs are nacked without
// requeue; there is no automatic retry anywhere in the pipeline.
type SubmitPool struct {
	size    int
	jobs    <-chan *queue.Delivery
	judgeUC *usecase.JudgeSubmissionUsecase
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewSubmitPool creates a fixed-size pool for the submit queue.
func NewSubmitPool(size int, jobs <-chan *queue.Delivery, judgeUC *usecase.JudgeSubmissionUsecase, logger *zap.Logger) *SubmitPool {
	if size < 1 {
		size = 1
	}
	return &SubmitPool{
		size:    size,
		jobs:    jobs,
		judgeUC: judgeUC,
		logger:  logger,
	}
}

// Start launches the worker goroutines. Call Stop to wait for them.
func (p *SubmitPool) Start(ctx context.Context) {
	p.logger.Info("Starting submit worker pool", zap.Int("pool_size", p.size))
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their in-flight jobs and exit.
func (p *SubmitPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Submit worker pool stopped")
}

func (p *SubmitPool) worker(ctx context.Context, id int) {
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
func (p *SubmitPool) handle(ctx context.Context, workerID int, msg *queue.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Submit worker panic recovered",
				zap.Int("worker_id", workerID),
				zap.Any("panic", r),
			)
			if err := msg.Nack(false); err != nil {
				p.logger.Error("Failed to NACK panicked submit job", zap.Error(err))
			}
			metrics.JobsProcessed.WithLabelValues(queue.SubmitQueue, "panic").Inc()
		}
	}()
	p.process(ctx, workerID, msg)
}

func (p *SubmitPool) process(ctx context.Context, workerID int, msg *queue.Delivery) {
	var job domain.SubmitJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		p.logger.Error("Failed to unmarshal submit job", zap.Error(err))
		msg.Nack(false) // reject → DLQ
		return
	}

	p.logger.Info("Processing submit job",
		zap.Int("worker_id", workerID),
		zap.String("submission_id", job.SubmissionID.String()),
		zap.String("language", string(job.Language)),
	)

	metrics.WorkersActive.Inc()
	defer metrics.WorkersActive.Dec()
	start := time.Now()

	err := p.judgeUC.Execute(ctx, &job)

	metrics.JobDuration.WithLabelValues(queue.SubmitQueue).Observe(time.Since(start).Seconds())

	if err != nil {
		p.logger.Error("Submit job failed",
			zap.Int("worker_id", workerID),
			zap.String("submission_id", job.SubmissionID.String()),
			zap.Error(err),
		)

		// Nack without requeue — a deterministic failure would loop forever.
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Error("Failed to NACK submit job",
				zap.String("submission_id", job.SubmissionID.String()),
				zap.Error(nackErr),
			)
		}
		metrics.JobsProcessed.WithLabelValues(queue.SubmitQueue, "error").Inc()
		return
	}

	if ackErr := msg.Ack(); ackErr != nil {
		p.logger.Error("Failed to ACK submit job",
			zap.String("submission_id", job.SubmissionID.String()),
			zap.Error(ackErr),
		)
	}
	metrics.JobsProcessed.WithLabelValues(queue.SubmitQueue, "ok").Inc()
}
