package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tqminh/formextract-be/internal/worker/domain"
	"github.com/tqminh/formextract-be/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	RabbitClient      *rabbitmq.Client
	Results           ResultStore
	Records           RecordStore
	Objects           ObjectStore
	Inference         Inference
	Normalizer        Normalizer
	Requeuer          Requeuer
	Queues            []string
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	Retry             RetryPolicy
}

// Worker pulls job descriptors from the broker queues and executes them
// through a bounded goroutine pool.
type Worker struct {
	logger            *slog.Logger
	rabbitClient      *rabbitmq.Client
	results           ResultStore
	records           RecordStore
	objects           ObjectStore
	inference         Inference
	normalizer        Normalizer
	requeuer          Requeuer
	queues            []string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	retry             RetryPolicy
	workerID          string
	jobsChan          chan *domain.JobMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}

	requeuer := cfg.Requeuer
	if requeuer == nil && cfg.RabbitClient != nil {
		requeuer = cfg.RabbitClient
	}

	return &Worker{
		logger:            cfg.Logger,
		rabbitClient:      cfg.RabbitClient,
		results:           cfg.Results,
		records:           cfg.Records,
		objects:           cfg.Objects,
		inference:         cfg.Inference,
		normalizer:        cfg.Normalizer,
		requeuer:          requeuer,
		queues:            cfg.Queues,
		concurrency:       cfg.Concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		retry:             cfg.Retry,
		workerID:          fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		jobsChan:          make(chan *domain.JobMessage),
		stopChan:          make(chan struct{}),
	}
}

// Start begins consuming and processing jobs until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_retries", w.retry.MaxRetries),
	)

	w.spawnWorkerPool(ctx)

	for _, queue := range w.queues {
		deliveries, err := w.setupConsumer(queue)
		if err != nil {
			return fmt.Errorf("failed to consume queue %s: %w", queue, err)
		}

		w.wg.Add(1)
		go func(queue string) {
			defer w.wg.Done()
			w.startMessageDispatcher(ctx, queue, deliveries)
		}(queue)
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
