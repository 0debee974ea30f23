package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// DefaultWorkerCount is used when NewQueue is given a non-positive worker count.
const DefaultWorkerCount = 5

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Each job is attempted exactly once.
type Queue struct {
	jobChan     chan *jobs.ExtractJob
	closeChan   chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	workerCount int
	closed      bool
	now         func() time.Time
	log         zerolog.Logger
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishExtract blocks.
// Every finished job is logged with its outcome and timings.
func NewQueue(bufferSize, workerCount int, log zerolog.Logger) *Queue {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Queue{
		jobChan:     make(chan *jobs.ExtractJob, bufferSize),
		closeChan:   make(chan struct{}),
		workerCount: workerCount,
		now:         time.Now,
		log:         log,
	}
}

// PublishExtract implements the Publisher interface.
func (q *Queue) PublishExtract(ctx context.Context, job *jobs.ExtractJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	job.Status = jobs.JobStatusPending
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start implements the Consumer interface.
// The handler is called concurrently, up to workerCount jobs at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs the handler once and records the outcome on the job.
func (q *Queue) processJob(ctx context.Context, job *jobs.ExtractJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	startedAt := q.now()
	job.StartedAt = &startedAt

	err := runHandler(ctx, job, handler)

	completedAt := q.now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	q.logFinished(job)
}

func (q *Queue) logFinished(job *jobs.ExtractJob) {
	event := q.log.Debug()
	if job.Status == jobs.JobStatusFailed {
		event = q.log.Warn().Str("error", job.Error)
	}
	event.
		Str("job_id", job.JobID).
		Str("document_id", job.DocumentID).
		Str("status", string(job.Status)).
		Dur("queued", job.StartedAt.Sub(job.CreatedAt)).
		Dur("ran", job.CompletedAt.Sub(*job.StartedAt)).
		Msg("Extraction job finished")
}

// runHandler keeps a panicking handler from taking the worker down.
func runHandler(ctx context.Context, job *jobs.ExtractJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.JobID, r)
		}
	}()
	return handler(ctx, job)
}

// Stop implements the Consumer interface.
// It stops the queue and waits for in-flight jobs to complete. Jobs still buffered are dropped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
