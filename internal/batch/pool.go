package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"igsync/pkg/acquisition"
	"igsync/pkg/logger"
)

// Job is one entity to acquire.
type Job struct {
	Entity string
}

// Result is the outcome of a job.
type Result struct {
	Job      Job
	Run      *acquisition.Result
	Error    error
	Duration time.Duration
}

// Runner executes one acquisition run.
type Runner interface {
	Run(ctx context.Context, entity string) (*acquisition.Result, error)
}

// WorkerPool runs acquisitions for independent entities concurrently.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	runner      Runner
	logger      logger.Logger
}

// NewWorkerPool creates a pool of numWorkers workers bound to ctx.
func NewWorkerPool(ctx context.Context, numWorkers int, runner Runner, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		runner:      runner,
		logger:      log.WithField("component", "batch"),
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes Results.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Info("Worker pool stopped")
}

// Submit adds a new job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"entity": job.Entity,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming job results
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		// drain without running once cancelled so Stop can complete
		if wp.ctx.Err() != nil {
			wp.resultQueue <- Result{Job: job, Error: wp.ctx.Err()}
			continue
		}

		wp.resultQueue <- wp.processJob(job, id)
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	wp.logger.DebugWithFields("Worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"entity":    job.Entity,
	})

	run, err := wp.runner.Run(wp.ctx, job.Entity)
	return Result{Job: job, Run: run, Error: err, Duration: time.Since(start)}
}

// RunAll acquires every entity with up to concurrency workers and returns
// the results in input order.
func RunAll(ctx context.Context, entities []string, concurrency int, runner Runner, log logger.Logger) []Result {
	pool := NewWorkerPool(ctx, concurrency, runner, log)
	pool.Start()

	go func() {
		for _, e := range entities {
			if err := pool.Submit(Job{Entity: e}); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	byEntity := make(map[string][]Result, len(entities))
	for res := range pool.Results() {
		byEntity[res.Job.Entity] = append(byEntity[res.Job.Entity], res)
	}

	ordered := make([]Result, 0, len(entities))
	for _, e := range entities {
		if rs := byEntity[e]; len(rs) > 0 {
			ordered = append(ordered, rs[0])
			byEntity[e] = rs[1:]
		}
	}
	return ordered
}
