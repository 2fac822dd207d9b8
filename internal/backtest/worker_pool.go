package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-trade-engine/pkg/types"
)

// WorkerPool runs independent backtests in parallel. Each job gets its own
// Engine, so runs never share state.
type WorkerPool struct {
	workerCount int
	jobQueue    chan Job
	resultQueue chan JobResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// Job is one backtest configuration over a shared bar and signal series.
type Job struct {
	ID             string
	Index          int
	Bars           []types.OHLCV
	Signals        []types.Action
	InitialCapital float64
	CommissionRate float64
	Options        []Option
}

// JobResult is the outcome of one Job.
type JobResult struct {
	ID       string
	Index    int
	Run      *BacktestRun
	Duration time.Duration
}

// NewWorkerPool creates a pool. A non-positive workerCount uses one worker per CPU.
func NewWorkerPool(ctx context.Context, workerCount, jobBufferSize int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		workerCount: workerCount,
		jobQueue:    make(chan Job, jobBufferSize),
		resultQueue: make(chan JobResult, jobBufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the workers
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop waits for queued jobs to finish and closes the result channel
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// SubmitJob queues a job, blocking while the queue is full
func (wp *WorkerPool) SubmitJob(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Results returns the channel completed jobs are delivered on
func (wp *WorkerPool) Results() <-chan JobResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case job, ok := <-wp.jobQueue:
			if !ok {
				return
			}
			result := processJob(job)

			select {
			case wp.resultQueue <- result:
			case <-wp.ctx.Done():
				return
			}

		case <-wp.ctx.Done():
			return
		}
	}
}

func processJob(job Job) JobResult {
	start := time.Now()
	run := NewEngine(job.Options...).Run(job.Bars, job.Signals, job.InitialCapital, job.CommissionRate)
	return JobResult{
		ID:       job.ID,
		Index:    job.Index,
		Run:      run,
		Duration: time.Since(start),
	}
}

// Variant is one named set of engine options for Sweep.
type Variant struct {
	Name    string
	Options []Option
}

// Sweep replays the same bars and signals under every variant in parallel.
// Runs are returned in variant order regardless of completion order.
func Sweep(ctx context.Context, bars []types.OHLCV, signals []types.Action, initialCapital, commissionRate float64, variants []Variant, workers int) ([]*BacktestRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := NewWorkerPool(ctx, workers, len(variants))
	pool.Start()

	submitted := 0
	var submitErr error
	for i, v := range variants {
		id := v.Name
		if id == "" {
			id = fmt.Sprintf("variant_%d", i)
		}
		err := pool.SubmitJob(Job{
			ID:             id,
			Index:          i,
			Bars:           bars,
			Signals:        signals,
			InitialCapital: initialCapital,
			CommissionRate: commissionRate,
			Options:        v.Options,
		})
		if err != nil {
			submitErr = err
			break
		}
		submitted++
	}
	pool.Stop()

	runs := make([]*BacktestRun, len(variants))
	for result := range pool.Results() {
		runs[result.Index] = result.Run
	}
	if submitErr != nil {
		return runs, fmt.Errorf("sweep stopped after %d of %d variants: %w", submitted, len(variants), submitErr)
	}
	for i, run := range runs {
		if run == nil {
			return runs, fmt.Errorf("sweep variant %d did not complete: %w", i, ctx.Err())
		}
	}
	return runs, nil
}
