// Package batch implements the concurrent BatchExecutor (C11) from
// spec.md §4.7: bounded-parallelism task execution with a token-bucket
// rate limiter, a per-task timeout, and a single progress callback stream
// so UI consumers (internal/batchui) never observe interleaved writes.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/arxos/graphrules/internal/grmetrics"
)

// Task is one unit of batch work; Run receives a context already bound to
// the per-task timeout.
type Task struct {
	ID  string
	Run func(ctx context.Context) (any, error)
}

// TaskResult is the outcome of one Task.
type TaskResult struct {
	TaskID   string
	Output   any
	Err      error
	Duration time.Duration
}

// Progress is delivered once per completed task, in completion order, to
// exactly one callback invocation at a time.
type Progress struct {
	Completed int
	Total     int
	Result    TaskResult
}

// Result is the aggregate outcome of Run, mirroring the original
// BatchExecutionResult: total/succeeded/failed counts plus the full
// per-task result list and wall-clock duration. RunID is a fresh
// correlation id minted once per Run call, for log correlation across a
// batch's concurrent task output.
type Result struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     int
	Results    []TaskResult
	Duration   time.Duration
}

// Executor bounds concurrency with a semaphore, paces task starts with a
// token-bucket limiter, and enforces PerTaskTimeout on each Task.Run call.
type Executor struct {
	Concurrency    int
	RatePerSecond  float64 // 0 disables rate limiting
	Burst          int
	PerTaskTimeout time.Duration
	Metrics        *grmetrics.Metrics // optional; nil disables instrumentation
}

func NewExecutor(concurrency int, ratePerSecond float64, burst int, perTaskTimeout time.Duration) *Executor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Executor{
		Concurrency:    concurrency,
		RatePerSecond:  ratePerSecond,
		Burst:          burst,
		PerTaskTimeout: perTaskTimeout,
	}
}

// WithMetrics attaches a Metrics bundle, returning the same Executor for
// chaining at construction time.
func (x *Executor) WithMetrics(m *grmetrics.Metrics) *Executor {
	x.Metrics = m
	return x
}

// Run executes every task, calling onProgress sequentially as each one
// completes. onProgress may be nil. Run blocks until all tasks finish or
// ctx is canceled; a canceled ctx surfaces as a per-task ErrTimeout-style
// failure on whichever tasks had not yet started or completed.
func (x *Executor) Run(ctx context.Context, tasks []Task, onProgress func(Progress)) Result {
	start := time.Now()
	total := len(tasks)

	var limiter *rate.Limiter
	if x.RatePerSecond > 0 {
		burst := x.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(x.RatePerSecond), burst)
	}

	sem := make(chan struct{}, x.Concurrency)
	resultsCh := make(chan TaskResult, total)
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					resultsCh <- TaskResult{TaskID: t.ID, Err: err}
					return
				}
			}

			taskCtx := ctx
			var cancel context.CancelFunc
			if x.PerTaskTimeout > 0 {
				taskCtx, cancel = context.WithTimeout(ctx, x.PerTaskTimeout)
				defer cancel()
			}

			taskStart := time.Now()
			output, err := t.Run(taskCtx)
			resultsCh <- TaskResult{TaskID: t.ID, Output: output, Err: err, Duration: time.Since(taskStart)}
		}(task)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	res := Result{RunID: uuid.NewString(), Total: total}
	completed := 0
	for r := range resultsCh {
		completed++
		outcome := "success"
		if r.Err != nil {
			res.Failed++
			outcome = "failure"
		} else {
			res.Succeeded++
		}
		if x.Metrics != nil {
			x.Metrics.BatchTaskDuration.WithLabelValues(outcome).Observe(r.Duration.Seconds())
		}
		res.Results = append(res.Results, r)
		if onProgress != nil {
			onProgress(Progress{Completed: completed, Total: total, Result: r})
		}
	}

	res.Duration = time.Since(start)
	return res
}
