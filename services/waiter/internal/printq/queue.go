// Package printq runs print jobs one at a time, in order, with a cooldown
// between jobs. A failed job is reported and dropped; nothing is retried.
package printq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
)

const DefaultCooldown = 1500 * time.Millisecond

var ErrClosed = errors.New("print queue is closed")

// Job is one unit of printer work. Execute talks to the printer; OnSuccess
// runs after a successful Execute, OnError after a failed Execute or a failed
// OnSuccess. Both callbacks are optional.
type Job struct {
	Name      string
	Execute   func(ctx context.Context) error
	OnSuccess func(ctx context.Context) error
	OnError   func(ctx context.Context, err error)
}

type Stats struct {
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Dropped  int `json:"dropped"`
}

type Queue struct {
	cooldown time.Duration
	logger   aqm.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	jobs   []Job
	busy   bool
	closed bool
	stats  Stats
	idle   chan struct{}
}

type Option func(*Queue)

func WithCooldown(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.cooldown = d
		}
	}
}

func WithLogger(logger aqm.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func New(opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		cooldown: DefaultCooldown,
		logger:   aqm.NewNoopLogger(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends job and starts the worker if it is idle. It never waits
// for the job to run.
func (q *Queue) Enqueue(job Job) error {
	if job.Execute == nil {
		return fmt.Errorf("print job %q has no Execute", job.Name)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.jobs = append(q.jobs, job)
	if !q.busy {
		q.busy = true
		q.idle = make(chan struct{})
		go q.run(q.idle)
	}
	return nil
}

// Len returns the number of jobs waiting, not counting the one running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Busy reports whether the worker is running or cooling down.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close stops accepting jobs and waits until the running job settles or ctx
// ends. Jobs that have not started are dropped: they never reach the printer
// and their OnError receives ErrClosed.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	idle := q.idle
	busy := q.busy
	q.mu.Unlock()

	q.cancel()
	if !busy {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop adapts Close to the lifecycle hook signature.
func (q *Queue) Stop(ctx context.Context) error {
	return q.Close(ctx)
}

func (q *Queue) run(idle chan struct{}) {
	defer close(idle)

	for {
		q.mu.Lock()
		if q.closed && len(q.jobs) > 0 {
			dropped := q.jobs
			q.jobs = nil
			q.stats.Dropped += len(dropped)
			q.mu.Unlock()
			q.drop(dropped)
			continue
		}
		if len(q.jobs) == 0 {
			q.busy = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		err := q.execute(job)

		q.mu.Lock()
		q.stats.Executed++
		if err != nil {
			q.stats.Failed++
		}
		q.mu.Unlock()

		q.coolDown()
	}
}

// execute never lets a job panic escape the worker.
func (q *Queue) execute(job Job) (err error) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("print job %q panicked: %v", job.Name, r)
			q.fail(ctx, job, err)
		}
	}()

	if err = job.Execute(ctx); err != nil {
		q.fail(ctx, job, err)
		return err
	}

	if job.OnSuccess != nil {
		if err = job.OnSuccess(ctx); err != nil {
			q.fail(ctx, job, err)
			return err
		}
	}

	q.logger.Debug("print job done", "job", job.Name)
	return nil
}

func (q *Queue) fail(ctx context.Context, job Job, err error) {
	q.logger.Error("print job failed", "job", job.Name, "error", err)
	if job.OnError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("print job error handler panicked", "job", job.Name, "panic", r)
		}
	}()
	job.OnError(ctx, err)
}

func (q *Queue) drop(jobs []Job) {
	ctx := context.Background()
	for _, job := range jobs {
		q.fail(ctx, job, ErrClosed)
	}
}

// coolDown is cut short only by Close, after which no further job executes.
func (q *Queue) coolDown() {
	if q.cooldown <= 0 {
		return
	}
	t := time.NewTimer(q.cooldown)
	defer t.Stop()
	select {
	case <-t.C:
	case <-q.ctx.Done():
	}
}
