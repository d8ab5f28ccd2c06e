// Package worker parses queued snapshot dumps on a bounded pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/toolaudit/internal/adapters/mq/queue"
	"github.com/okian/toolaudit/internal/snapshot"
	"github.com/okian/toolaudit/pkg/logger"
	"github.com/okian/toolaudit/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job is what workers read off the queue.
type Job = queue.Job

// Parser turns one dump into observations.
type Parser interface {
	Parse(ctx context.Context, unit snapshot.Unit, r io.Reader) (*snapshot.Result, error)
}

// Sink receives parse results. Collect is called from several workers at once.
type Sink interface {
	Collect(ctx context.Context, res *snapshot.Result)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs from a queue.
type Worker interface {
	// Run starts the worker loop until the queue is drained or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in hand.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	parser Parser
	sink   Sink
	name   string

	onError func(error)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, parser Parser, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		parser:   parser,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "error processing snapshot", logger.Error(err))
				if w.onError != nil {
					w.onError(err)
				}
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process parses a single dump.
func (w *InMemoryWorker) process(ctx context.Context, j Job) (err error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	w.logger.Info(ctx, "parsing snapshot", logger.String("name", j.Name), logger.String("unit", j.Unit.ID))

	rc, err := j.Open()
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "open")
		return err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", j.Name, cerr)
		}
	}()

	res, err := w.parser.Parse(ctx, j.Unit, rc)
	if err != nil {
		metrics.RecordWorkerError()
		if !errors.Is(err, context.Canceled) {
			metrics.RecordErrorByComponent("worker", "parse")
		}
		return fmt.Errorf("parse %s: %w", j.Name, err)
	}

	metrics.RecordSnapshotRows("classified", res.Stats.Classified)
	metrics.RecordSnapshotRows("unidentified", res.Stats.Unidentified)
	metrics.RecordSnapshotRows("foreign_user", res.Stats.ForeignUser)
	metrics.RecordSnapshotRows("malformed", res.Stats.Malformed)
	w.sink.Collect(ctx, res)

	w.logger.Debug(ctx, "parsed snapshot",
		logger.String("unit", j.Unit.ID),
		logger.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// Pool manages multiple workers draining one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	cancel context.CancelFunc
	mu     sync.Mutex
	err    error

	logger logger.Logger
}

// NewPool creates a new worker pool. A count below one uses runtime.NumCPU.
// opts apply to every worker.
func NewPool(workerCount int, q Queue, parser Parser, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, parser, sink, wopts...)
		w.onError = pool.fail
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers. The first failing job cancels the others.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has returned and reports the first error.
func (p *Pool) Wait() error {
	for _, w := range p.workers {
		<-w.done
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Shutdown closes the queue and stops all workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *Pool) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
		if p.cancel != nil {
			p.cancel()
		}
	}
}
