package worker

import (
	"context"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Task is one unit of background work. The context passed in is the pool's
// run context; it is cancelled when the pool stops.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of goroutines fed by a bounded queue.
// Submit never blocks: when the queue is full the task is rejected and the
// caller decides what to do (typically rely on the periodic sweep to pick
// the work up later).
type Pool struct {
	workers int
	queue   chan Task

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

func NewPool(workers int, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Pool{
		workers: workers,
		queue:   make(chan Task, queueSize),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, p.cancel = context.WithCancel(ctx)
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run(ctx, i)
		}
	})
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := logutil.GetLogger(ctx).With(zap.Int("worker", id))
	logger.Debug("worker started")
	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				logger.Debug("worker stopped")
				return
			}
			task(ctx)
		case <-ctx.Done():
			logger.Debug("worker stopped")
			return
		}
	}
}

// Submit enqueues the task, reporting false when the queue is full or the
// pool is stopped.
func (p *Pool) Submit(task Task) bool {
	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// Stop cancels the run context and waits for workers to exit. Queued tasks
// that have not started yet are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
}
