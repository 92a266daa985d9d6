package pools

import (
	"runtime"
	"sync/atomic"
)

// Task is a unit of work submitted to a WorkerPool — here, always one
// origin pool's Shutdown during Connector.Shutdown.
type Task func()

// WorkerPool is a small work-stealing goroutine pool. connector.New
// builds one per Connector, and Connector.Shutdown submits one Task per
// origin pool, so many origins' pools drain concurrently instead of one
// at a time on the caller's goroutine.
type WorkerPool struct {
	numWorkers int
	queues     []*workerQueue
	workers    []*worker
	closed     atomic.Bool

	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		stealsSuccess  atomic.Uint64
		stealsFailed   atomic.Uint64
	}
}

// workerQueue is a single worker's inbound task channel.
type workerQueue struct {
	tasks chan Task
	id    int
}

// worker processes tasks from its own queue, stealing from siblings once
// its queue runs dry.
type worker struct {
	id       int
	pool     *WorkerPool
	queue    *workerQueue
	stopping atomic.Bool
}

// NewWorkerPool starts numWorkers goroutines ready to drain Close()
// calls; numWorkers <= 0 defaults to runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		numWorkers: numWorkers,
		queues:     make([]*workerQueue, numWorkers),
		workers:    make([]*worker, numWorkers),
	}

	for i := 0; i < numWorkers; i++ {
		pool.queues[i] = &workerQueue{
			tasks: make(chan Task, 256),
			id:    i,
		}
	}

	for i := 0; i < numWorkers; i++ {
		w := &worker{
			id:    i,
			pool:  pool,
			queue: pool.queues[i],
		}
		pool.workers[i] = w
		go w.run()
	}

	return pool
}

// Submit queues task on a worker chosen round-robin, falling back to the
// next worker and finally to inline execution if every queue is full —
// a drain task (closing one connection) is cheap enough that blocking
// the submitter is worse than just running it.
func (p *WorkerPool) Submit(task Task) bool {
	if p.closed.Load() {
		return false
	}

	p.stats.tasksSubmitted.Add(1)
	idx := int(p.stats.tasksSubmitted.Load()) % p.numWorkers

	select {
	case p.queues[idx].tasks <- task:
		return true
	default:
		idx = (idx + 1) % p.numWorkers
		select {
		case p.queues[idx].tasks <- task:
			return true
		default:
			task()
			p.stats.tasksCompleted.Add(1)
			return true
		}
	}
}

func (w *worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case task := <-w.queue.tasks:
			if task == nil {
				return
			}
			task()
			w.pool.stats.tasksCompleted.Add(1)
			continue
		default:
		}

		if w.trySteal() {
			continue
		}

		task, ok := <-w.queue.tasks
		if !ok || task == nil {
			return
		}

		task()
		w.pool.stats.tasksCompleted.Add(1)
	}
}

// trySteal looks for a queued drain task on another worker, starting
// just past its own index so concurrent stealers don't pile onto the
// same victim.
func (w *worker) trySteal() bool {
	numWorkers := w.pool.numWorkers
	start := (w.id + 1) % numWorkers

	for i := 0; i < numWorkers-1; i++ {
		victim := w.pool.queues[(start+i)%numWorkers]

		select {
		case task := <-victim.tasks:
			if task != nil {
				w.pool.stats.stealsSuccess.Add(1)
				task()
				w.pool.stats.tasksCompleted.Add(1)
				return true
			}
		default:
		}
	}

	w.pool.stats.stealsFailed.Add(1)
	return false
}

// Close signals every worker to stop once its queue drains. Connector
// calls this after every submitted Close() task has been handed off, not
// before, so Shutdown doesn't race a worker's last task against the
// pool's teardown.
func (p *WorkerPool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	for _, q := range p.queues {
		close(q.tasks)
	}
}

// Stats reports this pool's lifetime submission/completion/steal counts.
func (p *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: p.stats.tasksSubmitted.Load(),
		TasksCompleted: p.stats.tasksCompleted.Load(),
		TasksPending:   p.stats.tasksSubmitted.Load() - p.stats.tasksCompleted.Load(),
		StealsSuccess:  p.stats.stealsSuccess.Load(),
		StealsFailed:   p.stats.stealsFailed.Load(),
	}
}

// WorkerPoolStats is a WorkerPool's lifetime submission/completion/steal
// counters.
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	StealsSuccess  uint64
	StealsFailed   uint64
}
