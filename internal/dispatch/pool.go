// Package dispatch runs chat events on a fixed set of workers. Events of one
// user always land on the same worker, so they are handled strictly in
// arrival order while different users proceed in parallel.
package dispatch

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Job is one unit of work for a user.
type Job struct {
	UserID  int64
	Handler func(ctx context.Context) error
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	TotalPanics     int64         `json:"total_panics"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool is a sharded worker pool with one bounded queue per worker.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	mu         sync.RWMutex // guards queue close against concurrent sends
	stopped    atomic.Bool

	totalDispatched atomic.Int64
	totalProcessed  atomic.Int64
	totalDropped    atomic.Int64
	totalErrors     atomic.Int64
	totalPanics     atomic.Int64
}

type worker struct {
	id            int
	jobQueue      chan Job
	isProcessing  atomic.Bool
	jobsProcessed atomic.Int64
	pool          *Pool
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 8
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	p := &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
	for i := range p.workers {
		p.workers[i] = &worker{
			id:       i,
			jobQueue: make(chan Job, queueSize),
			pool:     p,
		}
	}
	return p
}

// Start launches the workers. Handlers receive ctx.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			p.wg.Add(1)
			go w.run(ctx, &p.wg)
		}
		logrus.Infof("[DISPATCH] started %d workers, queue size %d", p.numWorkers, p.queueSize)
	})
}

// TryDispatch enqueues job on its user's worker without blocking. It reports
// false when the queue is full or the pool is stopped.
func (p *Pool) TryDispatch(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped.Load() {
		p.totalDropped.Inc()
		return false
	}

	shard := p.shardFor(job.UserID)
	select {
	case p.workers[shard].jobQueue <- job:
		p.totalDispatched.Inc()
		return true
	default:
		p.totalDropped.Inc()
		logrus.Warnf("[DISPATCH] worker %d queue full, dropping job for user %d", shard, job.UserID)
		return false
	}
}

// Stop closes the queues and waits until queued jobs are finished.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped.Store(true)
		for _, w := range p.workers {
			close(w.jobQueue)
		}
		p.mu.Unlock()

		logrus.Info("[DISPATCH] stopping workers...")
		p.wg.Wait()
		logrus.Info("[DISPATCH] all workers stopped")
	})
}

func (p *Pool) shardFor(userID int64) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) Stats() PoolStats {
	ws := make([]WorkerStats, len(p.workers))
	active := 0
	for i, w := range p.workers {
		busy := w.isProcessing.Load()
		if busy {
			active++
		}
		ws[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  busy,
			JobsProcessed: w.jobsProcessed.Load(),
		}
	}

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   active,
		TotalDispatched: p.totalDispatched.Load(),
		TotalProcessed:  p.totalProcessed.Load(),
		TotalDropped:    p.totalDropped.Load(),
		TotalErrors:     p.totalErrors.Load(),
		TotalPanics:     p.totalPanics.Load(),
		WorkerStats:     ws,
	}
}

func (w *worker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	logrus.Debugf("[DISPATCH] worker %d started", w.id)

	for job := range w.jobQueue {
		w.process(ctx, job)
	}
	logrus.Debugf("[DISPATCH] worker %d shutting down", w.id)
}

func (w *worker) process(ctx context.Context, job Job) {
	w.isProcessing.Store(true)
	defer func() {
		if r := recover(); r != nil {
			w.pool.totalPanics.Inc()
			logrus.Errorf("[DISPATCH] worker %d panic for user %d: %v", w.id, job.UserID, r)
		}
		w.isProcessing.Store(false)
		w.jobsProcessed.Inc()
		w.pool.totalProcessed.Inc()
	}()

	if err := job.Handler(ctx); err != nil {
		w.pool.totalErrors.Inc()
		logrus.WithError(err).Errorf("[DISPATCH] worker %d job failed for user %d", w.id, job.UserID)
	}
}
