// Package scheduler drives the recursive extraction pipeline with a
// dynamic worker pool: each processed Task can enqueue more Tasks, and
// the run only ends once every enqueued Task - including ones spawned
// along the way - has been processed.
//
// The pool uses a queue/pending-WaitGroup/workerWg shape generalized
// from a fixed initial job count to open-ended recursive fan-out. The
// ordering this package is built around - pending.Add happens before a
// Task is pushed onto the queue, pending.Done only after every child
// Task from processing it has already been pushed - is exactly the fix
// for the false-termination bug that shows up if a worker marks a task
// done before its children are queued: pending.Wait could observe an
// empty counter and close the queue while sibling workers are still
// about to add more work.
//
// The queue itself is an unbounded slice behind a mutex and
// sync.Cond, not a buffered channel: a Task can fan out into far more
// child Tasks than any fixed buffer (a directory listing runs to
// however many entries it has), and a worker both drains and refills
// this queue from within the same loop. A bounded channel would make
// that worker block on its own send once the buffer fills, and with
// --workers 1 the blocked worker is also the only goroutine left to
// drain it - a permanent deadlock rather than backpressure.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicholas-fedor/blobextract/internal/progress"
	"github.com/nicholas-fedor/blobextract/internal/report"
	"github.com/nicholas-fedor/blobextract/internal/task"
)

// Processor executes one Task and returns the Tasks and Reports it
// produced. Implementations must be safe for concurrent use across
// workers.
type Processor interface {
	Process(ctx context.Context, t task.Task) task.Result
}

// stats tracks run progress for the spinner description.
type stats struct {
	tasksSeen      atomic.Int64
	tasksDone      atomic.Int64
	reportsEmitted atomic.Int64
	startTime      time.Time
}

func (s *stats) String() string {
	elapsed := time.Since(s.startTime).Truncate(time.Millisecond)

	return fmt.Sprintf("processed %d/%d tasks, %d reports, in %v",
		s.tasksDone.Load(), s.tasksSeen.Load(), s.reportsEmitted.Load(), elapsed)
}

// taskQueue is an unbounded FIFO queue of Tasks. Unlike a channel, push
// never blocks regardless of how many items are already queued, so a
// worker that both drains and refills it from the same goroutine can
// never deadlock against itself.
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []task.Task
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)

	return q
}

// push appends a single Task and wakes one waiting worker.
func (q *taskQueue) push(t task.Task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.cond.Signal()
}

// pushAll appends every Task in ts and wakes every waiting worker.
func (q *taskQueue) pushAll(ts []task.Task) {
	if len(ts) == 0 {
		return
	}

	q.mu.Lock()
	q.items = append(q.items, ts...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// close marks the queue closed: pending pop calls return once drained,
// future pop calls return immediately with ok=false.
func (q *taskQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// pop blocks until a Task is available or the queue is closed and
// empty, in which case ok is false.
func (q *taskQueue) pop() (t task.Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.items) == 0 {
		return task.Task{}, false
	}

	t, q.items = q.items[0], q.items[1:]

	return t, true
}

// Scheduler runs a Processor over a dynamically growing Task queue with
// a fixed-size worker pool.
//
// A Scheduler is single-use: construct with New, call Run once.
type Scheduler struct {
	workers      int
	proc         Processor
	showProgress bool

	queue    *taskQueue
	pending  sync.WaitGroup
	workerWg sync.WaitGroup

	mu      sync.Mutex
	reports []report.Report

	cancelled atomic.Bool
	stats     *stats
	bar       *progress.Bar
}

// New builds a Scheduler with the given worker count and Processor.
func New(workers int, proc Processor, showProgress bool) *Scheduler {
	if workers < 1 {
		workers = 1
	}

	return &Scheduler{workers: workers, proc: proc, showProgress: showProgress}
}

// Run processes root and every Task it (transitively) spawns, returning
// every Report accumulated along the way. Run blocks until the queue is
// fully drained or ctx is canceled.
func (s *Scheduler) Run(ctx context.Context, root task.Task) []report.Report {
	s.queue = newTaskQueue()
	s.stats = &stats{startTime: time.Now()}
	s.bar = progress.New(s.showProgress)
	s.bar.Describe(s.stats)

	for i := 0; i < s.workers; i++ {
		s.workerWg.Add(1)

		go func() {
			defer s.workerWg.Done()
			s.work(ctx)
		}()
	}

	s.pending.Add(1)
	s.stats.tasksSeen.Add(1)
	s.queue.push(root)

	go func() {
		s.pending.Wait()
		s.queue.close()
	}()

	s.workerWg.Wait()
	s.bar.Finish(s.stats)

	return s.reports
}

// Cancel stops the scheduler from dispatching new Tasks to Processor;
// Tasks already queued are drained without processing so pending
// reaches zero and Run returns. Safe to call from a signal handler.
func (s *Scheduler) Cancel() {
	s.cancelled.Store(true)
}

func (s *Scheduler) work(ctx context.Context) {
	for {
		t, ok := s.queue.pop()
		if !ok {
			return
		}

		if s.cancelled.Load() || ctx.Err() != nil {
			s.pending.Done()

			continue
		}

		result := s.process(ctx, t)

		if len(result.Reports) > 0 {
			s.mu.Lock()
			s.reports = append(s.reports, result.Reports...)
			s.mu.Unlock()
			s.stats.reportsEmitted.Add(int64(len(result.Reports)))
		}

		if len(result.NewTasks) > 0 {
			s.pending.Add(len(result.NewTasks))
			s.stats.tasksSeen.Add(int64(len(result.NewTasks)))
			s.queue.pushAll(result.NewTasks)
		}

		s.stats.tasksDone.Add(1)
		s.bar.Describe(s.stats)
		s.pending.Done()
	}
}

// process runs the Processor for one Task, converting a panic into an
// UnknownError Report instead of letting it cross the worker goroutine
// boundary and take down the whole run. A Handler parses attacker-
// controlled, possibly corrupted container headers; a panic from that
// code must end only the Task that triggered it, not every other Task
// in flight.
func (s *Scheduler) process(ctx context.Context, t task.Task) (result task.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = task.Result{
				Reports: []report.Report{
					report.New(report.UnknownError, t.Path, fmt.Errorf("panic: %v", r)),
				},
			}
		}
	}()

	return s.proc.Process(ctx, t)
}
