package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholas-fedor/blobextract/internal/report"
	"github.com/nicholas-fedor/blobextract/internal/task"
)

// fanOutProcessor spawns branch children per task until maxDepth, then
// stops, and emits one Report per task so aggregation can be checked.
type fanOutProcessor struct {
	maxDepth int
	branch   int
	processed atomic.Int64
}

func (p *fanOutProcessor) Process(_ context.Context, t task.Task) task.Result {
	p.processed.Add(1)

	var res task.Result
	res.AddReport(report.New(report.UnknownError, t.Path, nil))

	if t.Depth >= p.maxDepth {
		return res
	}

	for i := 0; i < p.branch; i++ {
		res.AddTask(task.Task{Path: t.Path, Depth: t.Depth + 1})
	}

	return res
}

func TestSchedulerProcessesEveryDescendant(t *testing.T) {
	proc := &fanOutProcessor{maxDepth: 4, branch: 2}
	s := New(4, proc, false)

	reports := s.Run(t.Context(), task.Task{Path: "root", Depth: 0})

	var expected int64
	for d := 0; d <= proc.maxDepth; d++ {
		count := int64(1)
		for i := 0; i < d; i++ {
			count *= int64(proc.branch)
		}

		expected += count
	}

	assert.Equal(t, expected, proc.processed.Load())
	assert.Len(t, reports, int(expected))
}

func TestSchedulerSingleWorkerStillDrains(t *testing.T) {
	proc := &fanOutProcessor{maxDepth: 3, branch: 3}
	s := New(1, proc, false)

	reports := s.Run(t.Context(), task.Task{Path: "root", Depth: 0})
	require.NotEmpty(t, reports)
	assert.Equal(t, proc.processed.Load(), int64(len(reports)))
}

func TestSchedulerCancelStopsNewWork(t *testing.T) {
	proc := &fanOutProcessor{maxDepth: 20, branch: 2}
	s := New(2, proc, false)
	s.Cancel()

	reports := s.Run(t.Context(), task.Task{Path: "root", Depth: 0})
	assert.Empty(t, reports)
}

// TestSchedulerHandlesFanOutLargerThanChannelBuffer reproduces the
// scenario a single Task fanning out into thousands of children with
// only one worker draining the queue: a bounded channel the same
// goroutine both drains and refills would deadlock here, since the
// lone worker would block sending the 1025th child with no one left
// to receive. The queue must never block a push.
func TestSchedulerHandlesFanOutLargerThanChannelBuffer(t *testing.T) {
	const branch = 4000

	proc := &fanOutProcessor{maxDepth: 1, branch: branch}
	s := New(1, proc, false)

	done := make(chan []report.Report, 1)

	go func() {
		done <- s.Run(t.Context(), task.Task{Path: "root", Depth: 0})
	}()

	select {
	case reports := <-done:
		assert.Len(t, reports, 1+branch)
	case <-time.After(10 * time.Second):
		t.Fatal("scheduler deadlocked fanning out more tasks than a bounded channel buffer could hold")
	}
}

// panicSiblingProcessor fans the root into three children, one of
// which panics; it lets TestSchedulerIsolatesPanickingSibling confirm
// that a panic in one Task's processing never prevents its siblings
// from completing.
type panicSiblingProcessor struct {
	processed atomic.Int64
}

func (p *panicSiblingProcessor) Process(_ context.Context, t task.Task) task.Result {
	p.processed.Add(1)

	var res task.Result

	if t.Depth == 0 {
		res.AddTask(task.Task{Path: "panics", Depth: 1})
		res.AddTask(task.Task{Path: "ok-1", Depth: 1})
		res.AddTask(task.Task{Path: "ok-2", Depth: 1})

		return res
	}

	if t.Path == "panics" {
		panic("simulated handler panic")
	}

	res.AddReport(report.New(report.UnknownError, t.Path, nil))

	return res
}

func TestSchedulerIsolatesPanickingSibling(t *testing.T) {
	proc := &panicSiblingProcessor{}
	s := New(3, proc, false)

	reports := s.Run(t.Context(), task.Task{Path: "root", Depth: 0})

	assert.Equal(t, int64(4), proc.processed.Load(), "root plus all 3 children, including the one that panicked, must run")

	var sawPanicReport, sawOK1, sawOK2 bool

	for _, r := range reports {
		switch r.Path {
		case "panics":
			sawPanicReport = r.Kind == report.UnknownError
		case "ok-1":
			sawOK1 = true
		case "ok-2":
			sawOK2 = true
		}
	}

	assert.True(t, sawPanicReport, "a panicking Task must surface as an UnknownError report, not crash the run")
	assert.True(t, sawOK1, "sibling ok-1 must still be processed")
	assert.True(t, sawOK2, "sibling ok-2 must still be processed")
}
