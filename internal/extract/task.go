// Package extract runs region extraction as a cancellable background task.
package extract

import (
	"context"
	"errors"
	"sync"

	"draft-reader/internal/calibration"
)

var (
	// ErrAlreadyStarted is returned when Start is called on a task that has left Idle.
	ErrAlreadyStarted = errors.New("extraction task already started")
	// ErrCancelled is the Err of a cancelled task's Result.
	ErrCancelled = errors.New("extraction cancelled")
)

// State is the lifecycle of a task: Idle -> Running -> Completed | Cancelled | Failed.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Finished reports whether the task has stopped running.
func (s State) Finished() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Extraction is one region and its candidate texts, one per enhancement
// pass that produced non-empty text, in pass order.
type Extraction struct {
	Region calibration.Region
	Texts  []string
}

// Func does the extraction work. It must poll ctx at least once per region or
// contour and may report progress in [0,1].
type Func func(ctx context.Context, progress func(float64)) ([]Extraction, error)

// Result is the outcome of a finished task. Extractions is only set when
// State is StateCompleted.
type Result struct {
	State       State
	Extractions []Extraction
	Err         error
}

// progressBuffer bounds queued progress updates; extra updates are dropped.
const progressBuffer = 8

// Task runs a Func once on its own goroutine.
type Task struct {
	run Func

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	last     float64
	result   Result
	done     chan struct{}
	progress chan float64
}

// NewTask creates an idle task.
func NewTask(run Func) *Task {
	return &Task{
		run:      run,
		done:     make(chan struct{}),
		progress: make(chan float64, progressBuffer),
	}
}

// Start moves the task to Running and launches the worker.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state = StateRunning
	t.mu.Unlock()

	go t.work(runCtx)
	return nil
}

func (t *Task) work(ctx context.Context) {
	extractions, err := t.run(ctx, t.report)

	var res Result
	switch {
	case ctx.Err() != nil:
		// A cancelled run never yields a usable result, even a partial one.
		res = Result{State: StateCancelled, Err: ErrCancelled}
	case err != nil:
		res = Result{State: StateFailed, Err: err}
	default:
		res = Result{State: StateCompleted, Extractions: extractions}
	}

	t.mu.Lock()
	t.state = res.State
	t.result = res
	t.cancel()
	t.mu.Unlock()

	close(t.progress)
	close(t.done)
}

// report forwards monotonic progress without ever blocking the worker.
func (t *Task) report(p float64) {
	p = min(max(p, 0), 1)

	t.mu.Lock()
	if p < t.last {
		t.mu.Unlock()
		return
	}
	t.last = p
	t.mu.Unlock()

	select {
	case t.progress <- p:
	default:
	}
}

// Cancel requests cooperative cancellation. It does not wait; use Wait.
// Cancelling an idle task makes it finish as cancelled without running.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateRunning:
		t.cancel()
	case StateIdle:
		t.state = StateCancelled
		t.result = Result{State: StateCancelled, Err: ErrCancelled}
		close(t.progress)
		close(t.done)
	}
}

// Wait blocks until the worker has returned and gives its result.
func (t *Task) Wait() Result {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Progress delivers advisory progress updates. It is closed when the task finishes.
func (t *Task) Progress() <-chan float64 {
	return t.progress
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastProgress returns the highest progress reported so far.
func (t *Task) LastProgress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
