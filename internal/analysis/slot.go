package analysis

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when an analysis is already in flight.
var ErrBusy = errors.New("analysis already in progress")

// Task is one in-flight analysis. It resolves exactly once.
type Task struct {
	done    chan struct{}
	outcome Outcome
}

// Done is closed when the task has resolved.
func (t *Task) Done() <-chan struct{} { return t.done }

// Outcome returns the resolution. It blocks until the task is done.
func (t *Task) Outcome() Outcome {
	<-t.done
	return t.outcome
}

// Wait blocks until the task resolves or ctx ends. Abandoning the wait does
// not cancel the task.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Result is the analysis state shown next to a canvas.
type Result struct {
	Text      string `json:"text"`
	Visible   bool   `json:"visible"`
	Failed    bool   `json:"failed"`
	Analyzing bool   `json:"analyzing"`
}

// Slot holds the single analysis result of one canvas and allows only one
// request in flight.
type Slot struct {
	mu       sync.Mutex
	result   Result
	running  *Task
	onChange func()
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// OnChange registers fn to be called whenever the result changes.
func (s *Slot) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Slot) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Start runs analyzer on image in the background. The previous result is
// cleared and hidden until the new one arrives. The request is detached from
// ctx cancellation: once started it runs until it resolves.
func (s *Slot) Start(ctx context.Context, analyzer *Analyzer, image []byte) (*Task, error) {
	s.mu.Lock()
	if s.running != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	task := &Task{done: make(chan struct{})}
	s.running = task
	s.result = Result{Analyzing: true}
	s.mu.Unlock()
	s.changed()

	runCtx := context.WithoutCancel(ctx)
	go func() {
		out := analyzer.Analyze(runCtx, image)

		s.mu.Lock()
		s.result = Result{Text: out.Text, Visible: true, Failed: out.Failed}
		s.running = nil
		s.mu.Unlock()

		task.outcome = out
		close(task.done)
		s.changed()
	}()

	return task, nil
}

// Busy reports whether an analysis is in flight.
func (s *Slot) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running != nil
}

// Result returns the current state.
func (s *Slot) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Dismiss hides the result without discarding its text.
func (s *Slot) Dismiss() {
	s.mu.Lock()
	s.result.Visible = false
	s.mu.Unlock()
	s.changed()
}
