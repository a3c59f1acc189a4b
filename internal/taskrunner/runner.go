// Package taskrunner provides the sequential worker that owns all file I/O of
// a netlog session.
//
// A Runner executes posted tasks one at a time, in the order they were posted,
// on a single background goroutine. Posting never blocks on the tasks
// themselves: the pending list is unbounded so flush and stop tasks are never
// rejected for lack of room. Shutdown stops intake and waits until every task
// that was already posted has run, so a scheduled stop always completes.
package taskrunner

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/netlog/pkg/log"
)

// ErrRunnerClosed is returned when posting to a runner that has been shut down.
var ErrRunnerClosed = ewrap.New("task runner is closed")

// Task is a unit of work executed on the runner goroutine.
type Task func()

// Runner is a single goroutine executing tasks in FIFO order. Replies of
// PostAndReply run on a second goroutine, in the order their tasks completed,
// so a reply may block or shut the runner down without stalling the worker.
type Runner struct {
	tasks    *sequence
	replies  *sequence
	logger   log.Logger
	executed atomic.Uint64
	panicked atomic.Uint64
}

// New starts a runner. A nil logger discards diagnostics.
func New(logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNoop()
	}

	r := &Runner{logger: logger}

	r.tasks = newSequence(func(task Task) {
		r.execute(task)
		r.executed.Add(1)
	})
	r.replies = newSequence(r.execute)

	return r
}

// Post schedules task after every previously posted task.
func (r *Runner) Post(task Task) error {
	if task == nil {
		return nil
	}

	return r.tasks.post(task)
}

// PostAndReply schedules task and, once it returned, hands reply to the reply
// goroutine. Replies are never run on the worker, so a reply may call Shutdown.
func (r *Runner) PostAndReply(task, reply Task) error {
	return r.Post(func() {
		if task != nil {
			r.execute(task)
		}

		if reply == nil {
			return
		}

		// The reply sequence is closed only after the worker exits.
		err := r.replies.post(reply)
		if err != nil {
			r.logger.WithError(err).Warn("netlog reply dropped")
		}
	})
}

// Shutdown rejects further posts and blocks until every pending task ran.
// Replies handed off by those tasks are still delivered, but Shutdown does not
// wait for them. Calling it more than once, or from a reply, is safe.
func (r *Runner) Shutdown() {
	r.tasks.close()
	r.tasks.wait()
	r.replies.close()
}

// Executed returns the number of tasks that have run.
func (r *Runner) Executed() uint64 {
	return r.executed.Load()
}

// Panicked returns the number of tasks and replies that panicked.
func (r *Runner) Panicked() uint64 {
	return r.panicked.Load()
}

// execute runs task, containing any panic so later tasks still run.
func (r *Runner) execute(task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.panicked.Add(1)
			r.logger.WithField("panic", fmt.Sprint(rec)).Error("netlog task panicked")
		}
	}()

	task()
}

// sequence is an unbounded FIFO of tasks drained by one goroutine.
type sequence struct {
	mu      sync.Mutex
	pending []Task
	closed  bool
	wakeCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	exec    func(Task)
}

func newSequence(exec func(Task)) *sequence {
	s := &sequence{
		wakeCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		exec:   exec,
	}

	go s.run()

	return s
}

func (s *sequence) post(task Task) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return ErrRunnerClosed
	}

	s.pending = append(s.pending, task)
	s.mu.Unlock()

	select {
	case s.wakeCh <- struct{}{}:
	default:
	}

	return nil
}

// close stops intake. The goroutine exits once the pending list is drained.
func (s *sequence) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.stopCh)
}

func (s *sequence) wait() {
	<-s.doneCh
}

func (s *sequence) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.wakeCh:
			s.drainPending()
		case <-s.stopCh:
			s.drainPending()

			return
		}
	}
}

// drainPending runs tasks until the pending list is empty.
func (s *sequence) drainPending() {
	for {
		s.mu.Lock()

		if len(s.pending) == 0 {
			s.pending = nil
			s.mu.Unlock()

			return
		}

		task := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.exec(task)
	}
}
