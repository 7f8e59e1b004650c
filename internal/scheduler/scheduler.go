package scheduler

import (
	"context"
	"sync"
	"time"

	"callscope/internal/logger"
)

// Task is one schedulable unit of pipeline work.
type Task func(ctx context.Context)

// Scheduler dispatches pipeline steps as independently schedulable units of
// work with at-least-once semantics. The pipeline only assumes this contract,
// so a distributed queue can replace the in-process implementation.
type Scheduler interface {
	// Enqueue schedules a task for immediate execution.
	Enqueue(name string, task Task)

	// EnqueueAfter schedules a task to run after the given delay.
	EnqueueAfter(delay time.Duration, name string, task Task)
}

// InProcess runs tasks on goroutines within the current process.
type InProcess struct {
	log *logger.Logger
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewInProcess creates an in-process scheduler.
func NewInProcess(log *logger.Logger) *InProcess {
	return &InProcess{log: log}
}

func (s *InProcess) Enqueue(name string, task Task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.WithField("task", name).Warn("scheduler closed, dropping task")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(name, task)
}

func (s *InProcess) EnqueueAfter(delay time.Duration, name string, task Task) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.WithField("task", name).Warn("scheduler closed, dropping task")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	time.AfterFunc(delay, func() { s.run(name, task) })
}

func (s *InProcess) run(name string, task Task) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("task", name).WithField("panic", r).Error("task panicked")
		}
	}()
	task(context.Background())
}

// Drain stops accepting tasks and waits for in-flight ones to finish.
func (s *InProcess) Drain() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// Synchronous executes tasks inline on the calling goroutine, ignoring
// delays. Tests use it to make pipeline scheduling deterministic.
type Synchronous struct{}

func NewSynchronous() *Synchronous { return &Synchronous{} }

func (s *Synchronous) Enqueue(_ string, task Task) {
	task(context.Background())
}

func (s *Synchronous) EnqueueAfter(_ time.Duration, _ string, task Task) {
	task(context.Background())
}
