// Package scheduler runs named, cancellable repeating tasks.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrDuplicateTask = errors.New("task already scheduled")
	ErrStopped       = errors.New("scheduler stopped")
)

// task is one repeating callback with its own ticker goroutine.
type task struct {
	name     string
	interval time.Duration
	fn       func()
	stopChan chan struct{}
	done     chan struct{}
}

func (t *task) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ticker.C:
			// a stop that raced the tick wins
			select {
			case <-t.stopChan:
				return
			default:
			}
			t.fn()
		}
	}
}

// Scheduler owns a set of running tasks.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
	logger  *slog.Logger
}

// New creates a scheduler. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:  make(map[string]*task),
		logger: logger,
	}
}

// Every starts fn every interval under name. A task never overlaps itself.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive, got %s", name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}

	t := &task{
		name:     name,
		interval: interval,
		fn:       fn,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.tasks[name] = t
	go t.run()

	s.logger.Debug("Task scheduled", "task", name, "interval", interval)
	return nil
}

// Cancel stops the named task and waits for it to exit. It must not be
// called from inside that task's own callback.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if ok {
		delete(s.tasks, name)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	close(t.stopChan)
	<-t.done
	s.logger.Debug("Task cancelled", "task", name)
	return true
}

// StopAll cancels every task and refuses new ones.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.stopped = true
	tasks := s.tasks
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		close(t.stopChan)
	}
	for _, t := range tasks {
		<-t.done
	}
	s.logger.Debug("All tasks stopped", "count", len(tasks))
}

// Names lists the scheduled tasks in sorted order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of running tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
