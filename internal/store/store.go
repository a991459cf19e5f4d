package store

import (
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tasks/internal/model"
)

// Store owns the current task sequence. Dispatch may be called from Bubble
// Tea command goroutines, hence the lock.
type Store struct {
	mu     sync.RWMutex
	tasks  []model.Task
	logger *log.Logger
}

// New returns an empty store. A nil logger disables debug output.
func New(logger *log.Logger) *Store {
	return &Store{tasks: []model.Task{}, logger: logger}
}

// Dispatch applies a to the current sequence.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.tasks = Reduce(s.tasks, a)
	n := len(s.tasks)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("dispatch", "action", a.Type(), "tasks", n)
	}
}

// Tasks returns a copy of the current sequence.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

// Find returns the task with id, if present.
func (s *Store) Find(id model.ID) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

// Len reports the number of tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
