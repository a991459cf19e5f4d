// Package tasksync ties the REST client to the local store: one request per
// user action, and the store is only updated after the request succeeds.
package tasksync

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tasks/internal/model"
	"github.com/Makepad-fr/tasks/internal/store"
)

var (
	// ErrEmptyTitle is returned by Add for blank titles; nothing is sent.
	ErrEmptyTitle = errors.New("title cannot be empty")
	// ErrUnknownTask is returned by Toggle for ids not in the store.
	ErrUnknownTask = errors.New("unknown task")
)

// Remote is the collection resource. *api.Client implements it.
type Remote interface {
	List(ctx context.Context) ([]model.Task, error)
	Create(ctx context.Context, title string) (model.Task, error)
	SetCompleted(ctx context.Context, id model.ID, completed bool) error
	Delete(ctx context.Context, id model.ID) error
}

// Syncer applies user actions remotely, then locally. Failures are logged and
// returned; the store is left untouched and nothing is retried.
type Syncer struct {
	remote Remote
	store  *store.Store
	logger *log.Logger

	// toggles on the same task are serialized so the completed flag read
	// before the request is still current when TOGGLE is dispatched.
	mu      sync.Mutex
	pending map[model.ID]*taskLock
}

// taskLock is dropped from pending once no toggle holds or waits on it.
type taskLock struct {
	sync.Mutex
	refs int
}

func New(remote Remote, st *store.Store, logger *log.Logger) *Syncer {
	return &Syncer{
		remote:  remote,
		store:   st,
		logger:  logger,
		pending: make(map[model.ID]*taskLock),
	}
}

// Store exposes the store the syncer writes to.
func (s *Syncer) Store() *store.Store { return s.store }

// Load replaces the local sequence with the server's.
func (s *Syncer) Load(ctx context.Context) error {
	tasks, err := s.remote.List(ctx)
	if err != nil {
		s.logger.Error("Error fetching tasks", "err", err)
		return err
	}
	s.store.Dispatch(store.SetAll{Tasks: tasks})
	return nil
}

// Add creates a task and appends the server's copy.
func (s *Syncer) Add(ctx context.Context, title string) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		s.logger.Warn("Please enter a task title")
		return model.Task{}, ErrEmptyTitle
	}
	task, err := s.remote.Create(ctx, title)
	if err != nil {
		s.logger.Error("Error adding task", "err", err)
		return model.Task{}, err
	}
	s.store.Dispatch(store.Add{Task: task})
	return task, nil
}

// Toggle flips the completed flag of id on the server, then locally.
func (s *Syncer) Toggle(ctx context.Context, id model.ID) error {
	unlock := s.lockTask(id)
	defer unlock()

	current, ok := s.store.Find(id)
	if !ok {
		s.logger.Error("Error updating task", "id", id, "err", ErrUnknownTask)
		return ErrUnknownTask
	}
	if err := s.remote.SetCompleted(ctx, id, !current.Completed); err != nil {
		s.logger.Error("Error updating task", "id", id, "err", err)
		return err
	}
	s.store.Dispatch(store.Toggle{ID: id})
	return nil
}

// Delete removes id on the server, then locally.
func (s *Syncer) Delete(ctx context.Context, id model.ID) error {
	if err := s.remote.Delete(ctx, id); err != nil {
		s.logger.Error("Error deleting task", "id", id, "err", err)
		return err
	}
	s.store.Dispatch(store.Delete{ID: id})
	return nil
}

func (s *Syncer) lockTask(id model.ID) func() {
	s.mu.Lock()
	l, ok := s.pending[id]
	if !ok {
		l = &taskLock{}
		s.pending[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.pending, id)
		}
		s.mu.Unlock()
	}
}
