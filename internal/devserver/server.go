// Package devserver serves a local /tasks collection for development and
// tests, persisted to a JSON file.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Makepad-fr/tasks/internal/model"
	"github.com/Makepad-fr/tasks/internal/store"
	"github.com/Makepad-fr/tasks/internal/store/jsonstore"
)

// ErrNotFound is returned for ids not in the collection.
var ErrNotFound = errors.New("task not found")

// Server owns the collection. A nil file keeps everything in memory.
type Server struct {
	mu     sync.Mutex
	tasks  []model.Task
	file   *jsonstore.File
	token  string
	logger *log.Logger
	newID  func() model.ID
	router *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires Authorization: Bearer <token> on every request.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithIDs replaces UUID assignment, mostly for tests.
func WithIDs(next func() model.ID) Option {
	return func(s *Server) { s.newID = next }
}

// New loads the collection from file and builds the router.
func New(file *jsonstore.File, opts ...Option) (*Server, error) {
	s := &Server{
		file:   file,
		tasks:  []model.Task{},
		logger: log.Default(),
		newID:  func() model.ID { return model.ID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	if file != nil {
		tasks, err := file.Load()
		if err != nil {
			return nil, fmt.Errorf("load collection: %w", err)
		}
		s.tasks = tasks
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if s.token != "" {
		router.Use(s.requireToken())
	}

	tasks := router.Group("/tasks")
	{
		tasks.GET("", s.handleList)
		tasks.POST("", s.handleCreate)
		tasks.GET("/:id", s.handleGet)
		tasks.PATCH("/:id", s.handlePatch)
		tasks.DELETE("/:id", s.handleDelete)
	}
	s.router = router
	return s, nil
}

// Handler returns the HTTP handler for the collection.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving /tasks", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Tasks returns a copy of the collection.
func (s *Server) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

func (s *Server) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, s.Tasks())
}

func (s *Server) handleGet(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(model.ID(c.Param("id")))
	if i < 0 {
		abortError(c, http.StatusNotFound, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, s.tasks[i])
}

type createRequest struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

func (s *Server) handleCreate(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		abortError(c, http.StatusBadRequest, errors.New("title is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task := model.Task{ID: s.newID(), Title: title, Completed: req.Completed}
	if err := s.commit(store.Reduce(s.tasks, store.Add{Task: task})); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

type patchRequest struct {
	Title     *string `json:"title"`
	Completed *bool   `json:"completed"`
}

func (s *Server) handlePatch(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		abortError(c, http.StatusBadRequest, errors.New("title cannot be empty"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(model.ID(c.Param("id")))
	if i < 0 {
		abortError(c, http.StatusNotFound, ErrNotFound)
		return
	}
	next := slices.Clone(s.tasks)
	if req.Title != nil {
		next[i].Title = strings.TrimSpace(*req.Title)
	}
	if req.Completed != nil {
		next[i].Completed = *req.Completed
	}
	if err := s.commit(next); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, next[i])
}

func (s *Server) handleDelete(c *gin.Context) {
	id := model.ID(c.Param("id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		abortError(c, http.StatusNotFound, ErrNotFound)
		return
	}
	if err := s.commit(store.Reduce(s.tasks, store.Delete{ID: id})); err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// commit persists next and makes it current. Callers hold s.mu.
func (s *Server) commit(next []model.Task) error {
	if s.file != nil {
		if err := s.file.Save(next); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}
	s.tasks = next
	return nil
}

func (s *Server) indexOf(id model.ID) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(got), "bearer ") || strings.TrimSpace(got[7:]) != s.token {
			abortError(c, http.StatusUnauthorized, errors.New("missing or invalid token"))
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
