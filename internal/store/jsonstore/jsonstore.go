package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Makepad-fr/tasks/internal/model"
)

// JSON-backed storage for the dev collection server. Single file,
// human-readable, portable. Callers serialize access.

// DefaultFileName is used when no data file is configured.
const DefaultFileName = "tasks.json"

// File persists a task sequence at Path.
type File struct {
	Path string
}

// New resolves a relative path against the working directory.
func New(path string) (*File, error) {
	if path == "" {
		path = DefaultFileName
	}
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getwd: %w", err)
		}
		path = filepath.Join(wd, path)
	}
	return &File{Path: path}, nil
}

// Load returns an empty sequence when the file does not exist yet.
func (f *File) Load() ([]model.Task, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Task{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	var tasks []model.Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// Save writes to a temp file in the same directory and renames it over Path.
func (f *File) Save(tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	b, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
