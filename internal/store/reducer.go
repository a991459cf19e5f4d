// Package store holds the client-side task sequence and the pure transition
// function that updates it.
package store

import (
	"slices"

	"github.com/Makepad-fr/tasks/internal/model"
)

// Action is a state transition request. Reduce knows SetAll, Add, Toggle and
// Delete; any other Action is ignored.
type Action interface {
	Type() string
}

// SetAll replaces the whole sequence, typically after the initial load.
type SetAll struct{ Tasks []model.Task }

// Add appends one task.
type Add struct{ Task model.Task }

// Toggle flips the completed flag of the task with ID.
type Toggle struct{ ID model.ID }

// Delete removes the task with ID.
type Delete struct{ ID model.ID }

func (SetAll) Type() string { return "SET_TASKS" }
func (Add) Type() string    { return "ADD_TASK" }
func (Toggle) Type() string { return "TOGGLE_TASK" }
func (Delete) Type() string { return "DELETE_TASK" }

// Reduce returns the sequence that results from applying a to current.
// current is never modified. Unknown actions return current itself.
func Reduce(current []model.Task, a Action) []model.Task {
	switch a := a.(type) {
	case SetAll:
		return slices.Clone(a.Tasks)
	case Add:
		next := make([]model.Task, 0, len(current)+1)
		next = append(next, current...)
		return append(next, a.Task)
	case Toggle:
		next := slices.Clone(current)
		for i := range next {
			if next[i].ID == a.ID {
				next[i].Completed = !next[i].Completed
			}
		}
		return next
	case Delete:
		next := make([]model.Task, 0, len(current))
		for _, t := range current {
			if t.ID != a.ID {
				next = append(next, t)
			}
		}
		return next
	default:
		return current
	}
}
