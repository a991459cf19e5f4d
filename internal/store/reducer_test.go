package store

import (
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/Makepad-fr/tasks/internal/model"
)

type renameAction struct{}

func (renameAction) Type() string { return "RENAME_TASK" }

// taskListGenerator generates sequences with unique ids.
func taskListGenerator() *rapid.Generator[[]model.Task] {
	return rapid.Custom(func(t *rapid.T) []model.Task {
		n := rapid.IntRange(0, 20).Draw(t, "n")
		tasks := make([]model.Task, n)
		for i := range tasks {
			tasks[i] = model.Task{
				ID:        model.ID(fmt.Sprintf("t%d", i)),
				Title:     rapid.StringMatching(`[A-Za-z0-9 ]{1,30}`).Draw(t, "title"),
				Completed: rapid.Bool().Draw(t, "completed"),
			}
		}
		return tasks
	})
}

func TestReduceAddAppendsPreservingOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := taskListGenerator().Draw(t, "current")
		before := slices.Clone(current)
		added := model.Task{ID: "new", Title: "added"}

		next := Reduce(current, Add{Task: added})

		if len(next) != len(current)+1 {
			t.Fatalf("len = %d, want %d", len(next), len(current)+1)
		}
		if !slices.Equal(next[:len(current)], before) {
			t.Fatalf("prefix changed: %v vs %v", next[:len(current)], before)
		}
		if next[len(next)-1] != added {
			t.Fatalf("last = %v, want %v", next[len(next)-1], added)
		}
		if !slices.Equal(current, before) {
			t.Fatal("input was modified")
		}
	})
}

func TestReduceToggleFlipsOnlyMatchingID(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := taskListGenerator().Filter(func(ts []model.Task) bool { return len(ts) > 0 }).Draw(t, "current")
		before := slices.Clone(current)
		idx := rapid.IntRange(0, len(current)-1).Draw(t, "idx")
		target := current[idx].ID

		next := Reduce(current, Toggle{ID: target})

		if len(next) != len(current) {
			t.Fatalf("len = %d, want %d", len(next), len(current))
		}
		for i := range next {
			want := before[i]
			if want.ID == target {
				want.Completed = !want.Completed
			}
			if next[i] != want {
				t.Fatalf("next[%d] = %v, want %v", i, next[i], want)
			}
		}
		if !slices.Equal(current, before) {
			t.Fatal("input was modified")
		}
	})
}

func TestReduceDeleteRemovesOnlyMatchingID(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := taskListGenerator().Filter(func(ts []model.Task) bool { return len(ts) > 0 }).Draw(t, "current")
		before := slices.Clone(current)
		idx := rapid.IntRange(0, len(current)-1).Draw(t, "idx")

		next := Reduce(current, Delete{ID: current[idx].ID})

		want := slices.Delete(slices.Clone(before), idx, idx+1)
		if !slices.Equal(next, want) {
			t.Fatalf("next = %v, want %v", next, want)
		}
		if !slices.Equal(current, before) {
			t.Fatal("input was modified")
		}
	})
}

func TestReduceUnknownActionReturnsSameSlice(t *testing.T) {
	current := []model.Task{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}}

	next := Reduce(current, renameAction{})

	if len(next) != len(current) || &next[0] != &current[0] {
		t.Fatal("expected the identical slice back")
	}
}

func TestReduce(t *testing.T) {
	base := []model.Task{
		{ID: "1", Title: "milk"},
		{ID: "2", Title: "bread", Completed: true},
	}

	tests := []struct {
		name   string
		action Action
		want   []model.Task
	}{
		{
			name:   "set all replaces",
			action: SetAll{Tasks: []model.Task{{ID: "9", Title: "eggs"}}},
			want:   []model.Task{{ID: "9", Title: "eggs"}},
		},
		{
			name:   "set all with nothing empties",
			action: SetAll{},
			want:   nil,
		},
		{
			name:   "toggle missing id is a no-op",
			action: Toggle{ID: "404"},
			want:   base,
		},
		{
			name:   "delete missing id is a no-op",
			action: Delete{ID: "404"},
			want:   base,
		},
		{
			name:   "toggle completed back to pending",
			action: Toggle{ID: "2"},
			want:   []model.Task{{ID: "1", Title: "milk"}, {ID: "2", Title: "bread"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(base, tt.action)
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
