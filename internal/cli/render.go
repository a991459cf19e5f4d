package cli

import (
	"fmt"

	"github.com/Makepad-fr/tasks/internal/model"
	"github.com/Makepad-fr/tasks/internal/ui"
)

const maxTitle = 80

// listLines builds the `ls` panel: header, progress, tasks, tip.
func (r *Runner) listLines(tasks []model.Task, group bool) []string {
	t := r.theme
	d, p := model.Stats(tasks)
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		t.Title.Render("Tasks"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(tasks),
	)

	lines := []string{header, t.Muted.Render(ui.ProgressBar(d, d+p, 28)), ""}
	if group {
		lines = append(lines, groupLines(t, tasks)...)
	} else {
		lines = append(lines, flatLines(t, tasks, 1)...)
	}
	lines = append(lines, "", t.Muted.Render("Tip: add with `tasks add \"Buy milk\"`"))
	return lines
}

// flatLines numbers tasks from first; the numbers are what `done` and `rm`
// accept, so grouped output keeps each task's original position.
func flatLines(t ui.Theme, tasks []model.Task, first int) []string {
	if len(tasks) == 0 {
		return []string{t.Muted.Render("no tasks")}
	}
	out := make([]string, 0, len(tasks))
	for i, task := range tasks {
		out = append(out, taskLine(t, first+i, task))
	}
	return out
}

func taskLine(t ui.Theme, n int, task model.Task) string {
	title := task.Title
	if len([]rune(title)) > maxTitle {
		title = string([]rune(title)[:maxTitle-3]) + "..."
	}
	box := t.Muted.Render(t.BoxUnchecked)
	if task.Completed {
		box, title = t.Success.Render(t.BoxChecked), t.Done.Render(title)
	}
	return fmt.Sprintf("%s %s %s", t.Muted.Render(fmt.Sprintf("%2d.", n)), box, title)
}

func groupLines(t ui.Theme, tasks []model.Task) []string {
	var pend, done []string
	for i, task := range tasks {
		if task.Completed {
			done = append(done, taskLine(t, i+1, task))
		} else {
			pend = append(pend, taskLine(t, i+1, task))
		}
	}
	none := t.Muted.Render("(none)")
	lines := []string{t.Accent.Render("Pending")}
	if len(pend) == 0 {
		lines = append(lines, none)
	}
	lines = append(lines, pend...)
	lines = append(lines, "", t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, none)
	}
	return append(lines, done...)
}
