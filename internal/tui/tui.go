// Package tui is the interactive task list: a Bubble Tea list with an inline
// add form. Every change goes through the syncer; the list is redrawn from
// the store once a request comes back.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tasks/internal/model"
	"github.com/Makepad-fr/tasks/internal/tasksync"
	"github.com/Makepad-fr/tasks/internal/ui"
)

// taskItem adapts model.Task to list.Item.
type taskItem struct{ task model.Task }

func (i taskItem) FilterValue() string { return i.task.Title }

// itemDelegate renders one task per line.
type itemDelegate struct{ theme ui.Theme }

func (d itemDelegate) Height() int                         { return 1 }
func (d itemDelegate) Spacing() int                        { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(taskItem)
	if !ok {
		return
	}
	box := d.theme.Muted.Render(d.theme.BoxUnchecked)
	text := it.task.Title
	if it.task.Completed {
		box = d.theme.Success.Render(d.theme.BoxChecked)
		text = d.theme.Done.Render(text)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = d.theme.Selected.Render(">") + " "
	}
	fmt.Fprintf(w, "%s%s %s", prefix, box, text)
}

type (
	loadedMsg  struct{ err error }
	addedMsg   struct{ err error }
	toggledMsg struct{ err error }
	deletedMsg struct{ err error }
)

// Model is the Bubble Tea model.
type Model struct {
	ctx    context.Context
	syncer *tasksync.Syncer
	theme  ui.Theme

	list list.Model
	ti   textinput.Model

	adding  bool
	addErr  string
	status  string
	loading bool

	width, height int
}

var (
	addBind    = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add"))
	toggleBind = key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle"))
	deleteBind = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete"))
	reloadBind = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload"))
)

// New builds the model; Init triggers the initial load.
func New(ctx context.Context, syncer *tasksync.Syncer, theme ui.Theme) Model {
	l := list.New(nil, itemDelegate{theme: theme}, 0, 0)
	l.Title = "Tasks"
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("task", "tasks")
	l.Styles.Title = theme.Title
	l.Styles.HelpStyle = theme.Muted
	l.Styles.PaginationStyle = theme.Muted
	l.FilterInput.Prompt = "/ "
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{addBind, toggleBind, deleteBind} }
	l.AdditionalFullHelpKeys = func() []key.Binding { return []key.Binding{addBind, toggleBind, deleteBind, reloadBind} }

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Add new task"
	ti.CharLimit = 200

	m := Model{
		ctx:     ctx,
		syncer:  syncer,
		theme:   theme,
		list:    l,
		ti:      ti,
		loading: true,
		width:   80,
		height:  24,
	}
	m.resize()
	return m
}

// Run starts the program on the alternate screen.
func Run(ctx context.Context, syncer *tasksync.Syncer, theme ui.Theme) error {
	p := tea.NewProgram(New(ctx, syncer, theme), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd { return m.loadCmd() }

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg { return loadedMsg{err: m.syncer.Load(m.ctx)} }
}

func (m Model) addCmd(title string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.syncer.Add(m.ctx, title)
		return addedMsg{err: err}
	}
}

func (m Model) toggleCmd(id model.ID) tea.Cmd {
	return func() tea.Msg { return toggledMsg{err: m.syncer.Toggle(m.ctx, id)} }
}

func (m Model) deleteCmd(id model.ID) tea.Cmd {
	return func() tea.Msg { return deletedMsg{err: m.syncer.Delete(m.ctx, id)} }
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case loadedMsg:
		m.loading = false
		return m.afterSync(msg.err, "Error fetching tasks")
	case addedMsg:
		return m.afterSync(msg.err, "Error adding task")
	case toggledMsg:
		return m.afterSync(msg.err, "Error updating task")
	case deletedMsg:
		return m.afterSync(msg.err, "Error deleting task")
	}

	if m.adding {
		return m.updateAdding(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch k.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "a":
			m.adding = true
			m.addErr = ""
			m.ti.SetValue("")
			m.resize()
			return m, m.ti.Focus()
		case "r":
			m.status = "loading..."
			return m, m.loadCmd()
		case " ":
			if it, ok := m.list.SelectedItem().(taskItem); ok {
				return m, m.toggleCmd(it.task.ID)
			}
			return m, nil
		case "d":
			if it, ok := m.list.SelectedItem().(taskItem); ok {
				return m, m.deleteCmd(it.task.ID)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateAdding(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "enter":
			title := strings.TrimSpace(m.ti.Value())
			if title == "" {
				m.addErr = "Title cannot be empty"
				return m, nil
			}
			m.closeForm()
			return m, m.addCmd(title)
		case "esc":
			m.closeForm()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) closeForm() {
	m.adding = false
	m.addErr = ""
	m.ti.SetValue("")
	m.ti.Blur()
	m.resize()
}

// afterSync redraws the list from the store. On failure the store is
// unchanged, so only the status line moves.
func (m Model) afterSync(err error, what string) (tea.Model, tea.Cmd) {
	if err != nil {
		m.status = what + ": " + err.Error()
	} else {
		m.status = ""
	}
	return m, m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	tasks := m.syncer.Store().Tasks()
	items := make([]list.Item, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, taskItem{task: t})
	}
	done, pending := model.Stats(tasks)
	m.list.Title = fmt.Sprintf("Tasks   %s %d  %s %d",
		m.theme.SymDone, done, m.theme.SymPending, pending)
	return m.list.SetItems(items)
}

func (m *Model) resize() {
	h := m.height - 4
	if m.adding {
		h -= 3
	}
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) View() string {
	if m.loading {
		return m.theme.Frame(m.theme.Muted.Render("Loading tasks..."))
	}
	content := m.list.View()
	if m.adding {
		title := "Add new task"
		if m.addErr != "" {
			title += " " + m.theme.Error.Render(m.addErr)
		}
		content += "\n" + m.theme.Frame(title+"\n"+m.ti.View())
	}
	if m.status != "" {
		content += "\n" + m.theme.Error.Render(m.status)
	}
	return m.theme.Frame(content)
}

// tasks returns what the list currently shows, in order.
func (m Model) tasks() []model.Task {
	items := m.list.Items()
	out := make([]model.Task, 0, len(items))
	for _, it := range items {
		if ti, ok := it.(taskItem); ok {
			out = append(out, ti.task)
		}
	}
	return out
}
