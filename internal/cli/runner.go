package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tasks/internal/api"
	"github.com/Makepad-fr/tasks/internal/auth"
	"github.com/Makepad-fr/tasks/internal/config"
	"github.com/Makepad-fr/tasks/internal/devserver"
	"github.com/Makepad-fr/tasks/internal/model"
	"github.com/Makepad-fr/tasks/internal/store"
	"github.com/Makepad-fr/tasks/internal/store/jsonstore"
	"github.com/Makepad-fr/tasks/internal/tasksync"
	"github.com/Makepad-fr/tasks/internal/tui"
	"github.com/Makepad-fr/tasks/internal/ui"
)

// Options tune output behavior from root flags.
type Options struct {
	Group bool // list grouped by pending/done
}

// Runner dispatches subcommands. Its fields are set by New; tests swap the
// streams and the credentials directory.
type Runner struct {
	Config *config.Config
	Opt    Options
	Creds  *auth.Credentials
	Logger *log.Logger

	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	theme ui.Theme
}

// New wires a runner for cfg.
func New(cfg *config.Config, opt Options, creds *auth.Credentials, logger *log.Logger, in io.Reader, out, errOut io.Writer) *Runner {
	return &Runner{
		Config: cfg,
		Opt:    opt,
		Creds:  creds,
		Logger: logger,
		In:     in,
		Out:    out,
		ErrOut: errOut,
		theme:  ui.Lookup(cfg.Theme),
	}
}

func (r *Runner) printer() ui.Printer {
	return ui.Printer{Theme: r.theme, Out: r.Out, ErrOut: r.ErrOut}
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func (r *Runner) Run(ctx context.Context, args []string) int {
	p := r.printer()
	if len(args) == 0 {
		r.PrintHelp()
		return 2
	}
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		r.PrintHelp()
		return 0

	case "ls":
		return r.doList(ctx, a)

	case "add":
		if len(a) == 0 {
			p.Fail("usage: tasks add <title...>")
			return 2
		}
		return r.doAdd(ctx, strings.Join(a, " "))

	case "done":
		if len(a) != 1 {
			p.Fail("usage: tasks done <index|id>")
			return 2
		}
		return r.doToggle(ctx, a[0])

	case "rm":
		if len(a) != 1 {
			p.Fail("usage: tasks rm <index|id>")
			return 2
		}
		return r.doRemove(ctx, a[0])

	case "tui":
		return r.doTUI(ctx)

	case "serve":
		return r.doServe(ctx)

	case "auth":
		if len(a) == 0 {
			p.Fail("usage: tasks auth <login|logout|status>")
			return 2
		}
		switch a[0] {
		case "login":
			return r.doAuthLogin()
		case "logout":
			return r.doAuthLogout()
		case "status":
			return r.doAuthStatus()
		default:
			p.Fail("usage: tasks auth <login|logout|status>")
			return 2
		}
	}

	p.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(r.ErrOut)
	r.PrintHelp()
	return 2
}

func (r *Runner) PrintHelp() {
	fmt.Fprintf(r.Out, `tasks - a task list backed by a REST collection

Usage:
  tasks [flags] <subcommand> [args]

Subcommands:
  ls [--group]       List tasks, optionally grouped by pending/done
  add <title...>     Add a task (title can be multiple words)
  done <index|id>    Toggle a task by 1-based index or id
  rm <index|id>      Delete a task by 1-based index or id
  tui                Interactive list
  serve              Run a local /tasks collection on %s
  auth <login|logout|status>   Token for the API

Flags:
  -api URL  -timeout D  -log-level L  -theme T  -config FILE  -group

Examples:
  tasks add "Buy milk"
  tasks ls
  tasks done 2
  tasks rm 3
`, r.Config.Server.Listen)
}

// syncer builds a fresh client + store for one invocation.
func (r *Runner) syncer() (*tasksync.Syncer, error) {
	opts := []api.Option{api.WithTimeout(r.Config.Timeout)}
	if r.Creds != nil {
		ti, err := r.Creds.Get()
		if err != nil {
			return nil, err
		}
		if ti != nil {
			if ti.Expired(time.Now()) {
				r.Logger.Warn("stored token has expired", "expires", ti.ExpiresAt)
			}
			opts = append(opts, api.WithToken(ti.Token))
		}
	}
	client, err := api.New(r.Config.APIURL, opts...)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("using collection", "url", client.BaseURL(), "timeout", r.Config.Timeout)
	return tasksync.New(client, store.New(r.Logger), r.Logger), nil
}

// loaded returns a syncer whose store holds the server's current tasks.
func (r *Runner) loaded(ctx context.Context) (*tasksync.Syncer, int) {
	p := r.printer()
	s, err := r.syncer()
	if err != nil {
		p.Fail("setup: " + err.Error())
		return nil, 1
	}
	if err := s.Load(ctx); err != nil {
		p.Fail("load: " + err.Error())
		return nil, 1
	}
	r.Logger.Debug("loaded", "tasks", s.Store().Len())
	return s, 0
}

// -------------- subcommand impls ----------------

func (r *Runner) doList(ctx context.Context, args []string) int {
	p := r.printer()
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(r.ErrOut)
	group := fs.Bool("group", r.Opt.Group, "group output by pending/done")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		p.Fail("usage: tasks ls [--group]")
		return 2
	}

	s, code := r.loaded(ctx)
	if s == nil {
		return code
	}
	p.Print(r.theme.Panel(r.listLines(s.Store().Tasks(), *group)))
	return 0
}

func (r *Runner) doAdd(ctx context.Context, title string) int {
	p := r.printer()
	s, err := r.syncer()
	if err != nil {
		p.Fail("setup: " + err.Error())
		return 1
	}
	task, err := s.Add(ctx, title)
	if errors.Is(err, tasksync.ErrEmptyTitle) {
		p.Fail("add: empty title")
		return 2
	}
	if err != nil {
		p.Fail("add: " + err.Error())
		return 1
	}
	p.OK(fmt.Sprintf("added %q (id %s)", task.Title, task.ID))
	return 0
}

func (r *Runner) doToggle(ctx context.Context, ref string) int {
	p := r.printer()
	s, code := r.loaded(ctx)
	if s == nil {
		return code
	}
	id, ok := r.resolve(s.Store().Tasks(), ref)
	if !ok {
		return 2
	}
	if err := s.Toggle(ctx, id); err != nil {
		p.Fail("done: " + err.Error())
		return 1
	}
	p.OK("toggled")
	return 0
}

func (r *Runner) doRemove(ctx context.Context, ref string) int {
	p := r.printer()
	s, code := r.loaded(ctx)
	if s == nil {
		return code
	}
	id, ok := r.resolve(s.Store().Tasks(), ref)
	if !ok {
		return 2
	}
	if err := s.Delete(ctx, id); err != nil {
		p.Fail("rm: " + err.Error())
		return 1
	}
	p.OK("removed")
	return 0
}

// resolve maps a 1-based index or a literal id to a task id.
func (r *Runner) resolve(tasks []model.Task, ref string) (model.ID, bool) {
	p := r.printer()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(tasks) {
		return tasks[n-1].ID, true
	}
	for _, t := range tasks {
		if t.ID.String() == ref {
			return t.ID, true
		}
	}
	if _, err := strconv.Atoi(ref); err == nil {
		p.Fail(fmt.Sprintf("index out of range: have %d, got %s", len(tasks), ref))
	} else {
		p.Fail("no task with id " + ref)
	}
	p.Hint("Hint: run `tasks ls` to see valid indexes")
	return "", false
}

func (r *Runner) doTUI(ctx context.Context) int {
	s, err := r.syncer()
	if err != nil {
		r.printer().Fail("setup: " + err.Error())
		return 1
	}
	if err := tui.Run(ctx, s, r.theme); err != nil {
		r.printer().Fail("tui: " + err.Error())
		return 1
	}
	return 0
}

func (r *Runner) doServe(ctx context.Context) int {
	p := r.printer()
	file, err := jsonstore.New(r.Config.Server.DataFile)
	if err != nil {
		p.Fail("serve: " + err.Error())
		return 1
	}
	srv, err := devserver.New(file,
		devserver.WithLogger(r.Logger),
		devserver.WithToken(r.Config.Server.Token),
	)
	if err != nil {
		p.Fail("serve: " + err.Error())
		return 1
	}
	r.Logger.Info("collection file", "path", file.Path, "tasks", len(srv.Tasks()))
	if err := srv.Run(ctx, r.Config.Server.Listen); err != nil {
		p.Fail("serve: " + err.Error())
		return 1
	}
	return 0
}

// -------------- auth ----------------

func (r *Runner) doAuthLogin() int {
	p := r.printer()
	fmt.Fprint(r.Out, "Paste your token: ")
	line, err := bufio.NewReader(r.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		p.Fail("read token: " + err.Error())
		return 1
	}
	fmt.Fprintln(r.Out)
	if err := r.Creds.Set(line, nil); err != nil {
		p.Fail("save token: " + err.Error())
		return 1
	}
	p.OK("logged in")
	return 0
}

func (r *Runner) doAuthLogout() int {
	p := r.printer()
	ti, _ := r.Creds.Get()
	if ti != nil && ti.Source == "env" {
		p.OK("token is provided by " + auth.EnvToken + " (nothing to delete)")
		return 0
	}
	if err := r.Creds.Delete(); err != nil {
		p.Fail("logout: " + err.Error())
		return 1
	}
	p.OK("logged out")
	return 0
}

func (r *Runner) doAuthStatus() int {
	p := r.printer()
	ti, err := r.Creds.Get()
	if err != nil {
		p.Fail("status: " + err.Error())
		return 1
	}
	if ti == nil {
		p.Print(r.theme.Muted.Render("not logged in"))
		p.Print("Run: tasks auth login")
		return 0
	}
	p.Print("source: " + ti.Source)
	if ti.ExpiresAt != nil {
		p.Print("expires: " + ti.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		p.Print("expires: (unknown)")
	}
	p.Print("env override: " + auth.EnvToken)
	return 0
}
