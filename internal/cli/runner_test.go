package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/Makepad-fr/tasks/internal/auth"
	"github.com/Makepad-fr/tasks/internal/config"
	"github.com/Makepad-fr/tasks/internal/devserver"
	"github.com/Makepad-fr/tasks/internal/model"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type harness struct {
	runner   *Runner
	server   *devserver.Server
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	requests *atomic.Int64
}

func newHarness(t *testing.T, seed ...string) *harness {
	t.Helper()
	t.Setenv(auth.EnvToken, "")

	n := 0
	srv, err := devserver.New(nil,
		devserver.WithLogger(log.New(io.Discard)),
		devserver.WithIDs(func() model.ID {
			n++
			return model.ID("id" + string(rune('0'+n)))
		}),
	)
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	var requests atomic.Int64
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(hs.Close)

	cfg := &config.Config{
		APIURL:  hs.URL,
		Timeout: 5 * time.Second,
		Theme:   "mono",
		Server:  config.ServerConfig{Listen: ":0"},
	}
	var out, errOut bytes.Buffer
	creds := &auth.Credentials{Dir: t.TempDir()}
	r := New(cfg, Options{}, creds, log.New(io.Discard), strings.NewReader(""), &out, &errOut)

	h := &harness{runner: r, server: srv, out: &out, errOut: &errOut, requests: &requests}
	for _, title := range seed {
		if code := h.run("add", title); code != 0 {
			t.Fatalf("seed add %q: exit %d: %s", title, code, errOut.String())
		}
	}
	out.Reset()
	errOut.Reset()
	requests.Store(0)
	return h
}

func (h *harness) run(args ...string) int {
	return h.runner.Run(context.Background(), args)
}

func TestList(t *testing.T) {
	h := newHarness(t, "milk", "bread")
	h.run("done", "2")
	h.out.Reset()

	if code := h.run("ls"); code != 0 {
		t.Fatalf("exit %d: %s", code, h.errOut.String())
	}
	out := h.out.String()
	for _, want := range []string{" 1. [ ] milk", " 2. [x] bread", "x 1", "- 1", "Total 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("ls output missing %q:\n%s", want, out)
		}
	}
}

func TestListGrouped(t *testing.T) {
	h := newHarness(t, "milk", "bread")
	h.run("done", "1")
	h.out.Reset()
	h.runner.Opt.Group = true

	if code := h.run("ls"); code != 0 {
		t.Fatalf("exit %d", code)
	}
	out := h.out.String()
	pending := strings.Index(out, "Pending")
	done := strings.Index(out, "Done")
	bread := strings.Index(out, " 2. [ ] bread")
	milk := strings.Index(out, " 1. [x] milk")
	if pending < 0 || done < 0 || bread < 0 || milk < 0 {
		t.Fatalf("unexpected grouped output:\n%s", out)
	}
	if !(pending < bread && bread < done && done < milk) {
		t.Errorf("wrong grouping order:\n%s", out)
	}
}

func TestListGroupFlagAfterSubcommand(t *testing.T) {
	h := newHarness(t, "milk", "bread")
	h.run("done", "1")
	h.out.Reset()

	if code := h.run("ls", "--group"); code != 0 {
		t.Fatalf("exit %d: %s", code, h.errOut.String())
	}
	out := h.out.String()
	if !strings.Contains(out, "Pending") || !strings.Contains(out, "Done") {
		t.Errorf("ls --group printed a flat list:\n%s", out)
	}
}

func TestListRejectsExtraArgs(t *testing.T) {
	h := newHarness(t, "milk")

	for _, args := range [][]string{{"ls", "milk"}, {"ls", "--bogus"}} {
		h.errOut.Reset()
		if code := h.run(args...); code != 2 {
			t.Errorf("%v: exit %d, want 2", args, code)
		}
	}
	if h.requests.Load() != 0 {
		t.Errorf("requests = %d, want 0", h.requests.Load())
	}
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)
	if code := h.run("ls"); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(h.out.String(), "no tasks") {
		t.Errorf("output: %s", h.out.String())
	}
}

func TestAdd(t *testing.T) {
	h := newHarness(t)

	if code := h.run("add", "buy", "oat", "milk"); code != 0 {
		t.Fatalf("exit %d: %s", code, h.errOut.String())
	}
	got := h.server.Tasks()
	if len(got) != 1 || got[0].Title != "buy oat milk" || got[0].Completed {
		t.Errorf("server = %+v", got)
	}
	if !strings.Contains(h.out.String(), "added") {
		t.Errorf("output: %s", h.out.String())
	}
}

func TestAddEmptyTitle(t *testing.T) {
	h := newHarness(t)

	if code := h.run("add", "   "); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if h.requests.Load() != 0 {
		t.Errorf("requests = %d, want 0", h.requests.Load())
	}
	if !strings.Contains(h.errOut.String(), "empty title") {
		t.Errorf("stderr: %s", h.errOut.String())
	}
}

func TestDoneAndRemove(t *testing.T) {
	h := newHarness(t, "milk", "bread", "eggs")

	if code := h.run("done", "id2"); code != 0 {
		t.Fatalf("done by id: exit %d: %s", code, h.errOut.String())
	}
	if code := h.run("rm", "1"); code != 0 {
		t.Fatalf("rm by index: exit %d: %s", code, h.errOut.String())
	}

	got := h.server.Tasks()
	want := []model.Task{{ID: "id2", Title: "bread", Completed: true}, {ID: "id3", Title: "eggs"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("server = %+v, want %+v", got, want)
	}
}

func TestResolveErrors(t *testing.T) {
	h := newHarness(t, "milk")

	tests := []struct {
		args    []string
		wantErr string
	}{
		{args: []string{"done", "5"}, wantErr: "index out of range: have 1, got 5"},
		{args: []string{"rm", "0"}, wantErr: "index out of range"},
		{args: []string{"rm", "nope"}, wantErr: "no task with id nope"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			h.errOut.Reset()
			if code := h.run(tt.args...); code != 2 {
				t.Fatalf("exit %d, want 2", code)
			}
			if !strings.Contains(h.errOut.String(), tt.wantErr) {
				t.Errorf("stderr = %q", h.errOut.String())
			}
		})
	}
	if got := h.server.Tasks(); len(got) != 1 {
		t.Errorf("server changed: %+v", got)
	}
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	tests := [][]string{
		{},
		{"add"},
		{"done"},
		{"rm", "1", "2"},
		{"auth"},
		{"auth", "whoami"},
		{"frobnicate"},
	}
	for _, args := range tests {
		if code := h.run(args...); code != 2 {
			t.Errorf("%v: exit %d, want 2", args, code)
		}
	}
	if code := h.run("help"); code != 0 {
		t.Errorf("help: exit %d", code)
	}
}

func TestServerUnreachable(t *testing.T) {
	h := newHarness(t)
	h.runner.Config.APIURL = "http://127.0.0.1:1"

	if code := h.run("ls"); code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if !strings.Contains(h.errOut.String(), "load:") {
		t.Errorf("stderr = %q", h.errOut.String())
	}
}

func TestAuthCommands(t *testing.T) {
	h := newHarness(t)
	h.runner.In = strings.NewReader("Bearer tok-123\n")

	if code := h.run("auth", "login"); code != 0 {
		t.Fatalf("login: exit %d: %s", code, h.errOut.String())
	}
	ti, err := h.runner.Creds.Get()
	if err != nil || ti == nil || ti.Token != "tok-123" {
		t.Fatalf("stored token = %+v, %v", ti, err)
	}

	h.out.Reset()
	if code := h.run("auth", "status"); code != 0 {
		t.Fatalf("status: exit %d", code)
	}
	if !strings.Contains(h.out.String(), "source: file") {
		t.Errorf("status output: %s", h.out.String())
	}

	if code := h.run("auth", "logout"); code != 0 {
		t.Fatalf("logout: exit %d", code)
	}
	if _, err := os.Stat(filepath.Join(h.runner.Creds.Dir, "credentials.json")); !os.IsNotExist(err) {
		t.Errorf("credentials file still present: %v", err)
	}
}

func TestTokenIsSentToAPI(t *testing.T) {
	var got atomic.Value
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, "[]")
	}))
	t.Cleanup(hs.Close)

	h := newHarness(t)
	h.runner.Config.APIURL = hs.URL
	if err := h.runner.Creds.Set("abc", nil); err != nil {
		t.Fatal(err)
	}

	if code := h.run("ls"); code != 0 {
		t.Fatalf("exit %d: %s", code, h.errOut.String())
	}
	if v, _ := got.Load().(string); v != "Bearer abc" {
		t.Errorf("Authorization = %q", v)
	}
}

func TestServeStopsWithContext(t *testing.T) {
	h := newHarness(t)
	h.runner.Config.Server = config.ServerConfig{
		Listen:   "127.0.0.1:0",
		DataFile: filepath.Join(t.TempDir(), "tasks.json"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if code := h.runner.Run(ctx, []string{"serve"}); code != 0 {
		t.Fatalf("exit %d: %s", code, h.errOut.String())
	}
}
