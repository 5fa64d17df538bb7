// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/trondev/trondev/internal/config"
	"github.com/trondev/trondev/internal/release"
	"github.com/trondev/trondev/internal/supervisor"
	"github.com/trondev/trondev/internal/testutil"
)

type (
	// syncBuffer guards a bytes.Buffer; the process logger may write from other goroutines.
	syncBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}

	staticConfig struct {
		cfg  *config.Config
		path string
		err  error
	}

	fakeSupervisor struct {
		mu         sync.Mutex
		stops      int
		err        error
		entries    []supervisor.Entry
		running    map[string]bool
		registered map[string]int32
	}

	fakeReleases struct {
		releases []release.Release
		err      error
	}

	// releaseServer serves any *.jar path and records the requested paths.
	releaseServer struct {
		*httptest.Server
		mu       sync.Mutex
		requests []string
	}

	// cli runs the command tree against a temporary workspace.
	cli struct {
		t          *testing.T
		dir        string
		cfg        *config.Config
		server     *releaseServer
		supervisor *fakeSupervisor
		releases   *fakeReleases
		javaOutput string
		configErr  error
	}
)

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (c *staticConfig) LoadWithSource(context.Context, config.LoadOptions) (*config.Config, string, error) {
	if c.err != nil {
		return nil, "", c.err
	}
	return c.cfg, c.path, nil
}

func (s *fakeSupervisor) StopAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return s.err
}

func (s *fakeSupervisor) Register(name string, pid int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered == nil {
		s.registered = make(map[string]int32)
	}
	s.registered[name] = pid
	return nil
}

func (s *fakeSupervisor) List() ([]supervisor.Entry, error) { return s.entries, nil }

func (s *fakeSupervisor) Running(_ context.Context, e supervisor.Entry) bool { return s.running[e.Name] }

func (s *fakeSupervisor) stopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

func (f *fakeReleases) ListReleases(context.Context) ([]release.Release, error) {
	return f.releases, f.err
}

func (f *fakeReleases) GetReleaseByTag(_ context.Context, tag string) (*release.Release, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.releases {
		if f.releases[i].TagName == tag {
			return &f.releases[i], nil
		}
	}
	return nil, release.ErrReleaseNotFound
}

func newReleaseServer(t *testing.T) *releaseServer {
	t.Helper()
	rs := &releaseServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.requests = append(rs.requests, r.URL.Path)
		rs.mu.Unlock()
		if !strings.HasSuffix(r.URL.Path, ".jar") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "jar:%s", r.URL.Path)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) paths() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.requests...)
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	server := newReleaseServer(t)
	cfg := config.DefaultConfig()
	cfg.Releases.BaseURL = server.URL + "/download/"
	cfg.Sources.EventNode.URL = testutil.MustGitRepo(t, cfg.Sources.EventNode.Branch, map[string]string{"README.md": "event-query"})
	cfg.Sources.GridAPI.URL = testutil.MustGitRepo(t, cfg.Sources.GridAPI.Branch, map[string]string{"README.md": "tron-grid"})
	return &cli{
		t:          t,
		dir:        t.TempDir(),
		cfg:        cfg,
		server:     server,
		supervisor: &fakeSupervisor{},
		releases:   &fakeReleases{},
		javaOutput: `java version "1.8.0_301"`,
	}
}

// run executes trondev with args against the workspace, returning stdout,
// stderr and the command error.
func (c *cli) run(args ...string) (string, string, error) {
	c.t.Helper()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	deps := Dependencies{
		Config:      &staticConfig{cfg: c.cfg, err: c.configErr},
		Releases:    c.releases,
		ExecCommand: helperCommand(c.javaOutput),
		HTTPClient:  c.server.Client(),
		Stdout:      stdout,
		Stderr:      stderr,
	}
	// A nil fake leaves the workspace supervisor in place.
	if c.supervisor != nil {
		deps.Supervisor = c.supervisor
	}
	app, err := NewApp(deps)
	if err != nil {
		c.t.Fatalf("NewApp() error = %v", err)
	}

	root := NewRootCommand(app)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append(args, "--dir", c.dir))
	err = root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// exitCode extracts the ExitError code, failing the test for other errors.
func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v (%T) is not an ExitError", err, err)
	}
	return int(exitErr.Code)
}

// helperCommand re-executes the test binary as TestHelperProcess. The fake
// java prints javaOutput on stderr like the real launcher.
func helperCommand(javaOutput string) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		//nolint:gosec // TestHelperProcess is a test-only pattern
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"GO_HELPER_JAVA_OUTPUT=" + javaOutput,
		}
		return cmd
	}
}

// TestHelperProcess is not a real test. It is used as a mock subprocess.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch args[0] {
	case "java":
		out := os.Getenv("GO_HELPER_JAVA_OUTPUT")
		if out == "" {
			fmt.Fprintln(os.Stderr, "java: command not found")
			os.Exit(127)
		}
		fmt.Fprintln(os.Stderr, out)
	default:
		fmt.Fprintf(os.Stderr, "unexpected command %q\n", args[0])
		os.Exit(2)
	}
	os.Exit(0)
}
