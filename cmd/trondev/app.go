// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/trondev/trondev/internal/config"
	"github.com/trondev/trondev/internal/console"
	"github.com/trondev/trondev/internal/issue"
	"github.com/trondev/trondev/internal/provision"
	"github.com/trondev/trondev/internal/release"
	"github.com/trondev/trondev/internal/supervisor"
	"github.com/trondev/trondev/internal/transport"
	"github.com/trondev/trondev/internal/workspace"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra handler receives an App and builds its services here.
	App struct {
		Config      ConfigProvider
		transport   provision.Transport
		releases    ReleaseLister
		supervisor  Supervisor
		execCommand provision.ExecCommandFunc
		httpClient  *http.Client
		stdout      io.Writer
		stderr      io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults, built per workspace and configuration.
	Dependencies struct {
		Config      ConfigProvider
		Transport   provision.Transport
		Releases    ReleaseLister
		Supervisor  Supervisor
		ExecCommand provision.ExecCommandFunc
		HTTPClient  *http.Client
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// ReleaseLister looks up published node releases.
	ReleaseLister interface {
		// ListReleases returns stable releases, newest first.
		ListReleases(ctx context.Context) ([]release.Release, error)
		GetReleaseByTag(ctx context.Context, tag string) (*release.Release, error)
	}

	// Supervisor records, stops and inspects managed node processes.
	Supervisor interface {
		provision.Supervisor
		Register(name string, pid int32) error
		List() ([]supervisor.Entry, error)
		Running(ctx context.Context, e supervisor.Entry) bool
	}

	// session is the per-invocation state resolved from the root flags.
	session struct {
		app     *App
		flags   *rootFlags
		ws      *workspace.Workspace
		cfg     *config.Config
		cfgPath string
		cfgErr  error
		logs    *console.Logs
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}

	return &App{
		Config:      deps.Config,
		transport:   deps.Transport,
		releases:    deps.Releases,
		supervisor:  deps.Supervisor,
		execCommand: deps.ExecCommand,
		httpClient:  deps.HTTPClient,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
	}, nil
}

// transportFor returns the artifact transport downloading into the workspace root.
func (a *App) transportFor(ws *workspace.Workspace) provision.Transport {
	if a.transport != nil {
		return a.transport
	}
	opts := []transport.Option{
		transport.WithHTTPClient(a.httpClient),
		transport.WithUserAgent("trondev/" + Version),
		transport.WithGitToken(os.Getenv("GITHUB_TOKEN")),
	}
	return transport.New(ws.Root(), opts...)
}

// supervisorFor returns the process supervisor of the workspace.
func (a *App) supervisorFor(ws *workspace.Workspace) (Supervisor, error) {
	if a.supervisor != nil {
		return a.supervisor, nil
	}
	return supervisor.New(ws.StateDir())
}

// releasesFor returns the release lister configured by cfg.
func (a *App) releasesFor(cfg *config.Config) ReleaseLister {
	if a.releases != nil {
		return a.releases
	}
	opts := []release.ClientOption{
		release.WithHTTPClient(a.httpClient),
		release.WithBaseURL(cfg.GitHub.APIURL),
		release.WithRepo(cfg.GitHub.Owner, cfg.GitHub.Repo),
		release.WithUserAgent("trondev/" + Version),
	}
	// A token raises the API rate limit from 60 to 5000 requests per hour.
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		opts = append(opts, release.WithToken(token))
	}
	return release.NewClient(opts...)
}

// newSession loads configuration and builds the process logger. A config load
// failure is kept and surfaced by the commands that need the configuration.
func newSession(ctx context.Context, app *App, flags *rootFlags) (*session, error) {
	s := &session{app: app, flags: flags}

	var err error
	if flags.dir != "" {
		s.ws, err = workspace.New(flags.dir)
	} else {
		s.ws, err = workspace.FromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	s.cfg, s.cfgPath, s.cfgErr = app.Config.LoadWithSource(ctx, config.LoadOptions{ConfigFilePath: flags.configFile})

	logOpts := console.LogOptions{Verbose: flags.verbose, File: flags.logFile}
	if s.cfg != nil {
		logOpts.Verbose = logOpts.Verbose || s.cfg.UI.Verbose
		if logOpts.File == "" {
			logOpts.File = s.cfg.Log.File
		}
		logOpts.MaxSizeMB = s.cfg.Log.MaxSizeMB
		logOpts.MaxBackups = s.cfg.Log.MaxBackups
		logOpts.MaxAgeDays = s.cfg.Log.MaxAgeDays
	}
	s.logs = console.NewLogger(app.stderr, logOpts)
	slog.SetDefault(s.logs.Logger)

	slog.Debug("session ready", "workspace", s.ws.Root(), "config", s.cfgPath, "verbose", logOpts.Verbose)
	return s, nil
}

func (s *session) verbose() bool {
	return s.flags.verbose || (s.cfg != nil && s.cfg.UI.Verbose)
}

// requireConfig returns the loaded configuration or renders why it failed.
func (s *session) requireConfig() (*config.Config, error) {
	if s.cfgErr == nil {
		return s.cfg, nil
	}
	s.renderIssue(issue.ConfigLoadFailedId)
	fmt.Fprintln(s.app.stderr, formatErrorForDisplay(s.cfgErr, s.verbose()))
	return nil, &ExitError{Code: classifyExitCode(s.cfgErr), Err: s.cfgErr}
}

// reporter returns a console reporter, mirrored into the log file when one is configured.
func (s *session) reporter() *console.Reporter {
	if s.logs.File == nil {
		return console.NewReporter(s.app.stdout)
	}
	return console.NewReporter(s.app.stdout, console.WithMirror(s.logs.File))
}

// fail renders err with its catalog entry and wraps it in an ExitError.
func (s *session) fail(err error) error {
	if id, ok := issueFor(err); ok {
		s.renderIssue(id)
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		fmt.Fprintln(s.app.stderr, ae.Format(s.verbose()))
	}
	return &ExitError{Code: classifyExitCode(err), Err: err}
}

func (s *session) renderIssue(id issue.Id) {
	entry := issue.Get(id)
	if entry == nil {
		return
	}
	rendered, err := entry.Render("dark")
	if err != nil {
		slog.Debug("rendering issue failed", "id", id, "error", err)
		return
	}
	fmt.Fprint(s.app.stderr, rendered)
}

func (s *session) close() {
	if s.logs == nil {
		return
	}
	if err := s.logs.Close(); err != nil {
		fmt.Fprintln(s.app.stderr, WarningStyle.Render("Warning: ")+"closing log file: "+err.Error())
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
