// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/trondev/trondev/internal/issue"
	"github.com/trondev/trondev/internal/state"
	"github.com/trondev/trondev/internal/workspace"
)

const (
	// FullNodeJar is the destination file name inside the full-node directory.
	FullNodeJar = "FullNode.jar"
	// SolidityNodeJar is the destination file name inside the solidity-node directory.
	SolidityNodeJar = "SolidityNode.jar"
	// LogConfigFile is the logging configuration copied into the java node directories.
	LogConfigFile = "logback.xml"
)

// jdkVersionPattern extracts major.minor from `java -version` output,
// e.g. `openjdk version "1.8.0_292"`.
var jdkVersionPattern = regexp.MustCompile(`"(\d+\.\d+).*"`)

type (
	// Reporter receives console messages. Calls are fire-and-forget and may
	// come from several goroutines.
	Reporter interface {
		Success(msg string)
		Warn(msg string)
		Error(msg string)
		Info(msg string)
		Progress(msg string)
		Msg(msg string)
	}

	// Supervisor stops managed node processes.
	Supervisor interface {
		// StopAll stops every managed process. It must succeed when none are running.
		StopAll(ctx context.Context) error
	}

	// Transport fetches remote artifacts.
	Transport interface {
		// Download fetches <baseURL>/<name> into the workspace root and returns the local path.
		Download(ctx context.Context, name, baseURL string) (string, error)
		// GitClone clones a single branch of url into dir.
		GitClone(ctx context.Context, url, branch, dir string) error
	}

	// ConfigStore persists whether the workspace is configured and which version is installed.
	ConfigStore interface {
		Get() (state.ConfigState, error)
		ResetConfig() error
		UpdateVersion(v string) error
	}

	// Dependencies are the collaborators of a Provisioner.
	Dependencies struct {
		Supervisor Supervisor
		Transport  Transport
		Store      ConfigStore
		Reporter   Reporter
	}

	// Provisioner takes a workspace from empty to ready to launch. Each step is
	// a separate method; callers run them in order: Preflight, Prepare,
	// FetchSource, FetchJars, PlaceJars, PropagateLogConfig. Steps do not check
	// that earlier steps ran, and a Provisioner performs no locking.
	Provisioner struct {
		ws       *workspace.Workspace
		cfg      *Config
		deps     Dependencies
		reporter Reporter
	}

	// PlacedArtifact is a jar moved into its node directory.
	PlacedArtifact struct {
		Name   string
		Path   string
		SHA256 string
	}
)

// New creates a Provisioner for ws.
func New(ws *workspace.Workspace, deps Dependencies, opts ...Option) (*Provisioner, error) {
	if ws == nil {
		return nil, errors.New("provision: workspace is required")
	}
	switch {
	case deps.Supervisor == nil:
		return nil, errors.New("provision: supervisor is required")
	case deps.Transport == nil:
		return nil, errors.New("provision: transport is required")
	case deps.Store == nil:
		return nil, errors.New("provision: config store is required")
	case deps.Reporter == nil:
		return nil, errors.New("provision: reporter is required")
	}

	cfg := DefaultConfig()
	cfg.Apply(opts...)

	return &Provisioner{ws: ws, cfg: cfg, deps: deps, reporter: deps.Reporter}, nil
}

// Preflight checks that the configured JDK can be run and reports the required
// version. It has no side effects. Both failures are fatal (see IsFatal).
func (p *Provisioner) Preflight(ctx context.Context) error {
	out, err := p.cfg.execCommand(ctx, p.cfg.JDKBinary, "-version").CombinedOutput()
	if err != nil {
		p.reporter.Warn("OS Warning - " + err.Error())
		p.reporter.Error(fmt.Sprintf("Please make sure you install Oracle JDK %s correctly.", p.cfg.JDKRequired))
		return &JDKNotFoundError{Binary: p.cfg.JDKBinary, Err: err}
	}

	var found string
	if m := jdkVersionPattern.FindSubmatch(out); m != nil {
		found = string(m[1])
	}
	if found != p.cfg.JDKRequired {
		p.reporter.Error(fmt.Sprintf("java-tron required Oracle JDK version = %s, please install and use JDK %s",
			p.cfg.JDKRequired, p.cfg.JDKRequired))
		return &JDKVersionMismatchError{Found: found, Required: p.cfg.JDKRequired}
	}
	return nil
}

// Prepare creates the node directory layout. With reset it first stops running
// nodes (when the workspace is configured), clears the config state and removes
// the nodes tree. Directories that already exist are reported as a warning;
// any other creation error is returned.
func (p *Provisioner) Prepare(ctx context.Context, reset bool) error {
	layout := p.ws.Layout()

	if reset {
		if err := p.reset(ctx, layout.Nodes); err != nil {
			return err
		}
	}

	var existing []string
	for _, dir := range layout.Dirs() {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			continue
		}
		if errors.Is(err, fs.ErrExist) {
			if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
				existing = append(existing, dir)
				continue
			}
		}
		return issue.NewErrorContext().
			WithOperation("create node directory").
			WithResource(dir).
			WithSuggestion("Check permissions and free space in the workspace").
			WithSuggestion("Run 'trondev init --reset' to rebuild the layout").
			Wrap(err).
			BuildError()
	}

	if len(existing) > 0 {
		p.reporter.Warn(fmt.Sprintf("OS Warning - %d of %d folders already exist under %s",
			len(existing), len(layout.Dirs()), layout.Nodes))
		return nil
	}

	p.reporter.Success("Folders are created:")
	for _, line := range p.ws.Tree() {
		p.reporter.Msg(line)
	}
	return nil
}

func (p *Provisioner) reset(ctx context.Context, nodesDir string) error {
	cs, err := p.deps.Store.Get()
	if err != nil {
		return fmt.Errorf("reading config state: %w", err)
	}

	if cs.Configured {
		if err := p.deps.Supervisor.StopAll(ctx); err != nil {
			return issue.NewErrorContext().
				WithOperation("stop running nodes").
				WithSuggestion("Stop the node processes manually with 'trondev stop' and retry").
				Wrap(err).
				BuildError()
		}
	}

	if err := p.deps.Store.ResetConfig(); err != nil {
		return fmt.Errorf("resetting config state: %w", err)
	}

	if err := p.cfg.removeAll(nodesDir); err != nil {
		p.reporter.Warn("OS Warning - " + err.Error())
		return nil
	}
	p.reporter.Success("Folders reset.")
	return nil
}

// FetchSource clones the event-node and grid-api repositories into their node
// directories. The clones run concurrently; a failing clone is reported as a
// warning and never cancels the other one.
func (p *Provisioner) FetchSource(ctx context.Context) {
	layout := p.ws.Layout()
	clones := []struct {
		name string
		src  Source
		dir  string
	}{
		{name: "event-node", src: p.cfg.EventNode, dir: layout.EventNode},
		{name: "grid-api", src: p.cfg.GridAPI, dir: layout.GridAPI},
	}

	var g errgroup.Group
	for _, c := range clones {
		g.Go(func() error {
			if err := p.deps.Transport.GitClone(ctx, c.src.URL, c.src.Branch, c.dir); err != nil {
				p.reporter.Warn("OS Warning - " + err.Error())
				return nil
			}
			p.reporter.Success(c.name + " source code cloned")
			return nil
		})
	}
	_ = g.Wait() // goroutines report failures and always return nil
}

// FetchJars resolves the version request and downloads both node jars into the
// workspace root. An unsupported request performs no download. The resolved
// version is recorded as installed only after both downloads succeed.
func (p *Provisioner) FetchJars(ctx context.Context, request string) (Resolution, error) {
	res, err := p.cfg.Policy.Resolve(request)
	if err != nil {
		p.reporter.Error("version: " + request + " not supported")
		p.reporter.Info(fmt.Sprintf("current support versions: %s - %s", p.cfg.Policy.Legacy, p.cfg.Policy.Latest))
		return Resolution{}, err
	}

	downloads := []struct {
		jar, label string
	}{
		{jar: res.FullNodeJar, label: "Fullnode"},
		{jar: res.SolidityNodeJar, label: "Soliditynode"},
	}
	for _, d := range downloads {
		p.reporter.Progress(fmt.Sprintf("Downloading %s jar from released build %s", d.label, res.Tag))
		if _, err := p.deps.Transport.Download(ctx, d.jar, res.URL); err != nil {
			return res, issue.NewErrorContext().
				WithOperation("download "+d.jar).
				WithResource(res.URL+"/"+d.jar).
				WithSuggestion("Check your network connection and retry").
				WithSuggestion("Run 'trondev versions' to see which releases are published").
				Wrap(err).
				BuildError()
		}
		p.reporter.Success(fmt.Sprintf(".jar file of %s is successfully downloaded", d.label))
	}

	if err := p.deps.Store.UpdateVersion(res.Version.String()); err != nil {
		return res, fmt.Errorf("recording installed version: %w", err)
	}
	return res, nil
}

// PlaceJars moves the jars downloaded for res from the workspace root into the
// full-node and solidity-node directories. The move is one-shot: a second call
// without a new FetchJars fails with an error matching fs.ErrNotExist.
func (p *Provisioner) PlaceJars(res Resolution) ([]PlacedArtifact, error) {
	layout := p.ws.Layout()
	moves := []struct {
		src, dst string
	}{
		{src: p.ws.Path(res.FullNodeJar), dst: filepath.Join(layout.FullNode, FullNodeJar)},
		{src: p.ws.Path(res.SolidityNodeJar), dst: filepath.Join(layout.SolidityNode, SolidityNodeJar)},
	}

	placed := make([]PlacedArtifact, 0, len(moves))
	for _, m := range moves {
		if err := moveFile(m.src, m.dst); err != nil {
			return placed, issue.NewErrorContext().
				WithOperation("place "+filepath.Base(m.dst)).
				WithResource(m.src).
				WithSuggestion("Download the jars again with 'trondev init --skip-source'").
				Wrap(err).
				BuildError()
		}
		sum, err := CalculateFileHash(m.dst)
		if err != nil {
			return placed, fmt.Errorf("hashing %s: %w", m.dst, err)
		}
		placed = append(placed, PlacedArtifact{Name: filepath.Base(m.dst), Path: m.dst, SHA256: sum})
		p.reporter.Success(filepath.Base(m.dst) + " moved to:")
		p.reporter.Msg(m.dst)
	}
	return placed, nil
}

// EnsureLogConfig writes content as the workspace logback.xml unless one
// already exists. It reports whether the file was written.
func (p *Provisioner) EnsureLogConfig(content []byte) (bool, error) {
	path := p.ws.Path(LogConfigFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	p.reporter.Info("default " + LogConfigFile + " written to " + path)
	return true, nil
}

// PropagateLogConfig copies the workspace logback.xml into the full-node and
// solidity-node directories.
func (p *Provisioner) PropagateLogConfig() error {
	layout := p.ws.Layout()
	src := p.ws.Path(LogConfigFile)
	for _, dir := range []string{layout.FullNode, layout.SolidityNode} {
		if err := CopyFile(src, filepath.Join(dir, LogConfigFile)); err != nil {
			return issue.NewErrorContext().
				WithOperation("copy "+LogConfigFile).
				WithResource(dir).
				Wrap(err).
				BuildError()
		}
	}
	p.reporter.Success("logback successfully copied")
	return nil
}
