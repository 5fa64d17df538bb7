// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/trondev/trondev/internal/provision"
	"github.com/trondev/trondev/internal/release"
	"github.com/trondev/trondev/internal/state"
	"github.com/trondev/trondev/internal/supervisor"
	"github.com/trondev/trondev/internal/testutil"
	"github.com/trondev/trondev/internal/workspace"
	"github.com/trondev/trondev/pkg/types"
)

func readState(t *testing.T, dir string) state.ConfigState {
	t.Helper()
	store, err := state.NewStore(filepath.Join(dir, workspace.StateDirName))
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.Get()
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	return st
}

func TestInit_ProvisionsWorkspace(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	stdout, stderr, err := c.run("init")
	if err != nil {
		t.Fatalf("init error = %v\nstderr:\n%s", err, stderr)
	}

	nodes := filepath.Join(c.dir, workspace.NodesDir)
	fullJar := filepath.Join(nodes, workspace.FullNodeDir, provision.FullNodeJar)
	if got := testutil.MustReadFile(t, fullJar); got != "jar:/download/GreatVoyage-v4.1.2/FullNode.jar" {
		t.Errorf("full node jar content = %q", got)
	}
	solidityJar := filepath.Join(nodes, workspace.SolidityNodeDir, provision.SolidityNodeJar)
	if _, err := os.Stat(solidityJar); err != nil {
		t.Errorf("solidity node jar missing: %v", err)
	}
	for _, dir := range []string{workspace.FullNodeDir, workspace.SolidityNodeDir} {
		got := testutil.MustReadFile(t, filepath.Join(nodes, dir, provision.LogConfigFile))
		if got != string(defaultLogConfig) {
			t.Errorf("%s/logback.xml differs from the embedded default", dir)
		}
	}
	// Jars are moved, not copied.
	if _, err := os.Stat(filepath.Join(c.dir, provision.SourceFullNodeJar)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("downloaded jar should be moved out of the workspace root, stat err = %v", err)
	}

	st := readState(t, c.dir)
	if !st.Configured || st.Version != "4.1.2" {
		t.Errorf("state = %+v, want configured at 4.1.2", st)
	}
	if len(st.Artifacts) != 2 || st.Artifacts[provision.FullNodeJar] == "" {
		t.Errorf("artifacts = %v", st.Artifacts)
	}

	for _, want := range []string{"Folders are created:", "source code cloned", "successfully downloaded", "logback successfully copied", "Workspace ready"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
	for _, dir := range []string{workspace.EventNodeDir, workspace.GridAPIDir} {
		if _, err := os.Stat(filepath.Join(nodes, dir, "README.md")); err != nil {
			t.Errorf("%s was not cloned: %v", dir, err)
		}
	}
	if c.supervisor.stopCalls() != 0 {
		t.Errorf("init without --reset stopped processes %d times", c.supervisor.stopCalls())
	}
}

func TestInit_LegacyVersion(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	if _, stderr, err := c.run("init", "--version", "3.1.3", "--skip-source"); err != nil {
		t.Fatalf("init error = %v\n%s", err, stderr)
	}

	paths := c.server.paths()
	if !slices.Contains(paths, "/download/Odyssey-v3.1.3/java-tron.jar") {
		t.Errorf("requests = %v, want the legacy jar name", paths)
	}
	if got := readState(t, c.dir).Version; got != "3.1.3" {
		t.Errorf("installed version = %q, want %q", got, "3.1.3")
	}
	// The legacy jar is renamed on placement.
	fullJar := filepath.Join(c.dir, workspace.NodesDir, workspace.FullNodeDir, provision.FullNodeJar)
	if _, err := os.Stat(fullJar); err != nil {
		t.Errorf("legacy jar not placed as %s: %v", provision.FullNodeJar, err)
	}
}

func TestInit_UnsupportedVersionIsFatal(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	stdout, _, err := c.run("init", "--version", "3.1.4", "--skip-source")
	if code := exitCode(t, err); code != int(types.ExitFatal) {
		t.Errorf("exit code = %d, want %d", code, types.ExitFatal)
	}
	if !errors.Is(err, provision.ErrUnsupportedVersion) {
		t.Errorf("error = %v, want ErrUnsupportedVersion", err)
	}
	if len(c.server.paths()) != 0 {
		t.Errorf("unsupported version downloaded %v", c.server.paths())
	}
	if !strings.Contains(stdout, "version: 3.1.4 not supported") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestInit_ReportedLinesAppearOnce(t *testing.T) {
	t.Parallel()

	for _, verbose := range []bool{false, true} {
		c := newCLI(t)
		if _, stderr, err := c.run("init", "--skip-source"); err != nil {
			t.Fatalf("first init error = %v\nstderr:\n%s", err, stderr)
		}

		args := []string{"init", "--skip-source", "--version", "2.0.0"}
		if verbose {
			args = append(args, "--verbose")
		}
		stdout, stderr, err := c.run(args...)
		if err == nil {
			t.Fatal("init with an unsupported version should fail")
		}
		for _, msg := range []string{"folders already exist", "version: 2.0.0 not supported"} {
			if strings.Count(stdout, msg) != 1 {
				t.Errorf("verbose=%v: stdout should show %q once:\n%s", verbose, msg, stdout)
			}
		}
		if strings.Contains(stderr, "folders already exist") || strings.Contains(stderr, "kind=") {
			t.Errorf("verbose=%v: stderr repeats reported lines:\n%s", verbose, stderr)
		}
	}
}

func TestInit_JDKFailuresAreFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		output  string
		wantErr error
	}{
		{name: "missing", output: "", wantErr: provision.ErrJDKNotFound},
		{name: "wrong version", output: `openjdk version "11.0.2" 2019-01-15`, wantErr: provision.ErrJDKVersionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newCLI(t)
			c.javaOutput = tt.output
			_, _, err := c.run("init")
			if code := exitCode(t, err); code != int(types.ExitFatal) {
				t.Errorf("exit code = %d, want %d", code, types.ExitFatal)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if _, err := os.Stat(filepath.Join(c.dir, workspace.NodesDir)); !errors.Is(err, os.ErrNotExist) {
				t.Error("a failed preflight must not create directories")
			}
		})
	}
}

func TestInit_ResetStopsNodesOfConfiguredWorkspace(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	if _, stderr, err := c.run("init", "--skip-source"); err != nil {
		t.Fatalf("first init error = %v\n%s", err, stderr)
	}

	stdout, stderr, err := c.run("init", "--reset", "--skip-source", "--version", "3.7")
	if err != nil {
		t.Fatalf("reset init error = %v\n%s", err, stderr)
	}
	if c.supervisor.stopCalls() != 1 {
		t.Errorf("StopAll calls = %d, want 1", c.supervisor.stopCalls())
	}
	if !strings.Contains(stdout, "Folders reset.") {
		t.Errorf("stdout missing reset report:\n%s", stdout)
	}
	if got := readState(t, c.dir).Version; got != "3.7" {
		t.Errorf("installed version = %q, want %q", got, "3.7")
	}
}

func TestInit_ResetAbortsWhenStopFails(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	if _, stderr, err := c.run("init", "--skip-source"); err != nil {
		t.Fatalf("first init error = %v\n%s", err, stderr)
	}
	c.supervisor.err = errors.New("process 42 refused to stop")

	_, _, err := c.run("init", "--reset", "--skip-source")
	if code := exitCode(t, err); code != int(types.ExitOperationFailed) {
		t.Errorf("exit code = %d, want %d", code, types.ExitOperationFailed)
	}
	jar := filepath.Join(c.dir, workspace.NodesDir, workspace.FullNodeDir, provision.FullNodeJar)
	if _, err := os.Stat(jar); err != nil {
		t.Errorf("workspace must be left untouched when stopping fails: %v", err)
	}
	if !readState(t, c.dir).Configured {
		t.Error("configured flag must survive an aborted reset")
	}
}

func TestInit_WorkspaceBusy(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	ws, err := workspace.New(c.dir)
	if err != nil {
		t.Fatal(err)
	}
	lock, err := ws.TryLock()
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	defer lock.Release()

	_, _, err = c.run("init")
	if !errors.Is(err, workspace.ErrWorkspaceBusy) {
		t.Fatalf("error = %v, want ErrWorkspaceBusy", err)
	}
	if code := exitCode(t, err); code != int(types.ExitOperationFailed) {
		t.Errorf("exit code = %d, want %d", code, types.ExitOperationFailed)
	}
}

func TestInit_ConfigLoadFailure(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	c.configErr = errors.New("config.cue: releases.latest: invalid value")

	_, stderr, err := c.run("init")
	if err == nil {
		t.Fatal("init should fail when the configuration cannot be loaded")
	}
	if !strings.Contains(stderr, "releases.latest") {
		t.Errorf("stderr should explain the config error:\n%s", stderr)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	if _, stderr, err := c.run("init", "--skip-source"); err != nil {
		t.Fatalf("init error = %v\n%s", err, stderr)
	}
	c.supervisor.entries = []supervisor.Entry{{Name: "full-node", PID: 4242}, {Name: "solidity-node", PID: 4343}}
	c.supervisor.running = map[string]bool{"full-node": true}

	solidityJar := filepath.Join(c.dir, workspace.NodesDir, workspace.SolidityNodeDir, provision.SolidityNodeJar)
	testutil.MustWriteFile(t, solidityJar, []byte("tampered"))

	stdout, stderr, err := c.run("status")
	if err != nil {
		t.Fatalf("status error = %v\n%s", err, stderr)
	}
	for _, want := range []string{"4.1.2", "FullNode.jar", artifactOK, artifactModified, "running", "stale", "4242"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("status output missing %q:\n%s", want, stdout)
		}
	}
}

func TestStatus_EmptyWorkspace(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	stdout, _, err := c.run("status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"(none installed)", "(none placed)", "(none registered)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("status output missing %q:\n%s", want, stdout)
		}
	}
}

func TestStop(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	stdout, _, err := c.run("stop")
	if err != nil {
		t.Fatalf("stop error = %v", err)
	}
	if c.supervisor.stopCalls() != 1 || !strings.Contains(stdout, "stopped") {
		t.Errorf("stop calls = %d, stdout = %q", c.supervisor.stopCalls(), stdout)
	}

	c.supervisor.err = &supervisor.StopError{Failed: map[string]error{"full-node": errors.New("still alive")}}
	_, _, err = c.run("stop")
	if code := exitCode(t, err); code != int(types.ExitOperationFailed) {
		t.Errorf("exit code = %d, want %d", code, types.ExitOperationFailed)
	}
}

func TestVersions(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	c.releases.releases = []release.Release{
		{TagName: "GreatVoyage-v4.1.2", Assets: []string{"FullNode.jar", "SolidityNode.jar"}},
		{TagName: "Odyssey-v3.7", Assets: []string{"SolidityNode.jar"}},
		{TagName: "Odyssey-v3.1.3"},
		{TagName: "Odyssey-v3.1.0"},
	}

	stdout, _, err := c.run("versions")
	if err != nil {
		t.Fatalf("versions error = %v", err)
	}

	lines := strings.Split(stdout, "\n")
	find := func(tag string) string {
		for _, l := range lines {
			if strings.Contains(l, tag) {
				return l
			}
		}
		t.Fatalf("no line for %s in:\n%s", tag, stdout)
		return ""
	}
	if l := find("GreatVoyage-v4.1.2"); !strings.Contains(l, "supported") || !strings.Contains(l, "latest") {
		t.Errorf("latest line = %q", l)
	}
	if l := find("Odyssey-v3.7"); !strings.Contains(l, "no FullNode.jar asset") {
		t.Errorf("3.7 line = %q", l)
	}
	if l := find("Odyssey-v3.1.3"); !strings.Contains(l, "legacy") {
		t.Errorf("legacy line = %q", l)
	}
	if l := find("Odyssey-v3.1.0"); !strings.Contains(l, "unsupported") {
		t.Errorf("3.1.0 line = %q", l)
	}
}

func TestVersions_RateLimited(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	c.releases.err = &release.RateLimitError{Limit: 60}

	_, stderr, err := c.run("versions")
	if err == nil {
		t.Fatal("versions should fail when rate limited")
	}
	if !strings.Contains(stderr, "GITHUB_TOKEN") {
		t.Errorf("stderr should suggest a token:\n%s", stderr)
	}
}

func TestVersions_SingleRelease(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	c.releases.releases = []release.Release{
		{TagName: "GreatVoyage-v4.1.2", Assets: []string{"FullNode.jar", "SolidityNode.jar"}},
		{TagName: "Odyssey-v3.7", Assets: []string{"SolidityNode.jar"}},
	}

	stdout, _, err := c.run("versions", "latest")
	if err != nil {
		t.Fatalf("versions latest error = %v", err)
	}
	if !strings.Contains(stdout, "GreatVoyage-v4.1.2") || strings.Contains(stdout, "Odyssey-v3.7") {
		t.Errorf("versions latest should show only the latest release:\n%s", stdout)
	}

	_, _, err = c.run("versions", "3.7")
	if code := exitCode(t, err); code != int(types.ExitOperationFailed) {
		t.Errorf("missing asset exit code = %d, want %d", code, types.ExitOperationFailed)
	}

	_, _, err = c.run("versions", "3.6.0")
	if !errors.Is(err, release.ErrReleaseNotFound) {
		t.Errorf("unpublished release error = %v, want ErrReleaseNotFound", err)
	}

	_, _, err = c.run("versions", "3.1.4")
	if code := exitCode(t, err); code != int(types.ExitFatal) {
		t.Errorf("unsupported request exit code = %d, want %d", code, types.ExitFatal)
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	stdout, stderr, err := c.run("register", workspace.FullNodeDir, "4242")
	if err != nil {
		t.Fatalf("register error = %v\nstderr:\n%s", err, stderr)
	}
	if got := c.supervisor.registered[workspace.FullNodeDir]; got != 4242 {
		t.Errorf("registered pid = %d, want 4242", got)
	}
	if !strings.Contains(stdout, "Registered full-node (pid 4242)") {
		t.Errorf("stdout = %q", stdout)
	}

	for _, args := range [][]string{
		{"register", "witness", "1"},
		{"register", workspace.GridAPIDir, "not-a-pid"},
	} {
		_, _, err := c.run(args...)
		if code := exitCode(t, err); code != int(types.ExitOperationFailed) {
			t.Errorf("%v exit code = %d, want %d", args, code, types.ExitOperationFailed)
		}
	}
	if len(c.supervisor.registered) != 1 {
		t.Errorf("invalid registrations were recorded: %v", c.supervisor.registered)
	}
}

func TestRegister_WritesWorkspaceRegistry(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	c.supervisor = nil

	if _, stderr, err := c.run("register", workspace.SolidityNodeDir, "999999"); err != nil {
		t.Fatalf("register error = %v\nstderr:\n%s", err, stderr)
	}
	sup, err := supervisor.New(filepath.Join(c.dir, workspace.StateDirName))
	if err != nil {
		t.Fatal(err)
	}
	entries, err := sup.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != workspace.SolidityNodeDir || entries[0].PID != 999999 {
		t.Errorf("registry = %+v", entries)
	}
}

func TestConfigDump(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	c.cfg.Releases.Latest = "4.2.0"

	stdout, _, err := c.run("config", "dump")
	if err != nil {
		t.Fatalf("config dump error = %v", err)
	}
	if !strings.Contains(stdout, `latest:         "4.2.0"`) {
		t.Errorf("dump output:\n%s", stdout)
	}
}

func TestConfigShow_UsingDefaults(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	stdout, _, err := c.run("config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if !strings.Contains(stdout, "(using defaults)") || !strings.Contains(stdout, "minimum_ranged") {
		t.Errorf("show output:\n%s", stdout)
	}
}

func TestConfigInit_WritesNextToExplicitFile(t *testing.T) {
	t.Parallel()

	c := newCLI(t)
	cfgFile := filepath.Join(t.TempDir(), "config.cue")

	stdout, _, err := c.run("config", "init", "--config", cfgFile)
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(stdout, cfgFile) {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(testutil.MustReadFile(t, cfgFile), "releases: {") {
		t.Error("default config was not written")
	}
}

func TestClassifyExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want types.ExitCode
	}{
		{err: &provision.JDKNotFoundError{Binary: "java", Err: errors.New("exec")}, want: types.ExitFatal},
		{err: &provision.UnsupportedVersionError{Requested: "1.0.0"}, want: types.ExitFatal},
		{err: context.Canceled, want: types.ExitOperationFailed},
		{err: workspace.ErrWorkspaceBusy, want: types.ExitOperationFailed},
	}
	for _, tt := range tests {
		if got := classifyExitCode(tt.err); got != tt.want {
			t.Errorf("classifyExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
