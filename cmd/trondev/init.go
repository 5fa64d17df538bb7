// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/trondev/trondev/internal/provision"
	"github.com/trondev/trondev/internal/state"
)

//go:embed logback.xml
var defaultLogConfig []byte

// initParams bundles the flags of the init command so runInit can be tested
// without a real Cobra command.
type initParams struct {
	version    string
	reset      bool
	skipSource bool
}

// newInitCommand creates the `trondev init` command, which runs the whole
// provisioning pipeline against the workspace.
func newInitCommand(current func() *session) *cobra.Command {
	p := initParams{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Provision the node workspace",
		Long: `Provision the node workspace.

The pipeline checks the JDK, creates the node directories (stopping running
nodes and wiping them first with --reset), clones the event-node and
grid-api sources, downloads the full and solidity node jars of the requested
release, moves them into place and copies logback.xml next to each jar.`,
		Example: `  # Latest supported release
  trondev init

  # A specific release, rebuilding the workspace
  trondev init --version 3.7.0 --reset

  # Jars only
  trondev init --skip-source`,
		Args: cobra.NoArgs,
		RunE: withSession(current, func(cmd *cobra.Command, _ []string, s *session) error {
			return runInit(cmd.Context(), s, p)
		}),
	}

	cmd.Flags().StringVar(&p.version, "version", provision.LatestSelector, `node release to install ("latest" or X.Y[.Z])`)
	cmd.Flags().BoolVar(&p.reset, "reset", false, "stop running nodes and wipe the node directories first")
	cmd.Flags().BoolVar(&p.skipSource, "skip-source", false, "do not clone the event-node and grid-api sources")

	return cmd
}

// runInit is the provisioning pipeline, separated from Cobra for testability.
//
// Flow:
//  1. Lock the workspace so concurrent runs fail fast.
//  2. Preflight the JDK; failure is fatal.
//  3. Prepare the directories, resetting first when asked.
//  4. Clone the sources unless skipped; clone failures are only warnings.
//  5. Resolve and download the jars, then move them into the node directories.
//  6. Ensure a workspace logback.xml exists and copy it next to each jar.
//  7. Record the workspace as configured.
func runInit(ctx context.Context, s *session, p initParams) error {
	cfg, err := s.requireConfig()
	if err != nil {
		return err
	}

	lock, err := s.ws.TryLock()
	if err != nil {
		return s.fail(err)
	}
	defer lock.Release()

	store, err := state.NewStore(s.ws.StateDir())
	if err != nil {
		return s.fail(err)
	}
	sup, err := s.app.supervisorFor(s.ws)
	if err != nil {
		return s.fail(err)
	}

	opts, err := cfg.ProvisionOptions()
	if err != nil {
		return s.fail(err)
	}
	if s.app.execCommand != nil {
		opts = append(opts, provision.WithExecCommand(s.app.execCommand))
	}

	reporter := s.reporter()
	prov, err := provision.New(s.ws, provision.Dependencies{
		Supervisor: sup,
		Transport:  s.app.transportFor(s.ws),
		Store:      store,
		Reporter:   reporter,
	}, opts...)
	if err != nil {
		return s.fail(err)
	}

	if err := prov.Preflight(ctx); err != nil {
		return s.fail(err)
	}
	if err := prov.Prepare(ctx, p.reset); err != nil {
		return s.fail(err)
	}
	if !p.skipSource {
		prov.FetchSource(ctx)
	}

	res, err := prov.FetchJars(ctx, p.version)
	if err != nil {
		return s.fail(err)
	}
	placed, err := prov.PlaceJars(res)
	if err != nil {
		return s.fail(err)
	}
	for _, a := range placed {
		if err := store.RecordArtifact(a.Name, a.SHA256); err != nil {
			return s.fail(fmt.Errorf("recording %s: %w", a.Name, err))
		}
		slog.Debug("artifact placed", "name", a.Name, "path", a.Path, "sha256", a.SHA256)
	}

	if _, err := prov.EnsureLogConfig(defaultLogConfig); err != nil {
		return s.fail(err)
	}
	if err := prov.PropagateLogConfig(); err != nil {
		return s.fail(err)
	}

	if err := store.MarkConfigured(); err != nil {
		return s.fail(fmt.Errorf("recording configured state: %w", err))
	}
	reporter.Success(fmt.Sprintf("Workspace ready: java-tron %s (%s)", res.Version, res.Tag))
	return nil
}
