// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/trondev/trondev/internal/provision"
	"github.com/trondev/trondev/internal/state"
)

// Artifact states shown by status.
const (
	artifactOK       = "ok"
	artifactModified = "modified"
	artifactMissing  = "missing"
)

func newStatusCommand(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the provisioning state of the workspace",
		Args:  cobra.NoArgs,
		RunE: withSession(current, func(cmd *cobra.Command, _ []string, s *session) error {
			return runStatus(cmd.Context(), s)
		}),
	}
}

func runStatus(ctx context.Context, s *session) error {
	out := s.app.stdout

	store, err := state.NewStore(s.ws.StateDir())
	if err != nil {
		return s.fail(err)
	}
	st, err := store.Get()
	if err != nil {
		return s.fail(err)
	}

	fmt.Fprintln(out, TitleStyle.Render("Workspace"))
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("root"), s.ws.Root())
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("configured"), yesNo(st.Configured))
	if st.Version != "" {
		fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("version"), SuccessStyle.Render(st.Version))
	} else {
		fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("version"), SubtitleStyle.Render("(none installed)"))
	}
	if !st.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("updated"), st.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Directories"))
	missing := s.ws.Layout().Missing()
	for _, dir := range s.ws.Layout().Dirs() {
		rel, _ := filepath.Rel(s.ws.Root(), dir)
		if slices.Contains(missing, dir) {
			fmt.Fprintf(out, "  %s %s\n", ErrorStyle.Render("✗"), rel)
		} else {
			fmt.Fprintf(out, "  %s %s\n", SuccessStyle.Render("✓"), rel)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Artifacts"))
	if len(st.Artifacts) == 0 {
		fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none placed)"))
	}
	for _, name := range slices.Sorted(maps.Keys(st.Artifacts)) {
		printArtifact(out, name, s.artifactState(name, st.Artifacts[name]))
	}

	fmt.Fprintln(out)
	return printProcesses(ctx, s)
}

// artifactState compares a placed jar with the hash recorded at placement.
func (s *session) artifactState(name, recorded string) string {
	layout := s.ws.Layout()
	dir := layout.FullNode
	if name == provision.SolidityNodeJar {
		dir = layout.SolidityNode
	}
	sum, err := provision.CalculateFileHash(filepath.Join(dir, name))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return artifactMissing
	case err != nil:
		return err.Error()
	case sum != recorded:
		return artifactModified
	default:
		return artifactOK
	}
}

func printArtifact(out io.Writer, name, status string) {
	style := WarningStyle
	switch status {
	case artifactOK:
		style = SuccessStyle
	case artifactMissing:
		style = ErrorStyle
	}
	fmt.Fprintf(out, "  %-18s %s\n", name, style.Render(status))
}

func printProcesses(ctx context.Context, s *session) error {
	out := s.app.stdout
	sup, err := s.app.supervisorFor(s.ws)
	if err != nil {
		return s.fail(err)
	}
	entries, err := sup.List()
	if err != nil {
		return s.fail(err)
	}

	fmt.Fprintln(out, TitleStyle.Render("Processes"))
	if len(entries) == 0 {
		fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render("(none registered)"))
		return nil
	}
	for _, e := range entries {
		status := WarningStyle.Render("stale")
		if sup.Running(ctx, e) {
			status = SuccessStyle.Render("running")
		}
		fmt.Fprintf(out, "  %-18s pid %-8d %s\n", e.Name, e.PID, status)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return SuccessStyle.Render("yes")
	}
	return WarningStyle.Render("no")
}
