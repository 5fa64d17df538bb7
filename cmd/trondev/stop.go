// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func newStopCommand(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop every node process managed in the workspace",
		Args:  cobra.NoArgs,
		RunE: withSession(current, func(cmd *cobra.Command, _ []string, s *session) error {
			return runStop(cmd.Context(), s)
		}),
	}
}

func runStop(ctx context.Context, s *session) error {
	lock, err := s.ws.TryLock()
	if err != nil {
		return s.fail(err)
	}
	defer lock.Release()

	sup, err := s.app.supervisorFor(s.ws)
	if err != nil {
		return s.fail(err)
	}

	reporter := s.reporter()
	if err := sup.StopAll(ctx); err != nil {
		reporter.Error(err.Error())
		return s.fail(err)
	}
	reporter.Success("All managed node processes stopped.")
	return nil
}
