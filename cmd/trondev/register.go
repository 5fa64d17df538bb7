// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trondev/trondev/internal/workspace"
	"github.com/trondev/trondev/pkg/types"
)

// nodeNames are the processes a workspace can manage, one per node directory.
var nodeNames = []string{
	workspace.FullNodeDir,
	workspace.SolidityNodeDir,
	workspace.EventNodeDir,
	workspace.GridAPIDir,
}

func newRegisterCommand(current func() *session) *cobra.Command {
	return &cobra.Command{
		Use:   "register <node> <pid>",
		Short: "Record a running node process so stop and init --reset can stop it",
		Long: `Record the process id of a node started outside trondev.

<node> is one of: ` + strings.Join(nodeNames, ", ") + `.
A later registration of the same node replaces the previous one.`,
		Args: cobra.ExactArgs(2),
		RunE: withSession(current, func(_ *cobra.Command, args []string, s *session) error {
			return runRegister(s, args[0], args[1])
		}),
	}
}

func runRegister(s *session, name, pidArg string) error {
	if !slices.Contains(nodeNames, name) {
		return &ExitError{
			Code: types.ExitOperationFailed,
			Err:  fmt.Errorf("unknown node %q (expected one of %s)", name, strings.Join(nodeNames, ", ")),
		}
	}
	pid, err := strconv.ParseInt(pidArg, 10, 32)
	if err != nil {
		return &ExitError{Code: types.ExitOperationFailed, Err: fmt.Errorf("invalid pid %q: %w", pidArg, err)}
	}

	lock, err := s.ws.TryLock()
	if err != nil {
		return s.fail(err)
	}
	defer lock.Release()

	sup, err := s.app.supervisorFor(s.ws)
	if err != nil {
		return s.fail(err)
	}
	if err := sup.Register(name, int32(pid)); err != nil {
		return s.fail(err)
	}
	s.reporter().Success(fmt.Sprintf("Registered %s (pid %d).", name, pid))
	return nil
}
