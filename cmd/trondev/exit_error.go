// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/trondev/trondev/internal/issue"
	"github.com/trondev/trondev/internal/provision"
	"github.com/trondev/trondev/internal/transport"
	"github.com/trondev/trondev/internal/workspace"
	"github.com/trondev/trondev/pkg/types"
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// classifyExitCode maps a provisioning error to the process exit code.
func classifyExitCode(err error) types.ExitCode {
	if provision.IsFatal(err) {
		return types.ExitFatal
	}
	return types.ExitOperationFailed
}

// issueFor picks the catalog entry explaining err, if there is one.
func issueFor(err error) (issue.Id, bool) {
	switch {
	case errors.Is(err, provision.ErrJDKNotFound):
		return issue.JDKNotFoundId, true
	case errors.Is(err, provision.ErrJDKVersionMismatch):
		return issue.JDKVersionMismatchId, true
	case errors.Is(err, provision.ErrUnsupportedVersion):
		return issue.UnsupportedVersionId, true
	case errors.Is(err, workspace.ErrWorkspaceBusy):
		return issue.WorkspaceBusyId, true
	case errors.Is(err, transport.ErrUnexpectedStatus):
		return issue.DownloadFailedId, true
	case errors.Is(err, fs.ErrNotExist):
		return issue.ArtifactMissingId, true
	default:
		return 0, false
	}
}
