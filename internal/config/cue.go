// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
)

// maxConfigFileSize bounds how much of a config file is handed to the CUE evaluator.
const maxConfigFileSize = 1 << 20

// checkFileSize rejects oversized config files before parsing.
func checkFileSize(data []byte, path string) error {
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}
	return nil
}

// formatCUEError renders CUE errors as "<file>: <field.path>: <message>" lines.
func formatCUEError(err error, path string) error {
	if err == nil {
		return nil
	}

	cueErrors := errors.Errors(err)
	if len(cueErrors) == 0 {
		return fmt.Errorf("%s: %w", path, err)
	}

	lines := make([]string, 0, len(cueErrors))
	for _, e := range cueErrors {
		field := strings.Join(errors.Path(e), ".")
		msg := e.Error()

		// CUE sometimes repeats the field path inside the message.
		if field != "" && strings.HasPrefix(msg, field) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, field), ":"))
		}

		if field != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", field, msg))
		} else {
			lines = append(lines, msg)
		}
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", path, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", path, strings.Join(lines, "\n  "))
}
