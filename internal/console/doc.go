// SPDX-License-Identifier: MPL-2.0

// Package console renders provisioning progress for humans and wires the
// process-wide slog logger.
//
// Reporter prints leveled status lines through a charmbracelet/log logger
// and can mirror every line into the log file. NewLogger builds the process
// loggers: a console handler on stderr (debug level when verbose) plus an
// optional JSON file handler rotated by lumberjack.
package console
