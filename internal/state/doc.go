// SPDX-License-Identifier: MPL-2.0

// Package state persists the per-workspace ConfigState: whether the workspace
// has been configured, which node version is installed and the hashes of the
// jars placed into the node directories. State is stored as TOML in
// <workspace>/.trondev/state.toml and every write replaces the file atomically.
package state
