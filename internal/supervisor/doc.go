// SPDX-License-Identifier: MPL-2.0

// Package supervisor tracks the node processes started in a workspace and
// stops them. Processes are keyed by node name in a TOML registry at
// <workspace>/.trondev/processes.toml; liveness checks and signals go through
// gopsutil so the same code runs on every platform trondev supports.
package supervisor
