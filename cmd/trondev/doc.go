// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for trondev.
//
// This package implements the Cobra command hierarchy: init provisions a
// workspace, status and stop inspect and stop it, versions lists published
// node releases and config manages the tool configuration.
package cmd
