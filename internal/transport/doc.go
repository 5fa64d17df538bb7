// SPDX-License-Identifier: MPL-2.0

// Package transport fetches remote artifacts into a workspace: release jars
// over HTTP and source trees with git.
package transport
