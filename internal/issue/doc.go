// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Errors built here carry the failed operation, the resource involved and
// remediation hints. A small catalog of Markdown guides, rendered with glamour,
// covers the conditions that stop a provisioning run (missing JDK, wrong JDK,
// unsupported node version, busy workspace).
package issue
