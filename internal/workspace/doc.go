// SPDX-License-Identifier: MPL-2.0

// Package workspace describes the on-disk layout of a trondev installation.
//
// A Workspace is rooted at an absolute directory (normally the current working
// directory). Node processes live under a single "nodes" directory:
//
//	<root>/
//	└── nodes/
//	    ├── full-node/
//	    ├── solidity-node/
//	    ├── event-node/
//	    └── grid-api/
//
// Tool state (ConfigState, the process registry and the advisory lock) is kept
// under <root>/.trondev.
package workspace
