// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// NodesDir is the workspace-relative directory holding all node directories.
	NodesDir = "nodes"
	// FullNodeDir holds the full node jar and its logback.xml.
	FullNodeDir = "full-node"
	// SolidityNodeDir holds the solidity node jar and its logback.xml.
	SolidityNodeDir = "solidity-node"
	// EventNodeDir holds the event-node source clone.
	EventNodeDir = "event-node"
	// GridAPIDir holds the grid-api source clone.
	GridAPIDir = "grid-api"

	// StateDirName is the hidden directory for tool state.
	StateDirName = ".trondev"
)

// ErrInvalidRoot is returned when a workspace root is empty.
var ErrInvalidRoot = errors.New("invalid workspace root")

type (
	// Workspace is the root filesystem path under which all node directories live.
	Workspace struct {
		root string
	}

	// Layout is the fixed set of node directories nested under the nodes directory.
	Layout struct {
		Nodes        string
		FullNode     string
		SolidityNode string
		EventNode    string
		GridAPI      string
	}
)

// New returns a Workspace rooted at root, made absolute.
func New(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, ErrInvalidRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %s: %w", root, err)
	}
	return &Workspace{root: abs}, nil
}

// FromWorkingDir returns a Workspace rooted at the current working directory.
func FromWorkingDir() (*Workspace, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	return New(wd)
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// StateDir returns <root>/.trondev.
func (w *Workspace) StateDir() string { return w.Path(StateDirName) }

// Layout returns the node directory layout of this workspace.
func (w *Workspace) Layout() Layout {
	nodes := w.Path(NodesDir)
	return Layout{
		Nodes:        nodes,
		FullNode:     filepath.Join(nodes, FullNodeDir),
		SolidityNode: filepath.Join(nodes, SolidityNodeDir),
		EventNode:    filepath.Join(nodes, EventNodeDir),
		GridAPI:      filepath.Join(nodes, GridAPIDir),
	}
}

// Dirs returns all five directories, parent first, in creation order.
func (l Layout) Dirs() []string {
	return []string{l.Nodes, l.FullNode, l.SolidityNode, l.EventNode, l.GridAPI}
}

// Missing returns the directories of the layout that do not exist.
func (l Layout) Missing() []string {
	var missing []string
	for _, dir := range l.Dirs() {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			missing = append(missing, dir)
		}
	}
	return missing
}

// Tree renders the layout as the lines shown after creation.
func (w *Workspace) Tree() []string {
	return []string{
		w.root + string(filepath.Separator),
		"└── " + NodesDir,
		"    ├── " + FullNodeDir,
		"    ├── " + SolidityNodeDir,
		"    ├── " + EventNodeDir,
		"    └── " + GridAPIDir,
	}
}
