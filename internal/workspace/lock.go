// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = "lock"

// ErrWorkspaceBusy is returned by TryLock when another process holds the lock.
var ErrWorkspaceBusy = errors.New("workspace is locked by another trondev process")

// Lock is an advisory, cross-process lock on a workspace. The zero-byte lock
// file is harmless if orphaned: the kernel drops the lock when the holder exits.
type Lock struct {
	fl *flock.Flock
}

// TryLock acquires the workspace lock without blocking. It returns
// ErrWorkspaceBusy when the lock is held elsewhere.
func (w *Workspace) TryLock() (*Lock, error) {
	if err := os.MkdirAll(w.StateDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	fl := flock.New(filepath.Join(w.StateDir(), lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking workspace %s: %w", w.root, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceBusy, w.root)
	}

	return &Lock{fl: fl}, nil
}

// Release unlocks the workspace. Safe to call more than once.
func (l *Lock) Release() {
	if l == nil || l.fl == nil {
		return
	}
	if err := l.fl.Unlock(); err != nil {
		slog.Debug("workspace unlock failed", "error", err)
	}
	l.fl = nil
}
