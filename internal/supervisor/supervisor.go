// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/trondev/trondev/internal/state"
)

const (
	// RegistryFileName is the registry file name inside the workspace state directory.
	RegistryFileName = "processes.toml"

	// DefaultGracePeriod is how long StopAll waits after a terminate signal before killing.
	DefaultGracePeriod = 10 * time.Second

	pollInterval = 100 * time.Millisecond
)

// ErrInvalidPID is returned when registering a non-positive process id.
var ErrInvalidPID = errors.New("invalid process id")

type (
	// Entry is one registered node process.
	Entry struct {
		Name      string    `toml:"name"`
		PID       int32     `toml:"pid"`
		StartedAt time.Time `toml:"started_at,omitempty"`
	}

	registryFile struct {
		Processes []Entry `toml:"process"`
	}

	// Controller inspects and signals operating system processes.
	Controller interface {
		Running(ctx context.Context, pid int32) (bool, error)
		Terminate(ctx context.Context, pid int32) error
		Kill(ctx context.Context, pid int32) error
	}

	// Supervisor manages the process registry of one workspace.
	Supervisor struct {
		mu         sync.Mutex
		path       string
		grace      time.Duration
		controller Controller
		now        func() time.Time
	}

	// Option configures a Supervisor.
	Option func(*Supervisor)

	// StopError collects processes that survived StopAll.
	StopError struct {
		Failed map[string]error
	}

	gopsutilController struct{}
)

// WithGracePeriod sets how long to wait for a terminated process before killing it.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		s.grace = d
	}
}

// WithController replaces the process controller, primarily for tests.
func WithController(c Controller) Option {
	return func(s *Supervisor) {
		s.controller = c
	}
}

// New returns a Supervisor whose registry lives in stateDir.
func New(stateDir string, opts ...Option) (*Supervisor, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, errors.New("state directory is required")
	}
	s := &Supervisor{
		path:       filepath.Join(stateDir, RegistryFileName),
		grace:      DefaultGracePeriod,
		controller: gopsutilController{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Error implements the error interface.
func (e *StopError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for name := range e.Failed {
		names = append(names, name)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Failed[name]))
	}
	return "failed to stop " + strings.Join(parts, "; ")
}

// Register records pid as the process of node name, replacing any previous entry.
func (s *Supervisor) Register(name string, pid int32) error {
	if pid <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	entries = slices.DeleteFunc(entries, func(e Entry) bool { return e.Name == name })
	entries = append(entries, Entry{Name: name, PID: pid, StartedAt: s.now().UTC().Truncate(time.Second)})
	return s.save(entries)
}

// List returns the registered processes sorted by name.
func (s *Supervisor) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// Running reports whether the process registered as name is alive.
func (s *Supervisor) Running(ctx context.Context, e Entry) bool {
	ok, err := s.controller.Running(ctx, e.PID)
	if err != nil {
		slog.Debug("process liveness check failed", "name", e.Name, "pid", e.PID, "error", err)
		return false
	}
	return ok
}

// StopAll terminates every registered process that is still alive, kills the
// ones that outlive the grace period and clears the registry. It succeeds with
// an empty or missing registry and skips stale entries. Processes that could
// not be stopped stay registered and are reported in a *StopError.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	failed := make(map[string]error)
	var survivors []Entry
	for _, e := range entries {
		if err := s.stop(ctx, e); err != nil {
			failed[e.Name] = err
			survivors = append(survivors, e)
		}
	}

	if err := s.save(survivors); err != nil {
		return err
	}
	if len(failed) > 0 {
		return &StopError{Failed: failed}
	}
	return nil
}

func (s *Supervisor) stop(ctx context.Context, e Entry) error {
	alive, err := s.controller.Running(ctx, e.PID)
	if err != nil || !alive {
		slog.Debug("skipping stale process entry", "name", e.Name, "pid", e.PID, "error", err)
		return nil
	}

	if err := s.controller.Terminate(ctx, e.PID); err != nil {
		slog.Debug("terminate failed, killing", "name", e.Name, "pid", e.PID, "error", err)
		return s.kill(ctx, e)
	}

	deadline := time.NewTimer(s.grace)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if alive, err := s.controller.Running(ctx, e.PID); err == nil && !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return s.kill(ctx, e)
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) kill(ctx context.Context, e Entry) error {
	if err := s.controller.Kill(ctx, e.PID); err != nil {
		if alive, runErr := s.controller.Running(ctx, e.PID); runErr == nil && !alive {
			return nil
		}
		return fmt.Errorf("killing pid %d: %w", e.PID, err)
	}
	return nil
}

func (s *Supervisor) load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading process registry %s: %w", s.path, err)
	}

	var rf registryFile
	if err := toml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("decoding process registry %s: %w", s.path, err)
	}
	return rf.Processes, nil
}

func (s *Supervisor) save(entries []Entry) error {
	data, err := toml.Marshal(registryFile{Processes: entries})
	if err != nil {
		return fmt.Errorf("encoding process registry: %w", err)
	}
	if err := state.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing process registry %s: %w", s.path, err)
	}
	return nil
}

func (gopsutilController) Running(ctx context.Context, pid int32) (bool, error) {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil || !exists {
		return false, err
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return false, nil
		}
		return false, err
	}
	if status, err := p.StatusWithContext(ctx); err == nil && slices.Contains(status, process.Zombie) {
		return false, nil
	}
	return p.IsRunningWithContext(ctx)
}

func (gopsutilController) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

func (gopsutilController) Kill(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}
