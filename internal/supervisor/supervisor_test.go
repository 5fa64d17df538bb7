// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"
)

// fakeController simulates processes. Terminated pids die unless stubborn.
type fakeController struct {
	mu         sync.Mutex
	alive      map[int32]bool
	stubborn   map[int32]bool
	unkillable map[int32]bool
	terminated []int32
	killed     []int32
}

func newFakeController(pids ...int32) *fakeController {
	c := &fakeController{
		alive:      make(map[int32]bool),
		stubborn:   make(map[int32]bool),
		unkillable: make(map[int32]bool),
	}
	for _, pid := range pids {
		c.alive[pid] = true
	}
	return c
}

func (c *fakeController) Running(_ context.Context, pid int32) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive[pid], nil
}

func (c *fakeController) Terminate(_ context.Context, pid int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terminated = append(c.terminated, pid)
	if !c.stubborn[pid] {
		c.alive[pid] = false
	}
	return nil
}

func (c *fakeController) Kill(_ context.Context, pid int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killed = append(c.killed, pid)
	if c.unkillable[pid] {
		return errors.New("operation not permitted")
	}
	c.alive[pid] = false
	return nil
}

func newTestSupervisor(t *testing.T, opts ...Option) *Supervisor {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), ".trondev"), opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func TestNew_RequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := New(" "); err == nil {
		t.Fatal("New() with blank dir should fail")
	}
}

func TestRegisterAndList(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	if err := s.Register("solidity-node", 200); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("full-node", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("full-node", 101); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() = %v, want 2 entries", entries)
	}
	if entries[0].Name != "full-node" || entries[0].PID != 101 {
		t.Errorf("entries[0] = %+v, want full-node/101", entries[0])
	}
	if entries[1].Name != "solidity-node" || entries[1].PID != 200 {
		t.Errorf("entries[1] = %+v, want solidity-node/200", entries[1])
	}
}

func TestRegister_InvalidPID(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	if err := s.Register("full-node", 0); !errors.Is(err, ErrInvalidPID) {
		t.Errorf("Register(0) error = %v, want ErrInvalidPID", err)
	}
}

func TestStopAll_EmptyRegistry(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	s := newTestSupervisor(t, WithController(ctrl))
	if err := s.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll() on empty registry error: %v", err)
	}
	if len(ctrl.terminated) != 0 {
		t.Errorf("terminated = %v, want none", ctrl.terminated)
	}
}

func TestStopAll_TerminatesLiveAndSkipsStale(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController(100)
	s := newTestSupervisor(t, WithController(ctrl))
	if err := s.Register("full-node", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("event-node", 300); err != nil { // not alive
		t.Fatal(err)
	}

	if err := s.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll() error: %v", err)
	}
	if len(ctrl.terminated) != 1 || ctrl.terminated[0] != 100 {
		t.Errorf("terminated = %v, want [100]", ctrl.terminated)
	}
	if len(ctrl.killed) != 0 {
		t.Errorf("killed = %v, want none", ctrl.killed)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("registry after StopAll = %v, want empty", entries)
	}
}

func TestStopAll_KillsAfterGracePeriod(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController(100)
	ctrl.stubborn[100] = true
	s := newTestSupervisor(t, WithController(ctrl), WithGracePeriod(50*time.Millisecond))
	if err := s.Register("full-node", 100); err != nil {
		t.Fatal(err)
	}

	if err := s.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll() error: %v", err)
	}
	if len(ctrl.killed) != 1 || ctrl.killed[0] != 100 {
		t.Errorf("killed = %v, want [100]", ctrl.killed)
	}
}

func TestStopAll_ReportsSurvivors(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController(100, 200)
	ctrl.stubborn[100] = true
	ctrl.unkillable[100] = true
	s := newTestSupervisor(t, WithController(ctrl), WithGracePeriod(10*time.Millisecond))
	if err := s.Register("full-node", 100); err != nil {
		t.Fatal(err)
	}
	if err := s.Register("solidity-node", 200); err != nil {
		t.Fatal(err)
	}

	err := s.StopAll(context.Background())
	var stopErr *StopError
	if !errors.As(err, &stopErr) {
		t.Fatalf("StopAll() error = %v, want *StopError", err)
	}
	if _, ok := stopErr.Failed["full-node"]; !ok || len(stopErr.Failed) != 1 {
		t.Errorf("Failed = %v, want only full-node", stopErr.Failed)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "full-node" {
		t.Errorf("registry = %v, want only the survivor", entries)
	}
}

func TestStopAll_CorruptRegistry(t *testing.T) {
	t.Parallel()

	s := newTestSupervisor(t)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.path, []byte("[[process]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.StopAll(context.Background()); err == nil {
		t.Fatal("StopAll() with corrupt registry should fail")
	}
}

func TestStopAll_RealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("terminate signals are not delivered to console processes on Windows")
	}
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}
	t.Parallel()

	cmd := exec.Command(os.Args[0], "-test.run=TestHelperProcess") //nolint:noctx // test helper process
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting helper process: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	s := newTestSupervisor(t, WithGracePeriod(5*time.Second))
	if err := s.Register("full-node", int32(cmd.Process.Pid)); err != nil {
		t.Fatal(err)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if !s.Running(context.Background(), entries[0]) {
		t.Fatal("helper process should be running")
	}

	if err := s.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll() error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("helper process still running after StopAll")
	}
}

// TestHelperProcess is not a real test. It sleeps until it is signalled.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	time.Sleep(time.Minute)
	os.Exit(0)
}
