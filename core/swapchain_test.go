// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"testing"
)

type acquireStep struct {
	index uint32
	err   error
}

// scriptedSurface plays back a fixed sequence of acquire outcomes and
// counts rebuilds.
type scriptedSurface struct {
	script     []acquireStep
	acquires   int
	rebuilds   int
	presents   []uint32
	presentErr error
	destroyed  bool
}

func (s *scriptedSurface) Rebuild() ([]Image, Extent2D, error) {
	s.rebuilds++
	return []Image{1, 2, 3}, Extent2D{Width: 800, Height: 600}, nil
}

func (s *scriptedSurface) Acquire(_ Semaphore) (uint32, error) {
	if s.acquires >= len(s.script) {
		return 0, errors.New("scripted surface ran out of steps")
	}
	step := s.script[s.acquires]
	s.acquires++
	return step.index, step.err
}

func (s *scriptedSurface) Present(index uint32, _ Semaphore) error {
	s.presents = append(s.presents, index)
	return s.presentErr
}

func (s *scriptedSurface) Destroy() {
	s.destroyed = true
}

func TestSwapchainBuildsLazily(t *testing.T) {
	surface := &scriptedSurface{script: []acquireStep{{index: 1}, {index: 2}}}
	sc := NewSwapchainController(surface, 1)

	if surface.rebuilds != 0 {
		t.Fatal("swapchain built before the first acquire")
	}

	index, rebuild, err := sc.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire: %s", err)
	}
	if index != 1 {
		t.Errorf("got image %d, want 1", index)
	}
	if rebuild == nil {
		t.Fatal("first acquire must report the initial image set")
	}
	if len(rebuild.Images) != 3 || rebuild.Extent.Width != 800 {
		t.Errorf("unexpected rebuild info: %+v", rebuild)
	}

	_, rebuild, err = sc.Acquire(0)
	if err != nil {
		t.Fatalf("second Acquire: %s", err)
	}
	if rebuild != nil {
		t.Error("steady-state acquire must not report a rebuild")
	}
	if surface.rebuilds != 1 {
		t.Errorf("expected exactly one build, got %d", surface.rebuilds)
	}
}

func TestSwapchainRebuildsOnOutOfDate(t *testing.T) {
	surface := &scriptedSurface{script: []acquireStep{
		{index: 0},          // initial acquire
		{err: ErrOutOfDate}, // window resized
		{index: 2},          // fine after rebuild
	}}
	sc := NewSwapchainController(surface, 1)

	if _, _, err := sc.Acquire(0); err != nil {
		t.Fatalf("initial Acquire: %s", err)
	}

	index, rebuild, err := sc.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire after out-of-date: %s", err)
	}
	if index != 2 {
		t.Errorf("got image %d, want 2", index)
	}
	if rebuild == nil {
		t.Error("a rebuild-and-retry must hand the new image set to the caller")
	}
	if surface.rebuilds != 2 {
		t.Errorf("expected initial build plus one rebuild, got %d", surface.rebuilds)
	}
}

func TestSwapchainRetriesExhausted(t *testing.T) {
	surface := &scriptedSurface{script: []acquireStep{
		{err: ErrOutOfDate},
		{err: ErrOutOfDate},
	}}
	sc := NewSwapchainController(surface, 1)

	_, _, err := sc.Acquire(0)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected retry exhaustion, got %v", err)
	}
	if surface.rebuilds != 2 {
		t.Errorf("expected initial build plus one retry rebuild, got %d", surface.rebuilds)
	}
}

func TestSwapchainAcquireErrorPassesThrough(t *testing.T) {
	boom := errors.New("surface gone")
	surface := &scriptedSurface{script: []acquireStep{{err: boom}}}
	sc := NewSwapchainController(surface, 1)

	if _, _, err := sc.Acquire(0); !errors.Is(err, boom) {
		t.Fatalf("expected the surface error, got %v", err)
	}
}

func TestSwapchainPresentOutOfDateIsAdvisory(t *testing.T) {
	surface := &scriptedSurface{
		script:     []acquireStep{{index: 0}},
		presentErr: ErrOutOfDate,
	}
	sc := NewSwapchainController(surface, 1)

	if _, _, err := sc.Acquire(0); err != nil {
		t.Fatalf("Acquire: %s", err)
	}
	if err := sc.Present(0, 0); err != nil {
		t.Fatalf("out-of-date present must be swallowed, got %v", err)
	}
	if len(surface.presents) != 1 {
		t.Errorf("present was not forwarded to the surface")
	}
}

func TestSwapchainPresentErrorPropagates(t *testing.T) {
	boom := errors.New("queue gone")
	surface := &scriptedSurface{
		script:     []acquireStep{{index: 0}},
		presentErr: boom,
	}
	sc := NewSwapchainController(surface, 1)

	if _, _, err := sc.Acquire(0); err != nil {
		t.Fatalf("Acquire: %s", err)
	}
	if err := sc.Present(0, 0); !errors.Is(err, boom) {
		t.Fatalf("expected the surface error, got %v", err)
	}
}

func TestSwapchainDestroy(t *testing.T) {
	surface := &scriptedSurface{}
	sc := NewSwapchainController(surface, 1)
	sc.Destroy()
	if !surface.destroyed {
		t.Error("controller did not release the surface")
	}
}
