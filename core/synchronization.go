// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
)

type semaphorePair struct {
	imageAvailable Semaphore
	renderFinished Semaphore
}

// Synchronization tracks which GPU resources are safe to reuse for a
// given in-flight frame. It owns one fence per in-flight slot, created
// signaled, plus a record of which fence last rendered into each
// swapchain image. When presentSync is requested it also owns one
// semaphore pair per slot for swapchain hand-off.
type Synchronization struct {
	core        *Core
	fences      []Fence
	pairs       []semaphorePair
	imageFences map[uint32]Fence
}

// NewSynchronization creates fences (and, for interactive presentation,
// semaphore pairs) for framesInFlight slots. Pass presentSync false for
// headless or compositor sessions, which submit without semaphores.
func NewSynchronization(c *Core, framesInFlight int, presentSync bool) (*Synchronization, error) {
	if framesInFlight <= 0 {
		panic("core: frames in flight must be positive")
	}

	s := &Synchronization{
		core:        c,
		imageFences: make(map[uint32]Fence),
	}

	for i := 0; i < framesInFlight; i++ {
		fence, err := c.Device.CreateFence(true)
		if err != nil {
			s.Destroy()
			return nil, errors.New("Device.CreateFence(): " + err.Error())
		}
		s.fences = append(s.fences, fence)

		if !presentSync {
			continue
		}
		avail, err := c.Device.CreateSemaphore()
		if err != nil {
			s.Destroy()
			return nil, errors.New("Device.CreateSemaphore(): " + err.Error())
		}
		finished, err := c.Device.CreateSemaphore()
		if err != nil {
			c.Device.DestroySemaphore(avail)
			s.Destroy()
			return nil, errors.New("Device.CreateSemaphore(): " + err.Error())
		}
		s.pairs = append(s.pairs, semaphorePair{
			imageAvailable: avail,
			renderFinished: finished,
		})
	}

	return s, nil
}

// Sync blocks until both the swapchain image and the slot's own
// per-frame resources are free, then hands back the slot's fence in the
// unsignaled state. The caller must signal it via the queue submission
// that renders this frame.
//
// Two waits happen here, in order. First, if another frame's fence is
// still registered for imageIndex, that fence is waited on: the
// presentation engine may not have finished with the image. Second, the
// slot's own fence is waited on and reset, gating reuse of the slot's
// command buffer and uniform regions.
//
// A wait that exceeds the configured fence timeout is device loss and
// comes back wrapped in ErrDeviceLost; it must not be retried.
func (s *Synchronization) Sync(imageIndex uint32, slot int) (Fence, error) {
	if slot < 0 || slot >= len(s.fences) {
		panic(fmt.Sprintf("core: in-flight slot %d out of range [0,%d)", slot, len(s.fences)))
	}

	if fence, ok := s.imageFences[imageIndex]; ok {
		if err := s.wait(fence); err != nil {
			return 0, err
		}
	}

	fence := s.fences[slot]
	if err := s.wait(fence); err != nil {
		return 0, err
	}
	if err := s.core.Device.ResetFence(fence); err != nil {
		return 0, errors.New("Device.ResetFence(): " + err.Error())
	}

	s.imageFences[imageIndex] = fence
	return fence, nil
}

func (s *Synchronization) wait(fence Fence) error {
	err := s.core.Device.WaitForFence(fence, s.core.Config.FenceTimeout)
	if err == ErrFenceTimeout {
		return fmt.Errorf("%w: fence wait exceeded %v", ErrDeviceLost, s.core.Config.FenceTimeout)
	}
	if err != nil {
		return errors.New("Device.WaitForFence(): " + err.Error())
	}
	return nil
}

// SwapchainSemaphores returns the slot's (imageAvailable, renderFinished)
// pair. ok is false when the Synchronization was built without
// presentation semaphores; the caller must then submit without them.
func (s *Synchronization) SwapchainSemaphores(slot int) (avail, finished Semaphore, ok bool) {
	if slot < 0 || slot >= len(s.fences) {
		panic(fmt.Sprintf("core: in-flight slot %d out of range [0,%d)", slot, len(s.fences)))
	}
	if len(s.pairs) == 0 {
		return 0, 0, false
	}
	pair := s.pairs[slot]
	return pair.imageAvailable, pair.renderFinished, true
}

// FramesInFlight returns the number of in-flight slots.
func (s *Synchronization) FramesInFlight() int {
	return len(s.fences)
}

// Destroy waits for the device to go idle and releases all fences and
// semaphores. Safe to call more than once.
func (s *Synchronization) Destroy() {
	if len(s.fences) == 0 && len(s.pairs) == 0 {
		return
	}
	s.core.Device.WaitIdle()

	for _, pair := range s.pairs {
		s.core.Device.DestroySemaphore(pair.imageAvailable)
		s.core.Device.DestroySemaphore(pair.renderFinished)
	}
	s.pairs = nil

	for _, fence := range s.fences {
		s.core.Device.DestroyFence(fence)
	}
	s.fences = nil
	s.imageFences = make(map[uint32]Fence)
}
