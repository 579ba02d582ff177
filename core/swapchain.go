// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Surface is the platform swapchain a SwapchainController manages.
// Rebuild replaces the current swapchain with one matching the
// surface's present size and returns the new image set. Acquire and
// Present return ErrOutOfDate when the platform reports the swapchain
// stale.
type Surface interface {
	Rebuild() ([]Image, Extent2D, error)
	Acquire(imageAvailable Semaphore) (uint32, error)
	Present(imageIndex uint32, renderFinished Semaphore) error
	Destroy()
}

// SwapRebuild describes the image set produced by a swapchain rebuild.
type SwapRebuild struct {
	Images []Image
	Extent Extent2D
}

// SwapchainController owns the rebuild policy around a Surface: the
// first Acquire builds the swapchain lazily, a stale acquire rebuilds
// and retries up to the configured bound, and a stale present is left
// for the next acquire to repair.
type SwapchainController struct {
	surface Surface
	retries int
	built   bool
}

// NewSwapchainController wraps surface. retries bounds how many
// rebuild-then-reacquire rounds a single Acquire may take after the
// platform reports the swapchain out of date.
func NewSwapchainController(surface Surface, retries int) *SwapchainController {
	return &SwapchainController{
		surface: surface,
		retries: retries,
	}
}

// Acquire obtains the next image index. The returned SwapRebuild is
// non-nil when this call (re)built the swapchain; the caller must
// rebuild anything sized to the swap images before using the index.
func (s *SwapchainController) Acquire(imageAvailable Semaphore) (uint32, *SwapRebuild, error) {
	var rebuild *SwapRebuild
	if !s.built {
		r, err := s.rebuild()
		if err != nil {
			return 0, nil, err
		}
		s.built = true
		rebuild = r
	}

	for attempt := 0; ; attempt++ {
		index, err := s.surface.Acquire(imageAvailable)
		if err == nil {
			return index, rebuild, nil
		}
		if !errors.Is(err, ErrOutOfDate) {
			return 0, nil, err
		}
		if attempt >= s.retries {
			return 0, nil, fmt.Errorf("swapchain: still out of date after %d rebuilds: %w", s.retries, ErrRetryExhausted)
		}

		log.Debug("swapchain out of date on acquire, rebuilding")
		r, err := s.rebuild()
		if err != nil {
			return 0, nil, err
		}
		rebuild = r
	}
}

// Present hands the image back to the platform. An out-of-date result
// here is advisory: the image was consumed, and the next Acquire will
// rebuild, so it is logged and swallowed.
func (s *SwapchainController) Present(imageIndex uint32, renderFinished Semaphore) error {
	err := s.surface.Present(imageIndex, renderFinished)
	if errors.Is(err, ErrOutOfDate) {
		log.Debug("swapchain out of date on present, deferring rebuild to next acquire")
		return nil
	}
	return err
}

func (s *SwapchainController) rebuild() (*SwapRebuild, error) {
	images, extent, err := s.surface.Rebuild()
	if err != nil {
		return nil, err
	}
	return &SwapRebuild{Images: images, Extent: extent}, nil
}

// Destroy releases the surface's swapchain.
func (s *SwapchainController) Destroy() {
	s.surface.Destroy()
}
