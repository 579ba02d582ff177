// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
)

// FramebufferManager owns the depth/color attachment images and the
// per-swap-image framebuffers. It is rebuilt in lock-step with the
// swapchain: Resize is the single mutation point, called whenever the
// session reports a new image set or extent.
type FramebufferManager struct {
	core      *Core
	stereo    bool
	samples   int
	internals *fbInternals
}

type fbInternals struct {
	extent   Extent2D
	depth    Attachment
	color    Attachment
	hasColor bool
	frames   []frameEntry
}

type frameEntry struct {
	framebuffer Framebuffer
	swapView    ImageView
}

// NewFramebufferManager creates an empty manager. Nothing is allocated
// until the first Resize. Stereo sessions get two array layers per
// attachment; samples > 1 adds an intermediate multisampled color
// attachment.
func NewFramebufferManager(c *Core, stereo bool, samples int) *FramebufferManager {
	if samples <= 0 {
		samples = 1
	}
	return &FramebufferManager{
		core:    c,
		stereo:  stereo,
		samples: samples,
	}
}

// Resize drops the previous attachment set and builds a new one sized
// to extent, with one framebuffer per supplied swap image. The queue is
// drained first so no in-flight frame can reference the old images.
// Calling it again with identical arguments yields an equivalent set;
// nothing leaks.
func (f *FramebufferManager) Resize(images []Image, extent Extent2D, rp RenderPass) error {
	if err := f.core.Device.QueueWaitIdle(); err != nil {
		return errors.New("Device.QueueWaitIdle(): " + err.Error())
	}
	f.free()

	layers := uint32(1)
	if f.stereo {
		layers = 2
	}

	internals := &fbInternals{extent: extent}

	depth, err := f.core.Device.CreateAttachment(AttachmentInfo{
		Kind:    DepthAttachment,
		Extent:  extent,
		Layers:  layers,
		Samples: f.samples,
	})
	if err != nil {
		return errors.New("Device.CreateAttachment(depth): " + err.Error())
	}
	internals.depth = depth

	if f.samples > 1 {
		color, err := f.core.Device.CreateAttachment(AttachmentInfo{
			Kind:    ColorAttachment,
			Extent:  extent,
			Layers:  layers,
			Samples: f.samples,
		})
		if err != nil {
			f.core.Device.DestroyAttachment(depth)
			return errors.New("Device.CreateAttachment(color): " + err.Error())
		}
		internals.color = color
		internals.hasColor = true
	}

	for idx, image := range images {
		swapView, err := f.core.Device.CreateSwapImageView(image, layers)
		if err != nil {
			f.internals = internals
			f.free()
			return fmt.Errorf("Device.CreateSwapImageView()[%d]: %s", idx, err.Error())
		}

		var views []ImageView
		if internals.hasColor {
			views = []ImageView{internals.color.View, internals.depth.View, swapView}
		} else {
			views = []ImageView{swapView, internals.depth.View}
		}

		framebuffer, err := f.core.Device.CreateFramebuffer(rp, views, extent)
		if err != nil {
			f.core.Device.DestroyImageView(swapView)
			f.internals = internals
			f.free()
			return fmt.Errorf("Device.CreateFramebuffer()[%d]: %s", idx, err.Error())
		}

		internals.frames = append(internals.frames, frameEntry{
			framebuffer: framebuffer,
			swapView:    swapView,
		})
	}

	f.internals = internals
	return nil
}

// Frame returns the framebuffer for a swapchain image index. Calling it
// before the first successful Resize, or with an index outside the
// current image set, is a programming error and panics.
func (f *FramebufferManager) Frame(index uint32) Framebuffer {
	if f.internals == nil {
		panic("core: FramebufferManager.Frame called before Resize")
	}
	if int(index) >= len(f.internals.frames) {
		panic(fmt.Sprintf("core: swapchain image index %d out of range [0,%d)",
			index, len(f.internals.frames)))
	}
	return f.internals.frames[index].framebuffer
}

// Extent returns the extent of the current attachment set. Panics if
// called before the first successful Resize.
func (f *FramebufferManager) Extent() Extent2D {
	if f.internals == nil {
		panic("core: FramebufferManager.Extent called before Resize")
	}
	return f.internals.extent
}

// FrameCount returns the number of framebuffers in the current set,
// zero before the first Resize.
func (f *FramebufferManager) FrameCount() int {
	if f.internals == nil {
		return 0
	}
	return len(f.internals.frames)
}

// Destroy mirrors Resize's cleanup path. Idempotent.
func (f *FramebufferManager) Destroy() {
	f.free()
}

// free releases the current attachment set after a device idle wait.
// A never-initialized manager frees nothing.
func (f *FramebufferManager) free() {
	if f.internals == nil {
		return
	}
	f.core.Device.WaitIdle()

	for _, frame := range f.internals.frames {
		f.core.Device.DestroyFramebuffer(frame.framebuffer)
		f.core.Device.DestroyImageView(frame.swapView)
	}
	if f.internals.hasColor {
		f.core.Device.DestroyAttachment(f.internals.color)
	}
	f.core.Device.DestroyAttachment(f.internals.depth)
	f.internals = nil
}
