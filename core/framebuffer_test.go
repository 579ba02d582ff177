// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import "testing"

func TestResizeBuildsPerImageFramebuffers(t *testing.T) {
	dev := NewNullDevice()
	c := newTestCore(dev, Configuration{})
	fm := NewFramebufferManager(c, false, 1)
	defer fm.Destroy()

	rp, _ := dev.CreateRenderPass(1)
	extent := Extent2D{Width: 800, Height: 600}

	if err := fm.Resize(dev.NewSwapImages(3), extent, rp); err != nil {
		t.Fatalf("Resize: %s", err)
	}

	if fm.FrameCount() != 3 {
		t.Fatalf("expected 3 framebuffers, got %d", fm.FrameCount())
	}
	if fm.Extent() != extent {
		t.Errorf("extent round trip failed: %+v", fm.Extent())
	}
	if dev.LiveFramebuffers() != 3 {
		t.Errorf("expected 3 live framebuffers, got %d", dev.LiveFramebuffers())
	}
	// One view per swap image plus the depth attachment's view.
	if dev.LiveImageViews() != 4 {
		t.Errorf("expected 4 live image views, got %d", dev.LiveImageViews())
	}
	if dev.LiveAttachments() != 1 {
		t.Errorf("expected only the depth attachment, got %d", dev.LiveAttachments())
	}

	seen := map[Framebuffer]bool{}
	for i := uint32(0); i < 3; i++ {
		fb := fm.Frame(i)
		if fb == 0 || seen[fb] {
			t.Errorf("framebuffer for image %d is null or duplicated", i)
		}
		seen[fb] = true
	}
}

func TestResizeReplacesOldSet(t *testing.T) {
	dev := NewNullDevice()
	c := newTestCore(dev, Configuration{})
	fm := NewFramebufferManager(c, false, 1)
	defer fm.Destroy()

	rp, _ := dev.CreateRenderPass(1)

	if err := fm.Resize(dev.NewSwapImages(3), Extent2D{Width: 800, Height: 600}, rp); err != nil {
		t.Fatalf("first Resize: %s", err)
	}
	if err := fm.Resize(dev.NewSwapImages(2), Extent2D{Width: 1024, Height: 768}, rp); err != nil {
		t.Fatalf("second Resize: %s", err)
	}

	if fm.FrameCount() != 2 {
		t.Fatalf("expected 2 framebuffers after shrink, got %d", fm.FrameCount())
	}
	if got := fm.Extent(); got.Width != 1024 || got.Height != 768 {
		t.Errorf("extent not updated, got %+v", got)
	}

	// The old set must be fully released: net resource usage matches a
	// single build of the new set.
	if dev.LiveFramebuffers() != 2 {
		t.Errorf("old framebuffers leaked: %d live", dev.LiveFramebuffers())
	}
	if dev.LiveImageViews() != 3 {
		t.Errorf("old image views leaked: %d live", dev.LiveImageViews())
	}
	if dev.LiveAttachments() != 1 {
		t.Errorf("old attachments leaked: %d live", dev.LiveAttachments())
	}

	// Every rebuild drains the queue before freeing anything an
	// in-flight frame might reference.
	if dev.QueueIdleWaits() < 2 {
		t.Errorf("expected a queue drain per Resize, got %d", dev.QueueIdleWaits())
	}
}

func TestResizeIdenticalArgumentsDoesNotLeak(t *testing.T) {
	dev := NewNullDevice()
	c := newTestCore(dev, Configuration{})
	fm := NewFramebufferManager(c, false, 1)
	defer fm.Destroy()

	rp, _ := dev.CreateRenderPass(1)
	images := dev.NewSwapImages(3)
	extent := Extent2D{Width: 800, Height: 600}

	for i := 0; i < 3; i++ {
		if err := fm.Resize(images, extent, rp); err != nil {
			t.Fatalf("Resize %d: %s", i, err)
		}
	}

	if dev.LiveFramebuffers() != 3 || dev.LiveImageViews() != 4 || dev.LiveAttachments() != 1 {
		t.Errorf("repeated identical Resize leaked: %d fbs, %d views, %d attachments",
			dev.LiveFramebuffers(), dev.LiveImageViews(), dev.LiveAttachments())
	}
}

func TestMSAAAddsColorAttachment(t *testing.T) {
	dev := NewNullDevice()
	c := newTestCore(dev, Configuration{})
	fm := NewFramebufferManager(c, false, 4)
	defer fm.Destroy()

	rp, _ := dev.CreateRenderPass(4)
	if err := fm.Resize(dev.NewSwapImages(2), Extent2D{Width: 640, Height: 480}, rp); err != nil {
		t.Fatalf("Resize: %s", err)
	}

	if dev.LiveAttachments() != 2 {
		t.Fatalf("expected depth and color attachments, got %d", dev.LiveAttachments())
	}

	var foundColor bool
	for _, info := range dev.Attachments() {
		if info.Kind == ColorAttachment {
			foundColor = true
			if info.Samples != 4 {
				t.Errorf("color attachment has %d samples, want 4", info.Samples)
			}
		}
	}
	if !foundColor {
		t.Error("no multisampled color attachment was created")
	}
}

func TestStereoAttachmentLayers(t *testing.T) {
	for _, tc := range []struct {
		stereo bool
		layers uint32
	}{
		{stereo: false, layers: 1},
		{stereo: true, layers: 2},
	} {
		dev := NewNullDevice()
		c := newTestCore(dev, Configuration{})
		fm := NewFramebufferManager(c, tc.stereo, 1)

		rp, _ := dev.CreateRenderPass(1)
		if err := fm.Resize(dev.NewSwapImages(2), Extent2D{Width: 512, Height: 512}, rp); err != nil {
			t.Fatalf("Resize(stereo=%v): %s", tc.stereo, err)
		}

		for _, info := range dev.Attachments() {
			if info.Layers != tc.layers {
				t.Errorf("stereo=%v: attachment has %d layers, want %d",
					tc.stereo, info.Layers, tc.layers)
			}
		}
		fm.Destroy()
	}
}

func TestFramePanicsBeforeResize(t *testing.T) {
	dev := NewNullDevice()
	c := newTestCore(dev, Configuration{})
	fm := NewFramebufferManager(c, false, 1)

	defer func() {
		if recover() == nil {
			t.Error("Frame before the first Resize should panic")
		}
	}()
	fm.Frame(0)
}

func TestExtentPanicsBeforeResize(t *testing.T) {
	dev := NewNullDevice()
	c := newTestCore(dev, Configuration{})
	fm := NewFramebufferManager(c, false, 1)

	defer func() {
		if recover() == nil {
			t.Error("Extent before the first Resize should panic")
		}
	}()
	fm.Extent()
}

func TestFramebufferDestroy(t *testing.T) {
	dev := NewNullDevice()
	c := newTestCore(dev, Configuration{})
	fm := NewFramebufferManager(c, true, 4)

	rp, _ := dev.CreateRenderPass(4)
	if err := fm.Resize(dev.NewSwapImages(3), Extent2D{Width: 800, Height: 600}, rp); err != nil {
		t.Fatalf("Resize: %s", err)
	}

	fm.Destroy()
	fm.Destroy() // idempotent, including on a never-resized manager

	if dev.LiveFramebuffers() != 0 || dev.LiveImageViews() != 0 || dev.LiveAttachments() != 0 {
		t.Errorf("destroy leaked: %d fbs, %d views, %d attachments",
			dev.LiveFramebuffers(), dev.LiveImageViews(), dev.LiveAttachments())
	}
	if dev.IdleWaits() == 0 {
		t.Error("destroy must wait for the device before freeing")
	}
}
