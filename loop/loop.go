// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package loop runs the per-frame tick shared by the desktop and
// compositor backends. The Dispatcher owns frame pacing, swapchain
// synchronization and framebuffer lifetime; a Session supplies the
// platform half (event pump, image acquire, present) and an App
// supplies the rendering.
package loop

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/fathom3d/fathom/core"
)

// Event is a platform event forwarded to the application untouched.
// Desktop sessions pass SDL events; compositor sessions pass their
// runtime's events.
type Event interface{}

// Fov holds the tangent-space field of view angles for one view,
// in radians.
type Fov struct {
	AngleLeft  float32
	AngleRight float32
	AngleUp    float32
	AngleDown  float32
}

// View is one rendered viewpoint. Desktop sessions have exactly one;
// compositor sessions have one per eye.
type View struct {
	Position    mgl32.Vec3
	Orientation mgl32.Quat
	Fov         Fov
}

// FrameReturn carries the application's per-frame results back to the
// session, which may need them to close out the frame (the compositor
// reports rendered views to the runtime).
type FrameReturn struct {
	Views []View
}

// Frame is the per-tick context handed to the application once an
// image is acquired and the frame slot's commands are ready to record.
type Frame struct {
	Command    core.CommandBuffer
	ImageIndex uint32
	Slot       int
	Extent     core.Extent2D
}

// ResizeInfo describes a fresh set of swap images after a session
// rebuilt its swapchain.
type ResizeInfo struct {
	Images []core.Image
	Extent core.Extent2D
}

// AcquireResult is the outcome of asking the session for the next
// image. Resize is non-nil when the swapchain was (re)built on the way
// to this acquire; the dispatcher rebuilds framebuffers before using
// the returned index. Skip means the session has no image this tick
// and the frame must be dropped without rendering or presenting.
type AcquireResult struct {
	ImageIndex uint32
	Skip       bool
	Resize     *ResizeInfo
}

// Session is the platform capability surface the dispatcher runs
// against. One session maps to one window or one compositor session.
type Session interface {
	// PumpEvents drains pending platform events, forwarding
	// app-relevant ones through app.Event. It returns true when the
	// platform asked the loop to exit.
	PumpEvents(app App) (exit bool, err error)

	// Running reports whether the session wants frames submitted right
	// now. A desktop session always runs; a compositor session runs
	// only while the runtime has the session in a visible state.
	Running() bool

	// Stereo reports whether swap images carry two array layers.
	Stereo() bool

	// PresentSync reports whether acquire and present are ordered with
	// semaphores. Compositor runtimes do their own image
	// synchronization, so their sessions return false.
	PresentSync() bool

	// Acquire obtains the next swap image, rebuilding the swapchain
	// first if the platform reported it stale.
	Acquire(imageAvailable core.Semaphore) (AcquireResult, error)

	// Present hands the rendered image back to the platform.
	Present(imageIndex uint32, renderFinished core.Semaphore, ret FrameReturn) error

	// RequestExit asks the platform to wind the session down. The
	// actual exit arrives later through PumpEvents.
	RequestExit()

	Destroy()
}

// App is the rendering application driven by the dispatcher.
type App interface {
	// Init is called once before the first tick. The returned render
	// pass is used for every framebuffer the dispatcher builds.
	Init(c *core.Core, s Session) (core.RenderPass, error)

	// Frame records draw commands for one tick. The command buffer is
	// already inside a render pass scoped to the current framebuffer.
	Frame(f Frame) (FrameReturn, error)

	// Resize is called after the dispatcher rebuilt framebuffers for a
	// new swapchain, before the first frame that uses them.
	Resize(images []core.Image, extent core.Extent2D) error

	// Event receives forwarded platform events. Returning true exits
	// the loop.
	Event(ev Event) (exit bool, err error)
}
