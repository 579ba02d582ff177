// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package compositor runs the frame loop against a VR compositor. The
// compositor owns frame pacing and image synchronization, so sessions
// here skip semaphore-ordered presents and instead bracket every frame
// with the runtime's wait/begin/end calls.
package compositor

import (
	"github.com/fathom3d/fathom/core"
	"github.com/fathom3d/fathom/loop"
)

// SessionState is the compositor's view of the session lifecycle.
// Transitions arrive as SessionStateChanged events; the session reacts
// but never assumes a state it was not told about.
type SessionState int

const (
	// StateIdle: session exists but the compositor is not ready for
	// frames yet.
	StateIdle SessionState = iota

	// StateReady: the compositor wants the session begun.
	StateReady

	// StateRunning: frames are being consumed.
	StateRunning

	// StateStopping: the compositor wants the session ended, but the
	// runtime may restart it later.
	StateStopping

	// StateLossPending: the session is lost and will not come back.
	StateLossPending

	// StateExiting: the user asked to quit; tear everything down.
	StateExiting
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateLossPending:
		return "loss-pending"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Event is a compositor runtime event. Sessions understand the two
// types below and forward everything to the application untouched.
type Event interface{}

// SessionStateChanged reports a session lifecycle transition.
type SessionStateChanged struct {
	State SessionState
}

// InstanceLossPending reports that the whole runtime instance is going
// away; the only valid response is to exit.
type InstanceLossPending struct{}

// FrameState is the compositor's answer to a frame wait: when the
// frame will display and whether rendering it is worthwhile.
type FrameState struct {
	DisplayTime  int64
	ShouldRender bool
}

// Runtime is the compositor API surface the session drives. It wraps
// one compositor session and its single swapchain.
type Runtime interface {
	// PollEvent returns the next pending event, or ok=false when the
	// queue is drained.
	PollEvent() (ev Event, ok bool)

	BeginSession() error
	EndSession() error

	// RequestExit asks the runtime to transition the session toward
	// StateExiting. The transition arrives later via PollEvent.
	RequestExit() error

	// WaitFrame blocks until the compositor wants the next frame.
	WaitFrame() (FrameState, error)

	// BeginFrame opens the frame bracket. Every BeginFrame must be
	// matched by EndFrame, rendered or not.
	BeginFrame() error

	// EndFrame closes the frame bracket. An empty views slice tells
	// the compositor nothing was rendered this frame.
	EndFrame(displayTime int64, views []loop.View) error

	// CreateSwapchain builds the session swapchain from the runtime's
	// view configuration and returns its images. Images are layered,
	// one array layer per eye.
	CreateSwapchain() ([]core.Image, core.Extent2D, error)

	// AcquireImage, WaitImage and ReleaseImage are the runtime's image
	// handshake: acquire an index, wait until the compositor is done
	// reading it, release it after rendering.
	AcquireImage() (uint32, error)
	WaitImage() error
	ReleaseImage() error

	Destroy()
}
