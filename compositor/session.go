// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compositor

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/fathom3d/fathom/core"
	"github.com/fathom3d/fathom/loop"
)

// ErrSessionLost is returned when the runtime reports the session or
// instance unrecoverable mid-frame.
var ErrSessionLost = errors.New("compositor: session lost")

// Session is a compositor-backed loop.Session. The runtime decides
// when frames run; between StateReady and StateStopping the session
// reports Running and drives the frame bracket, outside it the loop
// idles on events.
type Session struct {
	runtime Runtime

	state          SessionState
	sessionRunning bool
	swapchainBuilt bool
	displayTime    int64
	destroyed      bool
}

// NewSession wraps an initialized runtime. The session starts idle and
// waits for the runtime to report StateReady.
func NewSession(runtime Runtime) *Session {
	return &Session{runtime: runtime}
}

// PumpEvents implements loop.Session. It drains the runtime's event
// queue, drives the session lifecycle off state transitions, and
// forwards every event to the application.
func (s *Session) PumpEvents(app loop.App) (bool, error) {
	for {
		ev, ok := s.runtime.PollEvent()
		if !ok {
			return false, nil
		}

		exit, err := app.Event(ev)
		if err != nil {
			return false, err
		}
		if exit {
			return true, nil
		}

		switch e := ev.(type) {
		case SessionStateChanged:
			if done, err := s.transition(e.State); done || err != nil {
				return done, err
			}
		case InstanceLossPending:
			log.Warn("compositor instance loss pending, exiting")
			return true, nil
		}
	}
}

func (s *Session) transition(next SessionState) (exit bool, err error) {
	log.WithFields(log.Fields{
		"from": s.state.String(),
		"to":   next.String(),
	}).Debug("compositor session state changed")
	s.state = next

	switch next {
	case StateReady:
		if err := s.runtime.BeginSession(); err != nil {
			return false, err
		}
		s.sessionRunning = true
	case StateStopping:
		s.sessionRunning = false
		if err := s.runtime.EndSession(); err != nil {
			return false, err
		}
	case StateLossPending, StateExiting:
		s.sessionRunning = false
		return true, nil
	}
	return false, nil
}

// Running implements loop.Session.
func (s *Session) Running() bool {
	return s.sessionRunning
}

// Stereo implements loop.Session. Compositor swap images carry one
// array layer per eye.
func (s *Session) Stereo() bool {
	return true
}

// PresentSync implements loop.Session. The runtime synchronizes image
// access itself through its wait/release handshake.
func (s *Session) PresentSync() bool {
	return false
}

// Acquire implements loop.Session. It opens the frame bracket; when
// the compositor declines rendering the bracket is closed empty and
// the frame skipped. The swapchain is built on the first frame that
// actually renders.
func (s *Session) Acquire(_ core.Semaphore) (loop.AcquireResult, error) {
	frameState, err := s.runtime.WaitFrame()
	if err != nil {
		return loop.AcquireResult{}, err
	}
	s.displayTime = frameState.DisplayTime

	if err := s.runtime.BeginFrame(); err != nil {
		return loop.AcquireResult{}, err
	}

	if !frameState.ShouldRender {
		if err := s.runtime.EndFrame(frameState.DisplayTime, nil); err != nil {
			return loop.AcquireResult{}, err
		}
		return loop.AcquireResult{Skip: true}, nil
	}

	var resize *loop.ResizeInfo
	if !s.swapchainBuilt {
		images, extent, err := s.runtime.CreateSwapchain()
		if err != nil {
			return loop.AcquireResult{}, err
		}
		s.swapchainBuilt = true
		resize = &loop.ResizeInfo{Images: images, Extent: extent}
		log.WithFields(log.Fields{
			"images": len(images),
			"width":  extent.Width,
			"height": extent.Height,
		}).Debug("compositor swapchain created")
	}

	index, err := s.runtime.AcquireImage()
	if err != nil {
		return loop.AcquireResult{}, err
	}
	if err := s.runtime.WaitImage(); err != nil {
		return loop.AcquireResult{}, err
	}

	return loop.AcquireResult{ImageIndex: index, Resize: resize}, nil
}

// Present implements loop.Session. It releases the image back to the
// compositor and closes the frame bracket with the rendered views.
func (s *Session) Present(_ uint32, _ core.Semaphore, ret loop.FrameReturn) error {
	if err := s.runtime.ReleaseImage(); err != nil {
		return err
	}
	return s.runtime.EndFrame(s.displayTime, ret.Views)
}

// RequestExit implements loop.Session. The exit is asynchronous: the
// runtime answers with StateStopping then StateExiting through
// PumpEvents.
func (s *Session) RequestExit() {
	if err := s.runtime.RequestExit(); err != nil {
		log.WithError(err).Warn("compositor exit request failed")
	}
}

// Destroy implements loop.Session.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.runtime.Destroy()
}
