// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package compositor

import (
	"testing"

	"github.com/fathom3d/fathom/core"
	"github.com/fathom3d/fathom/loop"
)

// fakeRuntime scripts compositor events and frame states and records
// every call the session makes.
type fakeRuntime struct {
	events      []Event
	frameStates []FrameState

	begins        int
	ends          int
	exitRequests  int
	waits         int
	beginFrames   int
	endFrames     []endFrameCall
	createCalls   int
	imageAcquires int
	imageWaits    int
	imageReleases int
	destroyed     bool
}

type endFrameCall struct {
	displayTime int64
	views       []loop.View
}

func (r *fakeRuntime) PollEvent() (Event, bool) {
	if len(r.events) == 0 {
		return nil, false
	}
	ev := r.events[0]
	r.events = r.events[1:]
	return ev, true
}

func (r *fakeRuntime) BeginSession() error { r.begins++; return nil }
func (r *fakeRuntime) EndSession() error   { r.ends++; return nil }
func (r *fakeRuntime) RequestExit() error  { r.exitRequests++; return nil }

func (r *fakeRuntime) WaitFrame() (FrameState, error) {
	state := r.frameStates[r.waits%len(r.frameStates)]
	r.waits++
	return state, nil
}

func (r *fakeRuntime) BeginFrame() error { r.beginFrames++; return nil }

func (r *fakeRuntime) EndFrame(displayTime int64, views []loop.View) error {
	r.endFrames = append(r.endFrames, endFrameCall{displayTime: displayTime, views: views})
	return nil
}

func (r *fakeRuntime) CreateSwapchain() ([]core.Image, core.Extent2D, error) {
	r.createCalls++
	return []core.Image{1, 2, 3}, core.Extent2D{Width: 1600, Height: 1600}, nil
}

func (r *fakeRuntime) AcquireImage() (uint32, error) {
	index := uint32(r.imageAcquires % 3)
	r.imageAcquires++
	return index, nil
}

func (r *fakeRuntime) WaitImage() error    { r.imageWaits++; return nil }
func (r *fakeRuntime) ReleaseImage() error { r.imageReleases++; return nil }
func (r *fakeRuntime) Destroy()            { r.destroyed = true }

// eventApp records forwarded events.
type eventApp struct {
	events []loop.Event
	exitOn Event
}

func (a *eventApp) Init(_ *core.Core, _ loop.Session) (core.RenderPass, error) {
	return 1, nil
}

func (a *eventApp) Frame(_ loop.Frame) (loop.FrameReturn, error) {
	return loop.FrameReturn{}, nil
}

func (a *eventApp) Resize(_ []core.Image, _ core.Extent2D) error { return nil }

func (a *eventApp) Event(ev loop.Event) (bool, error) {
	a.events = append(a.events, ev)
	return a.exitOn != nil && ev == a.exitOn, nil
}

func TestSessionBeginsOnReady(t *testing.T) {
	rt := &fakeRuntime{events: []Event{SessionStateChanged{State: StateReady}}}
	s := NewSession(rt)

	if s.Running() {
		t.Fatal("session must start idle")
	}

	exit, err := s.PumpEvents(&eventApp{})
	if err != nil {
		t.Fatalf("PumpEvents: %s", err)
	}
	if exit {
		t.Fatal("ready must not exit the loop")
	}
	if rt.begins != 1 {
		t.Errorf("BeginSession called %d times, want 1", rt.begins)
	}
	if !s.Running() {
		t.Error("session not running after ready")
	}
}

func TestSessionStopsOnStopping(t *testing.T) {
	rt := &fakeRuntime{events: []Event{
		SessionStateChanged{State: StateReady},
		SessionStateChanged{State: StateStopping},
	}}
	s := NewSession(rt)

	exit, err := s.PumpEvents(&eventApp{})
	if err != nil {
		t.Fatalf("PumpEvents: %s", err)
	}
	if exit {
		t.Fatal("stopping must keep the loop alive for a later restart")
	}
	if rt.ends != 1 {
		t.Errorf("EndSession called %d times, want 1", rt.ends)
	}
	if s.Running() {
		t.Error("session still running after stopping")
	}
}

func TestSessionExitStates(t *testing.T) {
	for _, ev := range []Event{
		SessionStateChanged{State: StateExiting},
		SessionStateChanged{State: StateLossPending},
		InstanceLossPending{},
	} {
		rt := &fakeRuntime{events: []Event{ev}}
		s := NewSession(rt)

		exit, err := s.PumpEvents(&eventApp{})
		if err != nil {
			t.Fatalf("PumpEvents(%T): %s", ev, err)
		}
		if !exit {
			t.Errorf("%T must exit the loop", ev)
		}
		if s.Running() {
			t.Errorf("%T left the session running", ev)
		}
	}
}

func TestSessionForwardsEvents(t *testing.T) {
	rt := &fakeRuntime{events: []Event{
		SessionStateChanged{State: StateReady},
		"runtime-specific",
	}}
	s := NewSession(rt)
	app := &eventApp{}

	if _, err := s.PumpEvents(app); err != nil {
		t.Fatalf("PumpEvents: %s", err)
	}
	if len(app.events) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(app.events))
	}
	if app.events[1] != "runtime-specific" {
		t.Errorf("unknown events must pass through untouched, got %v", app.events[1])
	}
}

func TestSessionAppCanExit(t *testing.T) {
	rt := &fakeRuntime{events: []Event{"quit-me"}}
	s := NewSession(rt)
	app := &eventApp{exitOn: "quit-me"}

	exit, err := s.PumpEvents(app)
	if err != nil {
		t.Fatalf("PumpEvents: %s", err)
	}
	if !exit {
		t.Error("application exit request ignored")
	}
}

func TestAcquireClosesEmptyFrameWhenNotRendering(t *testing.T) {
	rt := &fakeRuntime{frameStates: []FrameState{
		{DisplayTime: 42, ShouldRender: false},
	}}
	s := NewSession(rt)

	result, err := s.Acquire(0)
	if err != nil {
		t.Fatalf("Acquire: %s", err)
	}
	if !result.Skip {
		t.Fatal("a declined frame must be skipped")
	}
	if rt.beginFrames != 1 || len(rt.endFrames) != 1 {
		t.Fatalf("frame bracket not closed: %d begins, %d ends", rt.beginFrames, len(rt.endFrames))
	}
	if rt.endFrames[0].displayTime != 42 || len(rt.endFrames[0].views) != 0 {
		t.Errorf("empty end must carry the display time and no views: %+v", rt.endFrames[0])
	}
	if rt.createCalls != 0 {
		t.Error("swapchain built for a frame that never rendered")
	}
}

func TestAcquireBuildsSwapchainOnce(t *testing.T) {
	rt := &fakeRuntime{frameStates: []FrameState{
		{DisplayTime: 1, ShouldRender: true},
	}}
	s := NewSession(rt)

	first, err := s.Acquire(0)
	if err != nil {
		t.Fatalf("first Acquire: %s", err)
	}
	if first.Resize == nil {
		t.Fatal("first rendered frame must report the swapchain images")
	}
	if len(first.Resize.Images) != 3 || first.Resize.Extent.Width != 1600 {
		t.Errorf("unexpected resize info: %+v", first.Resize)
	}

	second, err := s.Acquire(0)
	if err != nil {
		t.Fatalf("second Acquire: %s", err)
	}
	if second.Resize != nil {
		t.Error("swapchain reported more than once")
	}
	if rt.createCalls != 1 {
		t.Errorf("CreateSwapchain called %d times, want 1", rt.createCalls)
	}
	if rt.imageAcquires != 2 || rt.imageWaits != 2 {
		t.Errorf("image handshake incomplete: %d acquires, %d waits", rt.imageAcquires, rt.imageWaits)
	}
}

func TestPresentReleasesAndEndsFrame(t *testing.T) {
	rt := &fakeRuntime{frameStates: []FrameState{
		{DisplayTime: 77, ShouldRender: true},
	}}
	s := NewSession(rt)

	if _, err := s.Acquire(0); err != nil {
		t.Fatalf("Acquire: %s", err)
	}

	views := []loop.View{{}, {}}
	if err := s.Present(0, 0, loop.FrameReturn{Views: views}); err != nil {
		t.Fatalf("Present: %s", err)
	}

	if rt.imageReleases != 1 {
		t.Errorf("ReleaseImage called %d times, want 1", rt.imageReleases)
	}
	if len(rt.endFrames) != 1 {
		t.Fatalf("EndFrame called %d times, want 1", len(rt.endFrames))
	}
	if rt.endFrames[0].displayTime != 77 {
		t.Errorf("EndFrame got display time %d, want 77", rt.endFrames[0].displayTime)
	}
	if len(rt.endFrames[0].views) != 2 {
		t.Errorf("EndFrame got %d views, want 2", len(rt.endFrames[0].views))
	}
}

func TestSessionContract(t *testing.T) {
	s := NewSession(&fakeRuntime{})
	if !s.Stereo() {
		t.Error("compositor sessions render one layer per eye")
	}
	if s.PresentSync() {
		t.Error("compositor sessions must not use swapchain semaphores")
	}
}

func TestSessionRequestExitAndDestroy(t *testing.T) {
	rt := &fakeRuntime{}
	s := NewSession(rt)

	s.RequestExit()
	if rt.exitRequests != 1 {
		t.Errorf("RequestExit forwarded %d times, want 1", rt.exitRequests)
	}

	s.Destroy()
	s.Destroy()
	if !rt.destroyed {
		t.Error("runtime not destroyed")
	}
}
