// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package loop

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fathom3d/fathom/core"
)

// idleInterval is how long the dispatcher sleeps between event polls
// while the session is not running.
const idleInterval = 100 * time.Millisecond

// Dispatcher drives the frame loop for one session. It is
// single-threaded; every method must be called from the thread that
// created it.
type Dispatcher struct {
	core    *core.Core
	session Session
	app     App

	sync       *core.Synchronization
	frames     *core.FramebufferManager
	renderPass core.RenderPass
	commands   []core.CommandBuffer

	interrupt chan struct{}
	slot      int
}

// NewDispatcher initializes the application against the session and
// builds the per-slot frame state. Framebuffers are not built yet;
// they appear with the first acquire's resize.
func NewDispatcher(c *core.Core, session Session, app App) (*Dispatcher, error) {
	renderPass, err := app.Init(c, session)
	if err != nil {
		return nil, err
	}

	sync, err := core.NewSynchronization(c, c.Config.FramesInFlight, session.PresentSync())
	if err != nil {
		return nil, err
	}

	frames := core.NewFramebufferManager(c, session.Stereo(), c.Config.MSAASamples)

	commands, err := c.Device.AllocateCommandBuffers(c.Config.FramesInFlight)
	if err != nil {
		sync.Destroy()
		return nil, err
	}

	return &Dispatcher{
		core:       c,
		session:    session,
		app:        app,
		sync:       sync,
		frames:     frames,
		renderPass: renderPass,
		commands:   commands,
		interrupt:  make(chan struct{}, 1),
	}, nil
}

// Interrupt asks the loop to exit from outside the loop thread. It is
// safe to call more than once.
func (d *Dispatcher) Interrupt() {
	select {
	case d.interrupt <- struct{}{}:
	default:
	}
}

// Run ticks until the session exits. On return the device is idle and
// per-frame resources are still alive; call Destroy to release them.
func (d *Dispatcher) Run() error {
	for {
		select {
		case <-d.interrupt:
			log.Debug("frame loop interrupted, requesting exit")
			d.session.RequestExit()
		default:
		}

		exit, err := d.session.PumpEvents(d.app)
		if err != nil {
			return err
		}
		if exit {
			break
		}

		if !d.session.Running() {
			time.Sleep(idleInterval)
			continue
		}

		if err := d.tick(); err != nil {
			return err
		}
	}

	return d.core.Device.WaitIdle()
}

func (d *Dispatcher) tick() error {
	imageAvailable, renderFinished, _ := d.sync.SwapchainSemaphores(d.slot)

	acquired, err := d.session.Acquire(imageAvailable)
	if err != nil {
		return err
	}
	if acquired.Skip {
		return nil
	}

	if acquired.Resize != nil {
		if err := d.frames.Resize(acquired.Resize.Images, acquired.Resize.Extent, d.renderPass); err != nil {
			return err
		}
		if err := d.app.Resize(acquired.Resize.Images, acquired.Resize.Extent); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"images": len(acquired.Resize.Images),
			"width":  acquired.Resize.Extent.Width,
			"height": acquired.Resize.Extent.Height,
		}).Debug("framebuffers rebuilt")
	}

	fence, err := d.sync.Sync(acquired.ImageIndex, d.slot)
	if err != nil {
		return err
	}

	cmd := d.commands[d.slot]
	extent := d.frames.Extent()

	if err := d.core.Device.BeginRender(cmd, d.frames.Frame(acquired.ImageIndex), d.renderPass, extent); err != nil {
		return err
	}

	ret, err := d.app.Frame(Frame{
		Command:    cmd,
		ImageIndex: acquired.ImageIndex,
		Slot:       d.slot,
		Extent:     extent,
	})
	if err != nil {
		return err
	}

	if err := d.core.Device.EndRender(cmd); err != nil {
		return err
	}

	if err := d.core.Device.Submit(core.SubmitInfo{
		Commands:      cmd,
		Wait:          imageAvailable,
		Signal:        renderFinished,
		UseSemaphores: d.session.PresentSync(),
		Fence:         fence,
	}); err != nil {
		return err
	}

	if err := d.session.Present(acquired.ImageIndex, renderFinished, ret); err != nil {
		return err
	}

	d.slot = (d.slot + 1) % d.sync.FramesInFlight()
	return nil
}

// Destroy releases the dispatcher's frame state and then the session.
// Safe to call after a Run that returned an error.
func (d *Dispatcher) Destroy() {
	d.frames.Destroy()
	d.sync.Destroy()
	d.session.Destroy()
}
