// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command spin opens a window and runs the frame loop with a slowly
// rotating camera. It renders nothing beyond the clear color; its job
// is to exercise acquire, synchronization, resize and present against
// a real driver.
package main

import (
	"math"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/fathom3d/fathom/core"
	"github.com/fathom3d/fathom/desktop"
	"github.com/fathom3d/fathom/kit"
	"github.com/fathom3d/fathom/loop"
)

func init() {
	runtime.LockOSThread()
}

type spinApp struct {
	core *core.Core
	ubo  *kit.FrameUBO
	anim float32
}

func (a *spinApp) Init(c *core.Core, _ loop.Session) (core.RenderPass, error) {
	a.core = c

	ubo, err := kit.NewFrameUBO(c, c.Config.FramesInFlight)
	if err != nil {
		return 0, err
	}
	a.ubo = ubo

	return c.Device.CreateRenderPass(c.Config.MSAASamples)
}

func (a *spinApp) Frame(f loop.Frame) (loop.FrameReturn, error) {
	a.anim += 0.01

	aspect := float32(f.Extent.Width) / float32(f.Extent.Height)
	sin, cos := math.Sincos(float64(a.anim))
	eye := mgl32.Vec3{4 * float32(sin), 2, 4 * float32(cos)}
	camera := mgl32.Perspective(mgl32.DegToRad(60), aspect, 0.1, 100).
		Mul4(mgl32.LookAtV(eye, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}))

	err := a.ubo.Write(f.Slot, kit.FrameData{
		Cameras: [2]mgl32.Mat4{camera, camera},
		Anim:    a.anim,
	})
	return loop.FrameReturn{}, err
}

func (a *spinApp) Resize(images []core.Image, extent core.Extent2D) error {
	log.WithFields(log.Fields{
		"width":  extent.Width,
		"height": extent.Height,
	}).Info("surface resized")
	return nil
}

func (a *spinApp) Event(ev loop.Event) (bool, error) {
	if key, ok := ev.(*sdl.KeyboardEvent); ok {
		if key.Keysym.Sym == sdl.K_ESCAPE {
			return true, nil
		}
	}
	return false, nil
}

func main() {
	cfg, err := core.ConfigurationFromEnv()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	if cfg.DebugMode {
		log.SetLevel(log.DebugLevel)
	}

	session, err := desktop.NewSession(cfg)
	if err != nil {
		log.WithError(err).Fatal("desktop session")
	}

	c := core.NewCore(session.Device(), cfg)
	app := &spinApp{}

	dispatcher, err := loop.NewDispatcher(c, session, app)
	if err != nil {
		session.Destroy()
		log.WithError(err).Fatal("dispatcher")
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigC
		dispatcher.Interrupt()
	}()

	if err := dispatcher.Run(); err != nil {
		log.WithError(err).Error("frame loop")
	}

	if app.ubo != nil {
		app.ubo.Destroy()
	}
	dispatcher.Destroy()
	log.Info("exited")
}
