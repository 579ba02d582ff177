// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import "time"

// Defaults applied by Configuration.withDefaults.
const (
	DefaultFramesInFlight = 2
	DefaultFenceTimeout   = 10 * time.Second
	DefaultAcquireRetries = 1
	DefaultScreenWidth    = 1280
	DefaultScreenHeight   = 720
)

// Configuration is the engine-wide configuration. The zero value is
// usable; missing fields are filled in by NewCore.
type Configuration struct {
	// AppName is reported to the platform (window title, driver app info).
	AppName string

	// FramesInFlight is the number of frames the CPU may record ahead of
	// the GPU. Small and fixed for the process lifetime.
	FramesInFlight int

	// MSAASamples selects multisampling for the color attachment.
	// 1 disables the intermediate color attachment entirely.
	MSAASamples int

	// FenceTimeout bounds every fence wait. Exceeding it is treated as
	// device loss.
	FenceTimeout time.Duration

	// AcquireRetries bounds how many swapchain rebuilds a single
	// acquire may attempt when the surface is out of date.
	AcquireRetries int

	// ScreenWidth and ScreenHeight size the initial desktop window.
	// Compositor sessions take their extent from the runtime instead.
	ScreenWidth  uint32
	ScreenHeight uint32

	// DebugMode enables API validation where the platform supports it.
	DebugMode bool
}

func (c Configuration) withDefaults() Configuration {
	if c.AppName == "" {
		c.AppName = "fathom"
	}
	if c.FramesInFlight <= 0 {
		c.FramesInFlight = DefaultFramesInFlight
	}
	if c.MSAASamples <= 0 {
		c.MSAASamples = 1
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = DefaultFenceTimeout
	}
	if c.AcquireRetries <= 0 {
		c.AcquireRetries = DefaultAcquireRetries
	}
	if c.ScreenWidth == 0 {
		c.ScreenWidth = DefaultScreenWidth
	}
	if c.ScreenHeight == 0 {
		c.ScreenHeight = DefaultScreenHeight
	}
	return c
}
