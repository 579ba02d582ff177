// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gobuffalo/envy"
)

// Environment keys read by ConfigurationFromEnv. A .env file in the
// working directory is honoured as well.
const (
	EnvAppName        = "FATHOM_APP_NAME"
	EnvFramesInFlight = "FATHOM_FRAMES_IN_FLIGHT"
	EnvMSAASamples    = "FATHOM_MSAA_SAMPLES"
	EnvFenceTimeout   = "FATHOM_FENCE_TIMEOUT"
	EnvAcquireRetries = "FATHOM_ACQUIRE_RETRIES"
	EnvScreenWidth    = "FATHOM_SCREEN_WIDTH"
	EnvScreenHeight   = "FATHOM_SCREEN_HEIGHT"
	EnvDebug          = "FATHOM_DEBUG"
)

// ConfigurationFromEnv builds a Configuration from the process
// environment. Unset keys fall back to the package defaults.
func ConfigurationFromEnv() (Configuration, error) {
	envy.Load()

	cfg := Configuration{
		AppName: envy.Get(EnvAppName, ""),
	}

	var err error
	if cfg.FramesInFlight, err = intFromEnv(EnvFramesInFlight, DefaultFramesInFlight); err != nil {
		return Configuration{}, err
	}
	if cfg.MSAASamples, err = intFromEnv(EnvMSAASamples, 1); err != nil {
		return Configuration{}, err
	}
	if cfg.AcquireRetries, err = intFromEnv(EnvAcquireRetries, DefaultAcquireRetries); err != nil {
		return Configuration{}, err
	}

	width, err := intFromEnv(EnvScreenWidth, DefaultScreenWidth)
	if err != nil {
		return Configuration{}, err
	}
	height, err := intFromEnv(EnvScreenHeight, DefaultScreenHeight)
	if err != nil {
		return Configuration{}, err
	}
	cfg.ScreenWidth = uint32(width)
	cfg.ScreenHeight = uint32(height)

	if raw := envy.Get(EnvFenceTimeout, ""); raw != "" {
		cfg.FenceTimeout, err = time.ParseDuration(raw)
		if err != nil {
			return Configuration{}, fmt.Errorf("%s: %s", EnvFenceTimeout, err.Error())
		}
	}

	if raw := envy.Get(EnvDebug, ""); raw != "" {
		cfg.DebugMode, err = strconv.ParseBool(raw)
		if err != nil {
			return Configuration{}, fmt.Errorf("%s: %s", EnvDebug, err.Error())
		}
	}

	return cfg.withDefaults(), nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %s", key, err.Error())
	}
	return val, nil
}
