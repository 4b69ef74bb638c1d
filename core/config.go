// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
)

// Environment keys read by LoadConfiguration.
const (
	EnvScreenWidth    = "KORU_SCREEN_WIDTH"
	EnvScreenHeight   = "KORU_SCREEN_HEIGHT"
	EnvPresentMode    = "KORU_PRESENT_MODE"
	EnvFenceTimeout   = "KORU_FENCE_TIMEOUT"
	EnvEventPollDelay = "KORU_EVENT_POLL_DELAY"
	EnvLogLevel       = "KORU_LOG_LEVEL"
	EnvDebugMode      = "KORU_VKDBG"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration
	LogLevel logrus.Level
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// EventPollDelay is the window event polling interval
	EventPollDelay time.Duration
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	ScreenWidth  uint32
	ScreenHeight uint32

	// PresentModes are in order of preference
	PresentModes []vk.PresentMode
	FenceTimeout time.Duration

	// DebugMode loads the validation layers
	DebugMode bool
}

// DefaultConfiguration is what LoadConfiguration starts from.
var DefaultConfiguration = Configuration{
	Time: TimeConfiguration{
		FramesPerSecond: 60,
		EventPollDelay:  50 * time.Millisecond,
	},
	Renderer: RendererConfiguration{
		ScreenWidth:  800,
		ScreenHeight: 600,
		PresentModes: []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeFifo},
		FenceTimeout: time.Second,
	},
	LogLevel: logrus.InfoLevel,
}

var presentModes = map[string]vk.PresentMode{
	"immediate":    vk.PresentModeImmediate,
	"mailbox":      vk.PresentModeMailbox,
	"fifo":         vk.PresentModeFifo,
	"fifo_relaxed": vk.PresentModeFifoRelaxed,
}

// LoadConfiguration reads the environment, and a .env file if there is
// one, over DefaultConfiguration.
func LoadConfiguration() (Configuration, error) {
	cfg := DefaultConfiguration
	cfg.Renderer.PresentModes = append([]vk.PresentMode(nil), cfg.Renderer.PresentModes...)

	var err error
	if cfg.Renderer.ScreenWidth, err = envUint32(EnvScreenWidth, cfg.Renderer.ScreenWidth); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenHeight, err = envUint32(EnvScreenHeight, cfg.Renderer.ScreenHeight); err != nil {
		return cfg, err
	}
	if cfg.Renderer.FenceTimeout, err = envDuration(EnvFenceTimeout, cfg.Renderer.FenceTimeout); err != nil {
		return cfg, err
	}
	if cfg.Time.EventPollDelay, err = envDuration(EnvEventPollDelay, cfg.Time.EventPollDelay); err != nil {
		return cfg, err
	}

	if name := envy.Get(EnvPresentMode, ""); name != "" {
		mode, ok := presentModes[strings.ToLower(name)]
		if !ok {
			return cfg, errors.Errorf("%s: unknown present mode %q", EnvPresentMode, name)
		}
		// The requested mode goes first, FIFO is always supported.
		cfg.Renderer.PresentModes = []vk.PresentMode{mode, vk.PresentModeFifo}
	}

	if level := envy.Get(EnvLogLevel, ""); level != "" {
		if cfg.LogLevel, err = logrus.ParseLevel(level); err != nil {
			return cfg, errors.Wrap(err, EnvLogLevel)
		}
	}

	if debug := envy.Get(EnvDebugMode, ""); debug != "" {
		if cfg.Renderer.DebugMode, err = strconv.ParseBool(debug); err != nil {
			return cfg, errors.Wrap(err, EnvDebugMode)
		}
	}
	return cfg, nil
}

func envUint32(key string, def uint32) (uint32, error) {
	value := envy.Get(key, "")
	if value == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return def, errors.Wrap(err, key)
	}
	return uint32(n), nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	value := envy.Get(key, "")
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def, errors.Wrap(err, key)
	}
	return d, nil
}
