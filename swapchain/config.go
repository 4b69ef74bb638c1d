// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slices"
)

// Defaults applied by New to zero Config fields.
const (
	DefaultFenceTimeout = time.Second
	DefaultEventBuffer  = 64
	DefaultImageUsage   = vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
)

// Config describes the surface a Manager keeps a swapchain for.
// It is copied by New and never changes afterwards.
type Config struct {
	Device        Device
	Surface       Surface
	Swapchains    SwapchainFactory
	GraphicsQueue Queue
	PresentQueue  Queue

	// PreferredFormats and PreferredPresentModes are in order of preference.
	PreferredFormats      []SurfaceFormat
	PreferredPresentModes []vk.PresentMode

	// ImageUsage must be supported by the surface.
	ImageUsage     vk.ImageUsageFlags
	CompositeAlpha vk.CompositeAlphaFlagBits

	// FenceTimeout bounds the wait for a frame slot's previous frame.
	FenceTimeout time.Duration

	// MaxAcquireAttempts bounds the retries of Acquire.
	// Zero retries until an image is acquired or the context is done.
	MaxAcquireAttempts int

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int

	// ChainOldSwapchain passes the current swapchain as the old one when
	// recreating.
	ChainOldSwapchain bool

	Logger logrus.FieldLogger
}

func (c Config) validate() (Config, error) {
	switch {
	case c.Device == nil:
		return c, errors.Wrap(ErrMissingCollaborator, "no device")
	case c.Surface == nil:
		return c, errors.Wrap(ErrMissingCollaborator, "no surface")
	case c.Swapchains == nil:
		return c, errors.Wrap(ErrMissingCollaborator, "no swapchain factory")
	case c.GraphicsQueue == nil:
		return c, errors.Wrap(ErrMissingCollaborator, "no graphics queue")
	case c.PresentQueue == nil:
		return c, errors.Wrap(ErrMissingCollaborator, "no present queue")
	}
	if c.MaxAcquireAttempts < 0 {
		return c, errors.Errorf("swapchain: negative MaxAcquireAttempts %d", c.MaxAcquireAttempts)
	}

	c.PreferredFormats = slices.Clone(c.PreferredFormats)
	c.PreferredPresentModes = slices.Clone(c.PreferredPresentModes)
	if c.ImageUsage == 0 {
		c.ImageUsage = DefaultImageUsage
	}
	if c.CompositeAlpha == 0 {
		c.CompositeAlpha = vk.CompositeAlphaOpaqueBit
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = DefaultFenceTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c, nil
}
