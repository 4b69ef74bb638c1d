// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"github.com/devblok/vkswap/swapchain"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Surface is a window surface as seen from one physical device.
type Surface struct {
	instance vk.Instance
	pdev     vk.PhysicalDevice
	surface  vk.Surface
}

// NewSurface wraps a surface created by the windowing library.
func NewSurface(instance *Instance, pdev vk.PhysicalDevice, handle uintptr) *Surface {
	return &Surface{
		instance: instance.Handle(),
		pdev:     pdev,
		surface:  vk.SurfaceFromPointer(handle),
	}
}

// Handle returns the inner vk.Surface
func (s *Surface) Handle() vk.Surface {
	return s.surface
}

// Capabilities implements swapchain.Surface
func (s *Surface) Capabilities() (swapchain.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(s.pdev, s.surface, &caps)); err != nil {
		return swapchain.SurfaceCapabilities{}, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceCapabilities()")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	return swapchain.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           caps.CurrentExtent,
		MinImageExtent:          caps.MinImageExtent,
		MaxImageExtent:          caps.MaxImageExtent,
		SupportedTransforms:     caps.SupportedTransforms,
		CurrentTransform:        caps.CurrentTransform,
		SupportedCompositeAlpha: caps.SupportedCompositeAlpha,
		SupportedUsageFlags:     caps.SupportedUsageFlags,
	}, nil
}

// Formats implements swapchain.Surface
func (s *Surface) Formats() ([]swapchain.SurfaceFormat, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(s.pdev, s.surface, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}
	surfaceFormats := make([]vk.SurfaceFormat, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(s.pdev, s.surface, &count, surfaceFormats)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfaceFormats()")
	}

	formats := make([]swapchain.SurfaceFormat, 0, count)
	for _, f := range surfaceFormats[:count] {
		f.Deref()
		formats = append(formats, swapchain.SurfaceFormat{Format: f.Format, ColorSpace: f.ColorSpace})
	}
	return formats, nil
}

// PresentModes implements swapchain.Surface
func (s *Surface) PresentModes() ([]vk.PresentMode, error) {
	var count uint32
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(s.pdev, s.surface, &count, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}
	modes := make([]vk.PresentMode, count)
	if err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(s.pdev, s.surface, &count, modes)); err != nil {
		return nil, errors.Wrap(err, "vk.GetPhysicalDeviceSurfacePresentModes()")
	}
	return modes[:count], nil
}

// Destroy destroys the surface
func (s *Surface) Destroy() {
	vk.DestroySurface(s.instance, s.surface, nil)
}
