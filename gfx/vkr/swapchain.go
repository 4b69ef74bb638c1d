// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	"github.com/devblok/vkswap/swapchain"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainFactory creates swapchains for one surface.
type SwapchainFactory struct {
	device  *Device
	surface *Surface
}

// NewSwapchainFactory implements swapchain.SwapchainFactory for surface.
func NewSwapchainFactory(device *Device, surface *Surface) *SwapchainFactory {
	return &SwapchainFactory{device: device, surface: surface}
}

// CreateSwapchain implements swapchain.SwapchainFactory
func (f *SwapchainFactory) CreateSwapchain(info swapchain.CreateInfo) (swapchain.NativeSwapchain, error) {
	var oldSwapchain vk.Swapchain
	if old, ok := info.OldSwapchain.(*Swapchain); ok {
		oldSwapchain = old.swapchain
	}

	clipped := vk.Bool32(vk.False)
	if info.Clipped {
		clipped = vk.True
	}

	scci := vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               f.surface.Handle(),
		MinImageCount:         info.MinImageCount,
		ImageFormat:           info.Format.Format,
		ImageColorSpace:       info.Format.ColorSpace,
		ImageExtent:           info.Extent,
		ImageArrayLayers:      1,
		ImageUsage:            info.Usage,
		ImageSharingMode:      info.SharingMode,
		QueueFamilyIndexCount: uint32(len(info.QueueFamilyIndices)),
		PQueueFamilyIndices:   info.QueueFamilyIndices,
		PreTransform:          info.PreTransform,
		CompositeAlpha:        info.CompositeAlpha,
		PresentMode:           info.PresentMode,
		Clipped:               clipped,
		OldSwapchain:          oldSwapchain,
	}

	var sc vk.Swapchain
	if err := vk.Error(vk.CreateSwapchain(f.device.Handle(), &scci, nil, &sc)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateSwapchain()")
	}
	return &Swapchain{device: f.device.Handle(), swapchain: sc}, nil
}

// Swapchain is a native vk.Swapchain.
type Swapchain struct {
	device    vk.Device
	swapchain vk.Swapchain
}

// Handle returns the inner vk.Swapchain
func (s *Swapchain) Handle() vk.Swapchain { return s.swapchain }

// Images implements swapchain.NativeSwapchain
func (s *Swapchain) Images() ([]swapchain.Image, error) {
	var numImages uint32
	if err := vk.Error(vk.GetSwapchainImages(s.device, s.swapchain, &numImages, nil)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages(num)")
	}
	vkImages := make([]vk.Image, numImages)
	if err := vk.Error(vk.GetSwapchainImages(s.device, s.swapchain, &numImages, vkImages)); err != nil {
		return nil, errors.Wrap(err, "vk.GetSwapchainImages(images)")
	}

	images := make([]swapchain.Image, numImages)
	for idx := range images {
		images[idx] = vkImages[idx]
	}
	return images, nil
}

// AcquireNextImage implements swapchain.NativeSwapchain
func (s *Swapchain) AcquireNextImage(timeout time.Duration, signal swapchain.Semaphore) (swapchain.AcquireResult, error) {
	sem, ok := signal.(*Semaphore)
	if !ok {
		return swapchain.AcquireResult{}, errors.Errorf("vkr: %T is not a *vkr.Semaphore", signal)
	}

	var idx uint32
	res := vk.AcquireNextImage(s.device, s.swapchain, uint64(timeout.Nanoseconds()), sem.semaphore, nil, &idx)
	status, err := acquireStatus(res)
	if err != nil {
		return swapchain.AcquireResult{}, errors.Wrap(err, "vk.AcquireNextImage()")
	}
	return swapchain.AcquireResult{Status: status, ImageIndex: idx}, nil
}

// Destroy implements swapchain.Destroyer
func (s *Swapchain) Destroy() error {
	vk.DestroySwapchain(s.device, s.swapchain, nil)
	return nil
}

// acquireStatus maps the results vkAcquireNextImageKHR may return onto
// the acquire outcomes. Anything else is an error.
func acquireStatus(res vk.Result) (swapchain.AcquireStatus, error) {
	switch res {
	case vk.Success:
		return swapchain.AcquireSuccess, nil
	case vk.NotReady:
		return swapchain.AcquireNotReady, nil
	case vk.Timeout:
		return swapchain.AcquireTimeout, nil
	case vk.Suboptimal:
		return swapchain.AcquireSuboptimal, nil
	case vk.ErrorOutOfDate:
		return swapchain.AcquireOutOfDate, nil
	}
	return 0, vk.Error(res)
}

// presentStatus maps the result of vkQueuePresentKHR.
func presentStatus(res vk.Result) (swapchain.PresentStatus, error) {
	switch res {
	case vk.Success:
		return swapchain.PresentSuccess, nil
	case vk.Suboptimal:
		return swapchain.PresentSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, swapchain.ErrOutOfDate
	}
	return 0, vk.Error(res)
}
