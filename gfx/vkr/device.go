// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"time"

	"github.com/devblok/vkswap/device"
	"github.com/devblok/vkswap/swapchain"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainExtension is the device extension every Device enables.
const SwapchainExtension = vk.KhrSwapchainExtensionName

// Device is a logical device with a graphics and a present queue.
type Device struct {
	pdev     vk.PhysicalDevice
	device   vk.Device
	graphics *Queue
	present  *Queue
}

// NewDevice creates a logical device on pdev. The swapchain extension
// is always enabled.
func NewDevice(pdev vk.PhysicalDevice, families device.QueueFamilies, extensions []string) (*Device, error) {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: families.Graphics,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}
	if families.Separate() {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: families.Present,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		})
	}

	extensions = append([]string{SwapchainExtension}, extensions...)
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var vkDevice vk.Device
	if err := vk.Error(vk.CreateDevice(pdev, &dci, nil, &vkDevice)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateDevice()")
	}

	d := &Device{pdev: pdev, device: vkDevice}
	d.graphics = d.queue(families.Graphics)
	d.present = d.graphics
	if families.Separate() {
		d.present = d.queue(families.Present)
	}
	return d, nil
}

func (d *Device) queue(family uint32) *Queue {
	var q vk.Queue
	vk.GetDeviceQueue(d.device, family, 0, &q)
	return &Queue{device: d.device, family: family, queue: q}
}

// Handle returns the inner vk.Device
func (d *Device) Handle() vk.Device {
	return d.device
}

// GraphicsQueue is the queue rendering is submitted to.
func (d *Device) GraphicsQueue() *Queue {
	return d.graphics
}

// PresentQueue is the queue images are presented on. It is the graphics
// queue when one family does both.
func (d *Device) PresentQueue() *Queue {
	return d.present
}

// WaitIdle blocks until the device finished all work.
func (d *Device) WaitIdle() error {
	return errors.Wrap(vk.Error(vk.DeviceWaitIdle(d.device)), "vk.DeviceWaitIdle()")
}

// Destroy destroys the logical device
func (d *Device) Destroy() {
	vk.DestroyDevice(d.device, nil)
}

// CreateImageView implements swapchain.Device
func (d *Device) CreateImageView(img swapchain.Image, format vk.Format) (swapchain.ImageView, error) {
	image, ok := img.(vk.Image)
	if !ok {
		return nil, errors.Errorf("vkr: %T is not a vk.Image", img)
	}

	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorRange,
	}

	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(d.device, &ivci, nil, &view)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateImageView()")
	}
	return &ImageView{device: d.device, view: view}, nil
}

// CreateSemaphore implements swapchain.Device
func (d *Device) CreateSemaphore() (swapchain.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := vk.Error(vk.CreateSemaphore(d.device, &sci, nil, &semaphore)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateSemaphore()")
	}
	return &Semaphore{device: d.device, semaphore: semaphore}, nil
}

// CreateFence implements swapchain.Device
func (d *Device) CreateFence(signaled bool) (swapchain.Fence, error) {
	fence, err := d.newFence(signaled)
	if err != nil {
		return nil, err
	}
	return &Fence{device: d.device, fence: fence}, nil
}

func (d *Device) newFence(signaled bool) (vk.Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := vk.Error(vk.CreateFence(d.device, &fci, nil, &fence)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateFence()")
	}
	return fence, nil
}

var colorRange = vk.ImageSubresourceRange{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

// ImageView is a vk.ImageView owned by a swapchain.
type ImageView struct {
	device vk.Device
	view   vk.ImageView
}

// Handle returns the inner vk.ImageView
func (v *ImageView) Handle() vk.ImageView { return v.view }

// Destroy implements swapchain.Destroyer
func (v *ImageView) Destroy() error {
	vk.DestroyImageView(v.device, v.view, nil)
	return nil
}

// Semaphore is a binary vk.Semaphore.
type Semaphore struct {
	device    vk.Device
	semaphore vk.Semaphore
}

// Handle returns the inner vk.Semaphore
func (s *Semaphore) Handle() vk.Semaphore { return s.semaphore }

// Destroy implements swapchain.Destroyer
func (s *Semaphore) Destroy() error {
	vk.DestroySemaphore(s.device, s.semaphore, nil)
	return nil
}

// Fence implements swapchain.Fence with a vk.Fence.
type Fence struct {
	device vk.Device
	fence  vk.Fence
}

// Handle returns the inner vk.Fence
func (f *Fence) Handle() vk.Fence { return f.fence }

// Wait implements swapchain.Fence
func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	res := vk.WaitForFences(f.device, 1, []vk.Fence{f.fence}, vk.True, uint64(timeout.Nanoseconds()))
	switch res {
	case vk.Success:
		return true, nil
	case vk.Timeout:
		return false, nil
	}
	return false, errors.Wrap(vk.Error(res), "vk.WaitForFences()")
}

// Signaled implements swapchain.Fence
func (f *Fence) Signaled() (bool, error) {
	res := vk.GetFenceStatus(f.device, f.fence)
	switch res {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	}
	return false, errors.Wrap(vk.Error(res), "vk.GetFenceStatus()")
}

// Reset implements swapchain.Fence
func (f *Fence) Reset() error {
	return errors.Wrap(vk.Error(vk.ResetFences(f.device, 1, []vk.Fence{f.fence})), "vk.ResetFences()")
}

// Destroy implements swapchain.Destroyer
func (f *Fence) Destroy() error {
	vk.DestroyFence(f.device, f.fence, nil)
	return nil
}
