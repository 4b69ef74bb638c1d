// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// Destroyer is implemented by every native object a holder owns.
type Destroyer interface {
	// Destroy releases the native object. It is called at most once.
	Destroy() error
}

// Semaphore is a binary GPU-side semaphore.
type Semaphore interface {
	Destroyer
}

// ImageView is a view onto one swapchain image.
type ImageView interface {
	Destroyer
}

// Image is an opaque native swapchain image, owned by its swapchain.
type Image interface{}

// Fence is a host-waitable GPU to CPU synchronization primitive.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signalled or timeout elapses.
	// It reports false when the wait timed out.
	Wait(timeout time.Duration) (bool, error)

	// Signaled polls the fence without blocking.
	Signaled() (bool, error)

	// Reset puts the fence back into the unsignalled state.
	Reset() error
}

// Device creates the per-image and per-frame objects of a swapchain.
type Device interface {
	CreateImageView(image Image, format vk.Format) (ImageView, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
}

// SurfaceFormat pairs an image format with its color space.
type SurfaceFormat struct {
	Format     vk.Format
	ColorSpace vk.ColorSpace
}

// SurfaceCapabilities is what the surface reports about itself
// at the time of the query.
type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount of zero means there is no upper limit.
	MaxImageCount uint32

	CurrentExtent  vk.Extent2D
	MinImageExtent vk.Extent2D
	MaxImageExtent vk.Extent2D

	SupportedTransforms     vk.SurfaceTransformFlags
	CurrentTransform        vk.SurfaceTransformFlagBits
	SupportedCompositeAlpha vk.CompositeAlphaFlags
	SupportedUsageFlags     vk.ImageUsageFlags
}

// Surface answers the surface queries of the surface extension.
type Surface interface {
	Capabilities() (SurfaceCapabilities, error)
	Formats() ([]SurfaceFormat, error)
	PresentModes() ([]vk.PresentMode, error)
}

// CreateInfo carries the parameters of a new native swapchain.
type CreateInfo struct {
	MinImageCount      uint32
	Format             SurfaceFormat
	Extent             vk.Extent2D
	Usage              vk.ImageUsageFlags
	SharingMode        vk.SharingMode
	QueueFamilyIndices []uint32
	PreTransform       vk.SurfaceTransformFlagBits
	CompositeAlpha     vk.CompositeAlphaFlagBits
	PresentMode        vk.PresentMode
	Clipped            bool

	// OldSwapchain is nil unless Config.ChainOldSwapchain is set.
	OldSwapchain NativeSwapchain
}

// SwapchainFactory is the swapchain extension's create call.
type SwapchainFactory interface {
	CreateSwapchain(info CreateInfo) (NativeSwapchain, error)
}

// NativeSwapchain is one native swapchain object.
type NativeSwapchain interface {
	Destroyer

	// Images returns the swapchain images, indexed by image index.
	Images() ([]Image, error)

	// AcquireNextImage asks for the next presentable image, signalling
	// signal once the image can be written to. A zero timeout polls.
	// The returned error is reserved for failures outside of the
	// five acquire outcomes.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (AcquireResult, error)
}

// PresentInfo describes one present request.
type PresentInfo struct {
	Swapchain  NativeSwapchain
	ImageIndex uint32
	// Wait is waited on by the presentation engine.
	Wait Semaphore
	// Signal is signalled once the presentation engine is done with the image.
	Signal Fence
}

// Queue is a device queue able to present.
type Queue interface {
	FamilyIndex() uint32
	Present(info PresentInfo) (PresentStatus, error)
}
