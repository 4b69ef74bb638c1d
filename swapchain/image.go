// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainImage is one acquired image together with the frame slot it
// was acquired with. It is handed back through Present.
//
// Before calling Present the caller must have submitted GPU work that
// waits on ImageReady and signals RenderDone and RenderDoneFence.
type SwapchainImage struct {
	holder    *holder
	frame     int
	index     uint32
	image     Image
	view      ImageView
	slot      frameSlot
	presented bool
}

// ImageIndex is the index of the acquired swapchain image.
func (i *SwapchainImage) ImageIndex() uint32 { return i.index }

// FrameIndex is the frame slot the image was acquired with.
func (i *SwapchainImage) FrameIndex() int { return i.frame }

// Image is the native swapchain image.
func (i *SwapchainImage) Image() Image { return i.image }

// View is the view of the acquired image.
func (i *SwapchainImage) View() ImageView { return i.view }

// ImageReady is signalled once the image may be written to.
func (i *SwapchainImage) ImageReady() Semaphore { return i.slot.imageReady }

// RenderDone must be signalled by the rendering of this frame.
func (i *SwapchainImage) RenderDone() Semaphore { return i.slot.renderDone }

// RenderDoneFence must be signalled by the rendering of this frame.
func (i *SwapchainImage) RenderDoneFence() Fence { return i.slot.renderDoneFence }

// Extent of the image.
func (i *SwapchainImage) Extent() vk.Extent2D { return i.holder.extent }

// Format of the image.
func (i *SwapchainImage) Format() SurfaceFormat { return i.holder.format }

// Present queues the image for presentation. The presentation waits
// on RenderDone and signals the slot's present done fence.
// A suboptimal present is not an error, the next Acquire recreates.
func (i *SwapchainImage) Present() error {
	if i.presented {
		return ErrImageConsumed
	}
	if i.holder.closed {
		return ErrClosed
	}
	i.presented = true

	status, err := i.holder.presentQueue.Present(PresentInfo{
		Swapchain:  i.holder.swapchain,
		ImageIndex: i.index,
		Wait:       i.slot.renderDone,
		Signal:     i.slot.presentDoneFence,
	})
	if err != nil {
		return errors.Wrapf(err, "present image %d of swapchain %d", i.index, i.holder.id)
	}

	switch status {
	case PresentSuccess:
	case PresentSuboptimal:
		i.holder.log.WithField("image", i.index).Debug("Presented to a suboptimal swapchain")
	default:
		panic(errors.Errorf("swapchain: unhandled present status %d", int(status)))
	}
	return nil
}
