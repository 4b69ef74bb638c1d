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
)

// frameSlot holds the synchronization objects of one frame in flight.
type frameSlot struct {
	imageReady       Semaphore
	renderDone       Semaphore
	renderDoneFence  Fence
	presentDoneFence Fence
}

// holder owns one native swapchain and everything scoped to its lifetime.
// Views are keyed by image index, slots by frame index; the two are
// unrelated.
type holder struct {
	id     uint64
	log    logrus.FieldLogger
	events *eventStream

	swapchain NativeSwapchain
	images    []Image
	views     map[uint32]ImageView
	slots     []frameSlot
	cursor    int

	format       SurfaceFormat
	presentMode  vk.PresentMode
	extent       vk.Extent2D
	fenceTimeout time.Duration
	presentQueue Queue

	// resources holds everything above in creation order.
	resources scope
	closed    bool
}

// acquire hands out the next image. A *AcquireError means nothing was
// acquired and the caller may try again; any other error is fatal.
func (h *holder) acquire() (*SwapchainImage, error) {
	frame := h.cursor
	slot := h.slots[frame]

	signaled, err := slot.renderDoneFence.Wait(h.fenceTimeout)
	if err != nil {
		return nil, h.failed(frame, ReasonError, errors.Wrapf(err, "wait render done fence of frame %d", frame))
	}
	if !signaled {
		return nil, h.failed(frame, ReasonFenceTimeout, &AcquireError{Reason: ReasonFenceTimeout})
	}

	res, err := h.swapchain.AcquireNextImage(0, slot.imageReady)
	if err != nil {
		return nil, h.failed(frame, ReasonError, errors.Wrap(err, "acquire next image"))
	}
	if reason, failed := failureReason(res.Status); failed {
		return nil, h.failed(frame, reason, &AcquireError{Reason: reason, Status: res.Status})
	}

	view, ok := h.views[res.ImageIndex]
	if !ok {
		return nil, h.failed(frame, ReasonError, errors.Errorf("acquired unknown image index %d", res.ImageIndex))
	}

	if err := slot.renderDoneFence.Reset(); err != nil {
		return nil, h.failed(frame, ReasonError, errors.Wrapf(err, "reset render done fence of frame %d", frame))
	}
	if err := slot.presentDoneFence.Reset(); err != nil {
		return nil, h.failed(frame, ReasonError, errors.Wrapf(err, "reset present done fence of frame %d", frame))
	}

	h.cursor = (h.cursor + 1) % len(h.slots)

	h.events.publish(ImageAcquired{HolderID: h.id, FrameIndex: frame, ImageIndex: res.ImageIndex})
	return &SwapchainImage{
		holder: h,
		frame:  frame,
		index:  res.ImageIndex,
		image:  h.images[res.ImageIndex],
		view:   view,
		slot:   slot,
	}, nil
}

func (h *holder) failed(frame int, reason Reason, err error) error {
	e := ImageAcquireFailed{HolderID: h.id, FrameIndex: frame, Reason: reason}
	if reason == ReasonError {
		e.Error = err.Error()
	}
	h.events.publish(e)
	return err
}

// readyForDeletion polls the present done fences. It never blocks.
func (h *holder) readyForDeletion() bool {
	for frame, slot := range h.slots {
		signaled, err := slot.presentDoneFence.Signaled()
		if err != nil {
			h.log.WithError(err).WithField("frame", frame).Warn("Could not query present done fence")
			return false
		}
		if !signaled {
			return false
		}
	}
	return true
}

func (h *holder) imageIndices() []uint32 {
	indices := make([]uint32, 0, len(h.views))
	for idx := range h.views {
		indices = append(indices, idx)
	}
	return indices
}

// close destroys everything the holder owns, in reverse creation order.
// Only the first call has an effect.
func (h *holder) close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	err := h.resources.release()
	h.events.publish(Deleted{HolderID: h.id})
	if err != nil {
		return errors.Wrapf(err, "close swapchain %d", h.id)
	}
	return nil
}
