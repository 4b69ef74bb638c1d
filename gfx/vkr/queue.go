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

// Queue is a device queue.
type Queue struct {
	device vk.Device
	family uint32
	queue  vk.Queue
}

// Handle returns the inner vk.Queue
func (q *Queue) Handle() vk.Queue { return q.queue }

// FamilyIndex implements swapchain.Queue
func (q *Queue) FamilyIndex() uint32 { return q.family }

// Present implements swapchain.Queue. The present done fence is signalled
// by an empty submission following the present, since there is no way
// to attach a fence to the present itself.
func (q *Queue) Present(info swapchain.PresentInfo) (swapchain.PresentStatus, error) {
	sc, ok := info.Swapchain.(*Swapchain)
	if !ok {
		return 0, errors.Errorf("vkr: %T is not a *vkr.Swapchain", info.Swapchain)
	}
	wait, ok := info.Wait.(*Semaphore)
	if !ok {
		return 0, errors.Errorf("vkr: %T is not a *vkr.Semaphore", info.Wait)
	}

	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.semaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.swapchain},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	status, presentErr := presentStatus(vk.QueuePresent(q.queue, &presentInfo))

	// Signal even when presenting failed, or the swapchain could never
	// be deleted.
	if fence, ok := info.Signal.(*Fence); ok {
		if err := q.Submit(nil, fence.fence); err != nil {
			return 0, err
		}
	}

	if presentErr != nil {
		return 0, errors.Wrap(presentErr, "vk.QueuePresent()")
	}
	return status, nil
}

// Submit submits work to the queue, signalling fence once it completed.
// With no work the fence signals once everything submitted before has.
func (q *Queue) Submit(submits []vk.SubmitInfo, fence vk.Fence) error {
	if err := vk.Error(vk.QueueSubmit(q.queue, uint32(len(submits)), submits, fence)); err != nil {
		return errors.Wrap(err, "vk.QueueSubmit()")
	}
	return nil
}

// WaitIdle blocks until the queue finished all work.
func (q *Queue) WaitIdle() error {
	return errors.Wrap(vk.Error(vk.QueueWaitIdle(q.queue)), "vk.QueueWaitIdle()")
}
