// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"math"
	"unsafe"

	"github.com/devblok/vkswap/swapchain"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Clearer renders a frame by clearing the acquired image to a color.
// Command buffers are kept in a ring of their own, so they are not tied
// to the frame slots of any one swapchain.
type Clearer struct {
	device *Device
	queue  *Queue
	pool   vk.CommandPool

	buffers []vk.CommandBuffer
	fences  []vk.Fence
	next    int
}

// NewClearer allocates depth command buffers on the graphics queue.
// Images to clear need the transfer destination usage.
func NewClearer(device *Device, depth int) (*Clearer, error) {
	c := &Clearer{device: device, queue: device.GraphicsQueue()}

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: c.queue.FamilyIndex(),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := vk.Error(vk.CreateCommandPool(device.Handle(), &cpci, nil, &c.pool)); err != nil {
		return nil, errors.Wrap(err, "vk.CreateCommandPool()")
	}

	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(depth),
	}
	c.buffers = make([]vk.CommandBuffer, depth)
	if err := vk.Error(vk.AllocateCommandBuffers(device.Handle(), &cbai, c.buffers)); err != nil {
		c.Destroy()
		return nil, errors.Wrap(err, "vk.AllocateCommandBuffers()")
	}

	for idx := 0; idx < depth; idx++ {
		fence, err := device.newFence(true)
		if err != nil {
			c.Destroy()
			return nil, err
		}
		c.fences = append(c.fences, fence)
	}
	return c, nil
}

// Clear records and submits the frame of img. The submission waits on
// the image ready semaphore and signals both render done objects.
func (c *Clearer) Clear(img *swapchain.SwapchainImage, color [4]float32) error {
	image, ok := img.Image().(vk.Image)
	if !ok {
		return errors.Errorf("vkr: %T is not a vk.Image", img.Image())
	}
	imageReady, ok := img.ImageReady().(*Semaphore)
	if !ok {
		return errors.New("vkr: image ready is not a *vkr.Semaphore")
	}
	renderDone, ok := img.RenderDone().(*Semaphore)
	if !ok {
		return errors.New("vkr: render done is not a *vkr.Semaphore")
	}
	renderDoneFence, ok := img.RenderDoneFence().(*Fence)
	if !ok {
		return errors.New("vkr: render done fence is not a *vkr.Fence")
	}

	slot := c.next
	c.next = (c.next + 1) % len(c.buffers)
	cb, fence := c.buffers[slot], c.fences[slot]

	dev := c.device.Handle()
	if err := vk.Error(vk.WaitForFences(dev, 1, []vk.Fence{fence}, vk.True, math.MaxUint64)); err != nil {
		return errors.Wrap(err, "vk.WaitForFences()")
	}
	if err := vk.Error(vk.ResetFences(dev, 1, []vk.Fence{fence})); err != nil {
		return errors.Wrap(err, "vk.ResetFences()")
	}
	if err := vk.Error(vk.ResetCommandBuffer(cb, 0)); err != nil {
		return errors.Wrap(err, "vk.ResetCommandBuffer()")
	}

	if err := record(cb, image, color); err != nil {
		return err
	}

	submit := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{imageReady.semaphore},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{renderDone.semaphore},
	}}
	if err := c.queue.Submit(submit, fence); err != nil {
		return err
	}
	return c.queue.Submit(nil, renderDoneFence.fence)
}

func record(cb vk.CommandBuffer, image vk.Image, color [4]float32) error {
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(cb, &cbbi)); err != nil {
		return errors.Wrap(err, "vk.BeginCommandBuffer()")
	}

	transition(cb, image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)

	var value vk.ClearColorValue
	copy((*[4]float32)(unsafe.Pointer(&value))[:], color[:])
	vk.CmdClearColorImage(cb, image, vk.ImageLayoutTransferDstOptimal, &value, 1, []vk.ImageSubresourceRange{colorRange})

	transition(cb, image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc)

	if err := vk.Error(vk.EndCommandBuffer(cb)); err != nil {
		return errors.Wrap(err, "vk.EndCommandBuffer()")
	}
	return nil
}

// transition records a layout change of a swapchain image. Only the two
// transitions of a clear are supported.
func transition(cb vk.CommandBuffer, image vk.Image, old, new vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           old,
		NewLayout:           new,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    colorRange,
	}

	var srcStage, dstStage vk.PipelineStageFlags
	switch {
	case old == vk.ImageLayoutUndefined && new == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case old == vk.ImageLayoutTransferDstOptimal && new == vk.ImageLayoutPresentSrc:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	default:
		panic("vkr: unsupported layout transition")
	}

	vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// Destroy waits for outstanding clears and frees everything.
func (c *Clearer) Destroy() {
	dev := c.device.Handle()
	if len(c.fences) > 0 {
		vk.WaitForFences(dev, uint32(len(c.fences)), c.fences, vk.True, math.MaxUint64)
	}
	for _, f := range c.fences {
		vk.DestroyFence(dev, f, nil)
	}
	c.fences = nil
	if len(c.buffers) > 0 {
		vk.FreeCommandBuffers(dev, c.pool, uint32(len(c.buffers)), c.buffers)
		c.buffers = nil
	}
	vk.DestroyCommandPool(dev, c.pool, nil)
}
