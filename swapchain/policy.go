// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package swapchain

import (
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slices"
)

// FallbackFormat is used when the surface reports no formats at all,
// which non-conformant drivers have been seen to do.
var FallbackFormat = SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Unorm,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// PickFormat returns the first preferred format the surface supports,
// or the first supported one, or FallbackFormat.
func PickFormat(preferred, supported []SurfaceFormat) SurfaceFormat {
	for _, f := range preferred {
		if slices.Contains(supported, f) {
			return f
		}
	}
	if len(supported) > 0 {
		return supported[0]
	}
	return FallbackFormat
}

// PickPresentMode works like PickFormat. FIFO is the fallback,
// it is the one mode every implementation has to support.
func PickPresentMode(preferred, supported []vk.PresentMode) vk.PresentMode {
	for _, m := range preferred {
		if slices.Contains(supported, m) {
			return m
		}
	}
	if len(supported) > 0 {
		return supported[0]
	}
	return vk.PresentModeFifo
}

// PickImageCount asks for one image above the minimum, since drivers
// commonly reject using exactly the reported minimum.
// A maxCount of zero means unbounded.
func PickImageCount(minCount, maxCount uint32) uint32 {
	count := minCount + 1
	if maxCount == 0 {
		return count
	}
	return clamp(count, minCount, maxCount)
}

// PickExtent clamps each axis of current into [min, max]. The
// "undefined extent" sentinel (0xFFFFFFFF) is handled by the clamp.
func PickExtent(current, minExtent, maxExtent vk.Extent2D) vk.Extent2D {
	return vk.Extent2D{
		Width:  clamp(current.Width, minExtent.Width, maxExtent.Width),
		Height: clamp(current.Height, minExtent.Height, maxExtent.Height),
	}
}

// PickSharingMode shares images between the two families when
// they differ.
func PickSharingMode(graphicsFamily, presentFamily uint32) (vk.SharingMode, []uint32) {
	if graphicsFamily != presentFamily {
		return vk.SharingModeConcurrent, []uint32{graphicsFamily, presentFamily}
	}
	return vk.SharingModeExclusive, nil
}

var compositeAlphaOrder = []vk.CompositeAlphaFlagBits{
	vk.CompositeAlphaOpaqueBit,
	vk.CompositeAlphaPreMultipliedBit,
	vk.CompositeAlphaPostMultipliedBit,
	vk.CompositeAlphaInheritBit,
}

// PickCompositeAlpha returns required when the surface supports it.
// Otherwise the first supported mode is taken, opaque first.
func PickCompositeAlpha(required vk.CompositeAlphaFlagBits, supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	if required != 0 && supported&vk.CompositeAlphaFlags(required) != 0 {
		return required
	}
	for _, bit := range compositeAlphaOrder {
		if supported&vk.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// PickTransform keeps whatever transform the surface is in.
func PickTransform(caps SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	if caps.CurrentTransform == 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return caps.CurrentTransform
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
