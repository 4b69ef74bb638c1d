// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/slices"
)

// Queue family selection errors
var (
	ErrNoGraphicsQueue = errors.New("device: no queue family supports graphics")
	ErrNoPresentQueue  = errors.New("device: no queue family can present to the surface")
)

// PhysicalDeviceInfo describes available physical properties of a rendering device
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	APIVersion    string
	Name          string
	Type          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        vk.DeviceSize
	QueueFamilies []Family
}

// Family is what queue family selection needs to know about a family.
type Family struct {
	Index           uint32
	Count           uint32
	Flags           vk.QueueFlags
	SupportsPresent bool
}

// Graphics reports whether the family can run graphics work.
func (f Family) Graphics() bool {
	return f.Flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
}

// QueueFamilies names the families the graphics and present queues come from.
type QueueFamilies struct {
	Graphics uint32
	Present  uint32
}

// Separate is true when presenting needs a queue of its own.
func (q QueueFamilies) Separate() bool {
	return q.Graphics != q.Present
}

// SelectQueueFamilies prefers a single family that can both draw and
// present. Failing that, the first graphics family is paired with the
// first family able to present.
func SelectQueueFamilies(families []Family) (QueueFamilies, error) {
	var (
		graphics, present           uint32
		graphicsFound, presentFound bool
	)
	for _, f := range families {
		if f.Count == 0 {
			continue
		}
		if f.Graphics() && f.SupportsPresent {
			return QueueFamilies{Graphics: f.Index, Present: f.Index}, nil
		}
		if f.Graphics() && !graphicsFound {
			graphics, graphicsFound = f.Index, true
		}
		if f.SupportsPresent && !presentFound {
			present, presentFound = f.Index, true
		}
	}
	if !graphicsFound {
		return QueueFamilies{}, ErrNoGraphicsQueue
	}
	if !presentFound {
		return QueueFamilies{}, ErrNoPresentQueue
	}
	return QueueFamilies{Graphics: graphics, Present: present}, nil
}

// Suitable checks if the device can drive a swapchain with the given
// device extensions. If not suitable the string contains the reason.
func Suitable(info PhysicalDeviceInfo, extensions []string) (bool, string) {
	if info.Invalid {
		return false, "device could not be inspected"
	}
	for _, ext := range extensions {
		if !slices.Contains(info.Extensions, ext) {
			return false, fmt.Sprintf("missing extension %s", ext)
		}
	}
	if !slices.ContainsFunc(info.QueueFamilies, Family.Graphics) {
		return false, "no graphics queue family"
	}
	return true, ""
}

// Pick returns the index of the first suitable device, discrete GPUs first.
func Pick(infos []PhysicalDeviceInfo, extensions []string) (int, error) {
	fallback := -1
	for idx, info := range infos {
		if ok, _ := Suitable(info, extensions); !ok {
			continue
		}
		if info.Type == deviceTypeNames[vk.PhysicalDeviceTypeDiscreteGpu] {
			return idx, nil
		}
		if fallback < 0 {
			fallback = idx
		}
	}
	if fallback < 0 {
		return 0, errors.Errorf("device: none of %d devices is suitable", len(infos))
	}
	return fallback, nil
}

var deviceTypeNames = map[vk.PhysicalDeviceType]string{
	vk.PhysicalDeviceTypeOther:         "other",
	vk.PhysicalDeviceTypeIntegratedGpu: "integrated",
	vk.PhysicalDeviceTypeDiscreteGpu:   "discrete",
	vk.PhysicalDeviceTypeVirtualGpu:    "virtual",
	vk.PhysicalDeviceTypeCpu:           "cpu",
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}
