// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Inventory inspects every device. The Vulkan loader must be initialised.
func Inventory(devices []vk.PhysicalDevice) []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(devices))
	for i, pdev := range devices {
		pdi[i] = Inspect(pdev)
	}
	return pdi
}

// Inspect gathers what the driver reports about a physical device.
// Queries that fail mark the info Invalid instead of failing.
func Inspect(pdev vk.PhysicalDevice) PhysicalDeviceInfo {
	var info PhysicalDeviceInfo

	// Get extension info
	var numDeviceExtensions uint32
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pdev, "", &numDeviceExtensions, nil)); err != nil {
		info.Invalid = true
	}
	deviceExt := make([]vk.ExtensionProperties, numDeviceExtensions)
	if err := vk.Error(vk.EnumerateDeviceExtensionProperties(pdev, "", &numDeviceExtensions, deviceExt)); err != nil {
		info.Invalid = true
	}
	for _, ext := range deviceExt {
		ext.Deref()
		info.Extensions = append(info.Extensions, vk.ToString(ext.ExtensionName[:]))
	}

	// Get layers info
	var numDeviceLayers uint32
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pdev, &numDeviceLayers, nil)); err != nil {
		info.Invalid = true
	}
	deviceLayers := make([]vk.LayerProperties, numDeviceLayers)
	if err := vk.Error(vk.EnumerateDeviceLayerProperties(pdev, &numDeviceLayers, deviceLayers)); err != nil {
		info.Invalid = true
	}
	for _, layer := range deviceLayers {
		layer.Deref()
		info.Layers = append(info.Layers, vk.ToString(layer.LayerName[:]))
	}

	// Get memory info
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pdev, &memoryProperties)
	memoryProperties.Deref()
	for iMem := uint32(0); iMem < memoryProperties.MemoryHeapCount; iMem++ {
		memoryProperties.MemoryHeaps[iMem].Deref()
		info.Memory += memoryProperties.MemoryHeaps[iMem].Size
	}

	// Get general device info
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pdev, &props)
	props.Deref()
	info.ID = int(props.DeviceID)
	info.VendorID = int(props.VendorID)
	info.Name = vk.ToString(props.DeviceName[:])
	info.DriverVersion = int(props.DriverVersion)
	info.APIVersion = versionString(props.ApiVersion)
	info.Type = deviceTypeNames[props.DeviceType]

	for idx, qf := range queueFamilyProperties(pdev) {
		info.QueueFamilies = append(info.QueueFamilies, Family{
			Index: uint32(idx),
			Count: qf.QueueCount,
			Flags: qf.QueueFlags,
		})
	}
	return info
}

func queueFamilyProperties(pdev vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pdev, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pdev, &count, families)
	for idx := range families {
		families[idx].Deref()
	}
	return families
}

// FindQueueFamilies picks the graphics and present families of pdev
// for surface.
func FindQueueFamilies(pdev vk.PhysicalDevice, surface vk.Surface) (QueueFamilies, error) {
	props := queueFamilyProperties(pdev)
	if len(props) == 0 {
		return QueueFamilies{}, errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no queuefamilies on GPU")
	}

	families := make([]Family, len(props))
	for idx, p := range props {
		var supportsPresent vk.Bool32
		if err := vk.Error(vk.GetPhysicalDeviceSurfaceSupport(pdev, uint32(idx), surface, &supportsPresent)); err != nil {
			return QueueFamilies{}, errors.Wrapf(err, "vk.GetPhysicalDeviceSurfaceSupport(%d)", idx)
		}
		families[idx] = Family{
			Index:           uint32(idx),
			Count:           p.QueueCount,
			Flags:           p.QueueFlags,
			SupportsPresent: supportsPresent.B(),
		}
	}
	return SelectQueueFamilies(families)
}
