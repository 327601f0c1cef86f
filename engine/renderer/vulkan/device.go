package vulkan

import (
	"errors"
	"fmt"
	"slices"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/core"
)

const portabilitySubsetExtensionName = "VK_KHR_portability_subset"

var (
	ErrNoPhysicalDevice  = errors.New("no devices which support Vulkan were found")
	ErrNoSuitableDevice  = errors.New("no physical device meets the requirements")
	ErrNoDepthFormat     = errors.New("no supported depth format")
	ErrDeviceNotSelected = errors.New("no physical device has been selected")
)

type VulkanDevice struct {
	PhysicalDevice     *PhysicalDeviceInfo
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32
	ComputeQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue
	ComputeQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	DepthFormat vk.Format
}

func newVulkanDevice() *VulkanDevice {
	return &VulkanDevice{
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
		TransferQueueIndex: -1,
		ComputeQueueIndex:  -1,
	}
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

// Family indexes are -1 when no family provides the capability.
type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

// FindQueueFamilies picks one family per capability. Graphics and compute take
// the first family that offers them. Transfer takes the family with the fewest
// other capabilities, which favors a dedicated transfer queue. Present prefers
// the graphics family when that family can present.
func FindQueueFamilies(families []QueueFamily) VulkanPhysicalDeviceQueueFamilyInfo {
	info := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		ComputeFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}

	minTransferScore := 255
	for i, family := range families {
		if family.Count == 0 {
			continue
		}
		index := int32(i)
		currentTransferScore := 0

		// Graphics queue?
		if vk.QueueFlagBits(family.Flags)&vk.QueueGraphicsBit != 0 {
			if info.GraphicsFamilyIndex == -1 {
				info.GraphicsFamilyIndex = index
			}
			currentTransferScore++
		}

		// Compute queue?
		if vk.QueueFlagBits(family.Flags)&vk.QueueComputeBit != 0 {
			if info.ComputeFamilyIndex == -1 {
				info.ComputeFamilyIndex = index
			}
			currentTransferScore++
		}

		if vk.QueueFlagBits(family.Flags)&vk.QueueSparseBindingBit != 0 {
			currentTransferScore++
		}

		// Transfer queue?
		if vk.QueueFlagBits(family.Flags)&vk.QueueTransferBit != 0 {
			// Take the index if it is the current lowest. This increases the
			// likelihood that it is a dedicated transfer queue.
			if currentTransferScore < minTransferScore {
				minTransferScore = currentTransferScore
				info.TransferFamilyIndex = index
			}
		}

		// Present queue?
		if family.SupportsPresent && info.PresentFamilyIndex == -1 {
			info.PresentFamilyIndex = index
		}
	}

	if g := info.GraphicsFamilyIndex; g != -1 && families[g].SupportsPresent {
		info.PresentFamilyIndex = g
	}
	return info
}

// PhysicalDeviceMeetsRequirements reports whether device can serve requirements
// against surface. Any query failure rejects the device.
func PhysicalDeviceMeetsRequirements(
	driver Driver,
	surface vk.Surface,
	device *PhysicalDeviceInfo,
	requirements *VulkanPhysicalDeviceRequirements,
) (VulkanPhysicalDeviceQueueFamilyInfo, VulkanSwapchainSupportInfo, bool) {
	queueInfo := FindQueueFamilies(device.QueueFamilies)
	support := VulkanSwapchainSupportInfo{}

	// Discrete GPU?
	if requirements.DiscreteGPU && device.Type != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return queueInfo, support, false
	}

	core.LogInfo("Graphics | Present | Compute | Transfer | Name")
	core.LogInfo("%8d | %7d | %7d | %8d | %s",
		queueInfo.GraphicsFamilyIndex,
		queueInfo.PresentFamilyIndex,
		queueInfo.ComputeFamilyIndex,
		queueInfo.TransferFamilyIndex,
		device.Name)

	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex == -1) ||
		(requirements.Present && queueInfo.PresentFamilyIndex == -1) ||
		(requirements.Compute && queueInfo.ComputeFamilyIndex == -1) ||
		(requirements.Transfer && queueInfo.TransferFamilyIndex == -1) {
		core.LogInfo("Device does not meet queue requirements, skipping.")
		return queueInfo, support, false
	}

	core.LogInfo("Device meets queue requirements.")
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", queueInfo.TransferFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", queueInfo.ComputeFamilyIndex)

	// Query swapchain support.
	support, err := driver.QuerySwapchainSupport(device, surface)
	if err != nil {
		core.LogInfo("Swapchain support query failed (%s), skipping device.", err)
		return queueInfo, support, false
	}
	if len(support.Formats) < 1 || len(support.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return queueInfo, support, false
	}

	// Device extensions.
	for _, name := range requirements.DeviceExtensionNames {
		if !slices.Contains(device.Extensions, name) {
			core.LogInfo("Required extension not found: '%s', skipping device.", name)
			return queueInfo, support, false
		}
	}

	// Sampler anisotropy
	if requirements.SamplerAnisotropy && !device.SamplerAnisotropy {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return queueInfo, support, false
	}

	// Device meets all requirements.
	return queueInfo, support, true
}

// SelectPhysicalDevice takes the first enumerated device that meets requirements.
func SelectPhysicalDevice(context *VulkanContext, requirements *VulkanPhysicalDeviceRequirements) error {
	devices, err := context.driver.PhysicalDevices(context.Surface)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		core.LogError(ErrNoPhysicalDevice.Error())
		return ErrNoPhysicalDevice
	}

	for _, device := range devices {
		queueInfo, support, ok := PhysicalDeviceMeetsRequirements(context.driver, context.Surface, device, requirements)
		if !ok {
			continue
		}

		core.LogInfo("Selected device: '%s'.", device.Name)
		logDeviceDetails(device)

		context.Device.PhysicalDevice = device
		context.Device.SwapchainSupport = support
		context.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		context.Device.PresentQueueIndex = queueInfo.PresentFamilyIndex
		context.Device.TransferQueueIndex = queueInfo.TransferFamilyIndex
		if requirements.Compute {
			context.Device.ComputeQueueIndex = queueInfo.ComputeFamilyIndex
		}
		core.LogInfo("Physical device selected.")
		return nil
	}

	core.LogError("No physical devices were found which meet the requirements.")
	return ErrNoSuitableDevice
}

func logDeviceDetails(device *PhysicalDeviceInfo) {
	// GPU type, etc.
	switch device.Type {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(device.DriverVersion).Major(),
		vk.Version(device.DriverVersion).Minor(),
		vk.Version(device.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(device.APIVersion).Major(),
		vk.Version(device.APIVersion).Minor(),
		vk.Version(device.APIVersion).Patch(),
	)

	// Memory information
	for _, heap := range device.MemoryHeaps {
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if heap.DeviceLocal {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

// queueCreateInfos opens one queue per distinct family in use. The graphics
// family gets two queues when it has them.
func queueCreateInfos(device *VulkanDevice) []vk.DeviceQueueCreateInfo {
	indices := []int32{device.GraphicsQueueIndex}
	for _, idx := range []int32{device.PresentQueueIndex, device.TransferQueueIndex, device.ComputeQueueIndex} {
		if idx != -1 && !slices.Contains(indices, idx) {
			indices = append(indices, idx)
		}
	}

	infos := make([]vk.DeviceQueueCreateInfo, 0, len(indices))
	for _, idx := range indices {
		count := uint32(1)
		if idx == device.GraphicsQueueIndex {
			count = min(2, device.PhysicalDevice.QueueFamilies[idx].Count)
		}
		priorities := make([]float32, count)
		for i := range priorities {
			priorities[i] = 1.0
		}
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(idx),
			QueueCount:       count,
			PQueuePriorities: priorities,
		})
	}
	return infos
}

// DeviceCreate selects a physical device, creates the logical device, fetches
// its queues and creates the graphics command pool.
func DeviceCreate(context *VulkanContext, requirements *VulkanPhysicalDeviceRequirements) error {
	context.Device = newVulkanDevice()
	if err := SelectPhysicalDevice(context, requirements); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")
	device := context.Device

	queueInfos := queueCreateInfos(device)

	// Request device features.
	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if requirements.SamplerAnisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if slices.Contains(device.PhysicalDevice.Extensions, portabilitySubsetExtensionName) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtensionName)
		extensionNames = append(extensionNames, portabilitySubsetExtensionName)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
		// Deprecated and ignored, so pass nothing.
		EnabledLayerCount:   0,
		PpEnabledLayerNames: nil,
	}

	logical, err := context.driver.CreateDevice(device.PhysicalDevice, &deviceCreateInfo)
	if err != nil {
		return fmt.Errorf("failed to create logical device: %w", err)
	}
	device.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	// Get queues.
	device.GraphicsQueue = context.driver.DeviceQueue(uint32(device.GraphicsQueueIndex), 0)
	device.PresentQueue = context.driver.DeviceQueue(uint32(device.PresentQueueIndex), 0)
	if device.TransferQueueIndex != -1 {
		device.TransferQueue = context.driver.DeviceQueue(uint32(device.TransferQueueIndex), 0)
	}
	if device.ComputeQueueIndex != -1 {
		device.ComputeQueue = context.driver.DeviceQueue(uint32(device.ComputeQueueIndex), 0)
	}
	core.LogInfo("Queues obtained.")

	// Create command pool for graphics queue.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	pool, err := context.driver.CreateCommandPool(&poolCreateInfo)
	if err != nil {
		return fmt.Errorf("failed to create graphics command pool: %w", err)
	}
	device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !DeviceDetectDepthFormat(context) {
		return ErrNoDepthFormat
	}
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	device := context.Device
	if device == nil {
		return
	}

	// Unset queues
	device.GraphicsQueue = nil
	device.PresentQueue = nil
	device.TransferQueue = nil
	device.ComputeQueue = nil

	if device.GraphicsCommandPool != nil {
		core.LogInfo("Destroying command pools...")
		context.driver.DestroyCommandPool(device.GraphicsCommandPool)
		device.GraphicsCommandPool = nil
	}

	// Destroy logical device
	core.LogInfo("Destroying logical device...")
	context.driver.DestroyDevice()
	device.LogicalDevice = nil

	// Physical devices are not destroyed.
	core.LogInfo("Releasing physical device resources...")
	device.PhysicalDevice = nil
	device.SwapchainSupport = VulkanSwapchainSupportInfo{}

	device.GraphicsQueueIndex = -1
	device.PresentQueueIndex = -1
	device.TransferQueueIndex = -1
	device.ComputeQueueIndex = -1
}

// DeviceQuerySwapchainSupport refreshes the cached surface support of the selected device.
func DeviceQuerySwapchainSupport(context *VulkanContext) error {
	if context.Device == nil || context.Device.PhysicalDevice == nil {
		return ErrDeviceNotSelected
	}
	support, err := context.driver.QuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface)
	if err != nil {
		return err
	}
	context.Device.SwapchainSupport = support
	return nil
}

// DeviceDetectDepthFormat stores the first candidate usable as a depth stencil
// attachment with either tiling.
func DeviceDetectDepthFormat(context *VulkanContext) bool {
	// Format candidates
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		properties := context.driver.FormatProperties(context.Device.PhysicalDevice, candidate)
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			context.Device.DepthFormat = candidate
			return true
		}
	}
	context.Device.DepthFormat = vk.FormatUndefined
	return false
}
