package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/core"
)

// vkDriver forwards to the Vulkan loader.
type vkDriver struct {
	instance  vk.Instance
	allocator *vk.AllocationCallbacks
	physical  vk.PhysicalDevice
	device    vk.Device
}

var _ Driver = (*vkDriver)(nil)

func newVkDriver(instance vk.Instance, allocator *vk.AllocationCallbacks) *vkDriver {
	return &vkDriver{
		instance:  instance,
		allocator: allocator,
	}
}

func resultError(call string, res vk.Result) error {
	return fmt.Errorf("%s failed with %s: %w", call, VulkanResultString(res, false), vk.Error(res))
}

func (d *vkDriver) PhysicalDevices(surface vk.Surface) ([]*PhysicalDeviceInfo, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, nil); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}
	if count == 0 {
		return nil, nil
	}
	handles := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(d.instance, &count, handles); res != vk.Success {
		return nil, resultError("vkEnumeratePhysicalDevices", res)
	}

	devices := make([]*PhysicalDeviceInfo, 0, count)
	for i, handle := range handles[:count] {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(handle, &properties)
		properties.Deref()

		var features vk.PhysicalDeviceFeatures
		vk.GetPhysicalDeviceFeatures(handle, &features)
		features.Deref()

		var memory vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(handle, &memory)
		memory.Deref()

		info := &PhysicalDeviceInfo{
			Handle:            handle,
			Index:             i,
			Name:              vk.ToString(properties.DeviceName[:]),
			Type:              properties.DeviceType,
			DriverVersion:     properties.DriverVersion,
			APIVersion:        properties.ApiVersion,
			SamplerAnisotropy: features.SamplerAnisotropy == vk.True,
		}

		for j := uint32(0); j < memory.MemoryHeapCount; j++ {
			heap := memory.MemoryHeaps[j]
			heap.Deref()
			info.MemoryHeaps = append(info.MemoryHeaps, MemoryHeap{
				Size:        uint64(heap.Size),
				DeviceLocal: vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0,
			})
		}

		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, nil)
		families := make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(handle, &familyCount, families)
		for j := range families {
			families[j].Deref()
			var supportsPresent vk.Bool32
			if res := vk.GetPhysicalDeviceSurfaceSupport(handle, uint32(j), surface, &supportsPresent); res != vk.Success {
				return nil, resultError("vkGetPhysicalDeviceSurfaceSupport", res)
			}
			info.QueueFamilies = append(info.QueueFamilies, QueueFamily{
				Flags:           families[j].QueueFlags,
				Count:           families[j].QueueCount,
				SupportsPresent: supportsPresent == vk.True,
			})
		}

		var extensionCount uint32
		if res := vk.EnumerateDeviceExtensionProperties(handle, "", &extensionCount, nil); res != vk.Success {
			return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
		}
		if extensionCount > 0 {
			extensions := make([]vk.ExtensionProperties, extensionCount)
			if res := vk.EnumerateDeviceExtensionProperties(handle, "", &extensionCount, extensions); res != vk.Success {
				return nil, resultError("vkEnumerateDeviceExtensionProperties", res)
			}
			for j := range extensions {
				extensions[j].Deref()
				info.Extensions = append(info.Extensions, vk.ToString(extensions[j].ExtensionName[:]))
			}
		}

		devices = append(devices, info)
	}
	return devices, nil
}

func (d *vkDriver) QuerySwapchainSupport(device *PhysicalDeviceInfo, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	support := VulkanSwapchainSupportInfo{}

	if res := vk.GetPhysicalDeviceSurfaceCapabilities(device.Handle, surface, &support.Capabilities); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", res)
	}
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(device.Handle, surface, &formatCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
	}
	if formatCount > 0 {
		support.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(device.Handle, surface, &formatCount, support.Formats); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfaceFormatsKHR", res)
		}
		for i := range support.Formats {
			support.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(device.Handle, surface, &modeCount, nil); res != vk.Success {
		return support, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
	}
	if modeCount > 0 {
		support.PresentModes = make([]vk.PresentMode, modeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(device.Handle, surface, &modeCount, support.PresentModes); res != vk.Success {
			return support, resultError("vkGetPhysicalDeviceSurfacePresentModesKHR", res)
		}
	}
	return support, nil
}

func (d *vkDriver) FormatProperties(device *PhysicalDeviceInfo, format vk.Format) vk.FormatProperties {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(device.Handle, format, &properties)
	properties.Deref()
	return properties
}

func (d *vkDriver) CreateDevice(device *PhysicalDeviceInfo, info *vk.DeviceCreateInfo) (vk.Device, error) {
	var logical vk.Device
	if res := vk.CreateDevice(device.Handle, info, d.allocator, &logical); res != vk.Success {
		return nil, resultError("vkCreateDevice", res)
	}
	d.physical = device.Handle
	d.device = logical
	return logical, nil
}

func (d *vkDriver) DestroyDevice() {
	if d.device != nil {
		vk.DestroyDevice(d.device, d.allocator)
		d.device = nil
	}
	d.physical = nil
}

func (d *vkDriver) DeviceQueue(family, index uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(d.device, family, index, &queue)
	return queue
}

func (d *vkDriver) DeviceWaitIdle() vk.Result {
	if d.device == nil {
		return vk.Success
	}
	return vk.DeviceWaitIdle(d.device)
}

func (d *vkDriver) CreateCommandPool(info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.device, info, d.allocator, &pool); res != vk.Success {
		return nil, resultError("vkCreateCommandPool", res)
	}
	return pool, nil
}

func (d *vkDriver) DestroyCommandPool(pool vk.CommandPool) {
	vk.DestroyCommandPool(d.device, pool, d.allocator)
}

func (d *vkDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	if res := vk.CreateSwapchain(d.device, info, d.allocator, &swapchain); res != vk.Success {
		return nil, resultError("vkCreateSwapchainKHR", res)
	}
	return swapchain, nil
}

func (d *vkDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	if res := vk.GetSwapchainImages(d.device, swapchain, &count, nil); res != vk.Success {
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	images := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(d.device, swapchain, &count, images); res != vk.Success {
		return nil, resultError("vkGetSwapchainImagesKHR", res)
	}
	return images[:count], nil
}

func (d *vkDriver) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.device, swapchain, d.allocator)
}

func (d *vkDriver) AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, signal *VulkanSemaphore) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(d.device, swapchain, timeoutNs, signal.Handle, vk.NullFence, &imageIndex)
	return imageIndex, res
}

func (d *vkDriver) QueuePresent(queue vk.Queue, swapchain vk.Swapchain, imageIndex uint32, wait *VulkanSemaphore) vk.Result {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.Handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain},
		PImageIndices:      []uint32{imageIndex},
	}
	return vk.QueuePresent(queue, &presentInfo)
}

func (d *vkDriver) CreateImage(info *vk.ImageCreateInfo, memoryFlags vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	var image vk.Image
	if res := vk.CreateImage(d.device, info, d.allocator, &image); res != vk.Success {
		return nil, nil, resultError("vkCreateImage", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &requirements)
	requirements.Deref()

	memoryType := d.findMemoryIndex(requirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		vk.DestroyImage(d.device, image, d.allocator)
		return nil, nil, fmt.Errorf("required memory type not found, image not valid")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.device, &allocateInfo, d.allocator, &memory); res != vk.Success {
		vk.DestroyImage(d.device, image, d.allocator)
		return nil, nil, resultError("vkAllocateMemory", res)
	}
	// TODO: configurable memory offset once images share allocations.
	if res := vk.BindImageMemory(d.device, image, memory, 0); res != vk.Success {
		vk.FreeMemory(d.device, memory, d.allocator)
		vk.DestroyImage(d.device, image, d.allocator)
		return nil, nil, resultError("vkBindImageMemory", res)
	}
	return image, memory, nil
}

func (d *vkDriver) findMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (d *vkDriver) DestroyImage(image vk.Image, memory vk.DeviceMemory) {
	if memory != nil {
		vk.FreeMemory(d.device, memory, d.allocator)
	}
	if image != nil {
		vk.DestroyImage(d.device, image, d.allocator)
	}
}

func (d *vkDriver) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	if res := vk.CreateImageView(d.device, info, d.allocator, &view); res != vk.Success {
		return nil, resultError("vkCreateImageView", res)
	}
	return view, nil
}

func (d *vkDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.device, view, d.allocator)
}

func (d *vkDriver) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderpass vk.RenderPass
	if res := vk.CreateRenderPass(d.device, info, d.allocator, &renderpass); res != vk.Success {
		return nil, resultError("vkCreateRenderPass", res)
	}
	return renderpass, nil
}

func (d *vkDriver) DestroyRenderPass(renderpass vk.RenderPass) {
	vk.DestroyRenderPass(d.device, renderpass, d.allocator)
}

func (d *vkDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(d.device, info, d.allocator, &framebuffer); res != vk.Success {
		return nil, resultError("vkCreateFramebuffer", res)
	}
	return framebuffer, nil
}

func (d *vkDriver) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(d.device, framebuffer, d.allocator)
}

func (d *vkDriver) AllocateCommandBuffer(pool vk.CommandPool, level vk.CommandBufferLevel) (vk.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              level,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.device, &allocateInfo, buffers); res != vk.Success {
		return nil, resultError("vkAllocateCommandBuffers", res)
	}
	return buffers[0], nil
}

func (d *vkDriver) FreeCommandBuffer(pool vk.CommandPool, commandBuffer vk.CommandBuffer) {
	vk.FreeCommandBuffers(d.device, pool, 1, []vk.CommandBuffer{commandBuffer})
}

func (d *vkDriver) BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(commandBuffer, info)
}

func (d *vkDriver) EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	return vk.EndCommandBuffer(commandBuffer)
}

func (d *vkDriver) ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result {
	return vk.ResetCommandBuffer(commandBuffer, 0)
}

func (d *vkDriver) CmdSetViewport(commandBuffer vk.CommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(commandBuffer, 0, 1, []vk.Viewport{viewport})
}

func (d *vkDriver) CmdSetScissor(commandBuffer vk.CommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(commandBuffer, 0, 1, []vk.Rect2D{scissor})
}

func (d *vkDriver) CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(commandBuffer, info, vk.SubpassContentsInline)
}

func (d *vkDriver) CmdEndRenderPass(commandBuffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer)
}

func (d *vkDriver) CreateSemaphore() (vk.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(d.device, &semaphoreCreateInfo, d.allocator, &semaphore); res != vk.Success {
		return vk.NullSemaphore, resultError("vkCreateSemaphore", res)
	}
	return semaphore, nil
}

func (d *vkDriver) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.device, semaphore, d.allocator)
}

func (d *vkDriver) CreateFence(signaled bool) (vk.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if res := vk.CreateFence(d.device, &fenceCreateInfo, d.allocator, &fence); res != vk.Success {
		return vk.NullFence, resultError("vkCreateFence", res)
	}
	return fence, nil
}

func (d *vkDriver) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.device, fence, d.allocator)
}

func (d *vkDriver) WaitForFence(fence *VulkanFence, timeoutNs uint64) vk.Result {
	return vk.WaitForFences(d.device, 1, []vk.Fence{fence.Handle}, vk.True, timeoutNs)
}

func (d *vkDriver) ResetFence(fence *VulkanFence) vk.Result {
	return vk.ResetFences(d.device, 1, []vk.Fence{fence.Handle})
}

func (d *vkDriver) QueueSubmit(queue vk.Queue, submit Submission) vk.Result {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{submit.CommandBuffer.Handle},
	}
	if submit.Wait != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{submit.Wait.Handle}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{submit.WaitStage}
	}
	if submit.Signal != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{submit.Signal.Handle}
	}
	fence := vk.NullFence
	if submit.Fence != nil {
		fence = submit.Fence.Handle
	}
	return vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence)
}
