package vulkan

import (
	vk "github.com/goki/vulkan"
)

// QueueFamily describes one queue family of a physical device, including
// whether it can present to the surface the device was queried against.
type QueueFamily struct {
	Flags           vk.QueueFlags
	Count           uint32
	SupportsPresent bool
}

type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

// PhysicalDeviceInfo is everything device selection looks at, gathered once
// per enumeration.
type PhysicalDeviceInfo struct {
	Handle            vk.PhysicalDevice
	Index             int
	Name              string
	Type              vk.PhysicalDeviceType
	DriverVersion     uint32
	APIVersion        uint32
	SamplerAnisotropy bool
	QueueFamilies     []QueueFamily
	Extensions        []string
	MemoryHeaps       []MemoryHeap
}

// Submission is a single graphics queue submit: one command buffer waiting on
// one semaphore and signaling another, with an optional fence.
type Submission struct {
	CommandBuffer *VulkanCommandBuffer
	Wait          *VulkanSemaphore
	WaitStage     vk.PipelineStageFlags
	Signal        *VulkanSemaphore
	Fence         *VulkanFence
}

// Driver is the set of device level calls the backend makes. The instance,
// allocator and logical device live behind it.
type Driver interface {
	PhysicalDevices(surface vk.Surface) ([]*PhysicalDeviceInfo, error)
	QuerySwapchainSupport(device *PhysicalDeviceInfo, surface vk.Surface) (VulkanSwapchainSupportInfo, error)
	FormatProperties(device *PhysicalDeviceInfo, format vk.Format) vk.FormatProperties

	CreateDevice(device *PhysicalDeviceInfo, info *vk.DeviceCreateInfo) (vk.Device, error)
	DestroyDevice()
	DeviceQueue(family, index uint32) vk.Queue
	DeviceWaitIdle() vk.Result
	CreateCommandPool(info *vk.CommandPoolCreateInfo) (vk.CommandPool, error)
	DestroyCommandPool(pool vk.CommandPool)

	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error)
	DestroySwapchain(swapchain vk.Swapchain)
	AcquireNextImage(swapchain vk.Swapchain, timeoutNs uint64, signal *VulkanSemaphore) (uint32, vk.Result)
	QueuePresent(queue vk.Queue, swapchain vk.Swapchain, imageIndex uint32, wait *VulkanSemaphore) vk.Result

	// CreateImage also allocates and binds device memory matching memoryFlags.
	CreateImage(info *vk.ImageCreateInfo, memoryFlags vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error)
	DestroyImage(image vk.Image, memory vk.DeviceMemory)
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)

	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(renderpass vk.RenderPass)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)

	AllocateCommandBuffer(pool vk.CommandPool, level vk.CommandBufferLevel) (vk.CommandBuffer, error)
	FreeCommandBuffer(pool vk.CommandPool, commandBuffer vk.CommandBuffer)
	BeginCommandBuffer(commandBuffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result
	ResetCommandBuffer(commandBuffer vk.CommandBuffer) vk.Result
	CmdSetViewport(commandBuffer vk.CommandBuffer, viewport vk.Viewport)
	CmdSetScissor(commandBuffer vk.CommandBuffer, scissor vk.Rect2D)
	CmdBeginRenderPass(commandBuffer vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(commandBuffer vk.CommandBuffer)

	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence *VulkanFence, timeoutNs uint64) vk.Result
	ResetFence(fence *VulkanFence) vk.Result
	QueueSubmit(queue vk.Queue, submit Submission) vk.Result
}
