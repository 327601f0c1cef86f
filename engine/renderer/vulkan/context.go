package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match FramebufferSizeLastGeneration,
	// a new swapchain should be generated.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when it was last created. Set to FramebufferSizeGeneration
	// when updated.
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	driver Driver

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	// One per swapchain image.
	GraphicsCommandBuffers []*VulkanCommandBuffer

	// One per frame in flight.
	ImageAvailableSemaphores []*VulkanSemaphore

	// One per swapchain image, so a semaphore is never re-signaled while the
	// presentation engine may still be waiting on it.
	RenderFinishedSemaphores []*VulkanSemaphore

	// One per frame in flight.
	InFlightFences []*VulkanFence

	// Holds pointers to fences which exist and are owned elsewhere.
	ImagesInFlight []*VulkanFence

	MaxFramesInFlight    uint8
	PreferredPresentMode vk.PresentMode
	// Timeout handed to every fence wait. math.MaxUint64 waits forever.
	FenceTimeoutNs uint64

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool
	State               FrameState
}
