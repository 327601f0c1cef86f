package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/core"
	kmath "github.com/spaghettifunk/koala/engine/math"
)

var ErrSwapchainImageCount = errors.New("swapchain has fewer images than frames in flight")

type VulkanSwapchain struct {
	ImageFormat       vk.SurfaceFormat
	Extent            vk.Extent2D
	PresentMode       vk.PresentMode
	MaxFramesInFlight uint8
	Handle            vk.Swapchain
	ImageCount        uint32
	Images            []vk.Image
	Views             []vk.ImageView

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	// Simply create a new one.
	return createSwapchain(context, width, height)
}

// SwapchainRecreate destroys the old swapchain and returns a new one negotiated
// against the current surface support.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	vs.destroySwapchain(context)
	return createSwapchain(context, width, height)
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vs.destroySwapchain(context)
}

// AcquireNextImageIndex asks for the next presentable image. The raw result is
// returned so the caller decides how to react to out-of-date surfaces.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNs uint64, imageAvailable *VulkanSemaphore) (uint32, vk.Result) {
	return context.driver.AcquireNextImage(vs.Handle, timeoutNs, imageAvailable)
}

// Present hands the image back to the presentation engine once renderComplete signals.
func (vs *VulkanSwapchain) Present(context *VulkanContext, presentQueue vk.Queue, renderComplete *VulkanSemaphore, presentImageIndex uint32) vk.Result {
	return context.driver.QueuePresent(presentQueue, vs.Handle, presentImageIndex, renderComplete)
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode returns preferred when the surface offers it. FIFO is
// always available and is the fallback.
func choosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == preferred {
			return mode
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent clamps the requested size into the surface limits.
func chooseExtent(capabilities vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	minExtent := capabilities.MinImageExtent
	maxExtent := capabilities.MaxImageExtent
	return vk.Extent2D{
		Width:  kmath.Clamp(width, minExtent.Width, maxExtent.Width),
		Height: kmath.Clamp(height, minExtent.Height, maxExtent.Height),
	}
}

func chooseImageCount(capabilities vk.SurfaceCapabilities) uint32 {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func parsePresentMode(mode string) vk.PresentMode {
	switch mode {
	case "mailbox":
		return vk.PresentModeMailbox
	case "immediate":
		return vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
}

func createSwapchain(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	support := context.Device.SwapchainSupport
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return nil, fmt.Errorf("surface reports no formats or present modes")
	}

	swapchain := &VulkanSwapchain{
		MaxFramesInFlight: context.MaxFramesInFlight,
		ImageFormat:       chooseSurfaceFormat(support.Formats),
		PresentMode:       choosePresentMode(support.PresentModes, context.PreferredPresentMode),
		Extent:            chooseExtent(support.Capabilities, width, height),
	}
	imageCount := chooseImageCount(support.Capabilities)

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     nil,
	}

	// Setup the queue family indices
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	handle, err := context.driver.CreateSwapchain(&swapchainCreateInfo)
	if err != nil {
		err = fmt.Errorf("failed to create swapchain: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	swapchain.Handle = handle

	// Start with a zero frame index.
	context.CurrentFrame = 0

	// Images
	images, err := context.driver.SwapchainImages(handle)
	if err != nil {
		swapchain.destroySwapchain(context)
		return nil, fmt.Errorf("failed to get swapchain images: %w", err)
	}
	swapchain.Images = images
	swapchain.ImageCount = uint32(len(images))
	if swapchain.ImageCount < uint32(swapchain.MaxFramesInFlight) {
		swapchain.destroySwapchain(context)
		return nil, fmt.Errorf("%w: %d images, %d frames in flight", ErrSwapchainImageCount, len(images), swapchain.MaxFramesInFlight)
	}

	// Views
	swapchain.Views = make([]vk.ImageView, 0, swapchain.ImageCount)
	for _, image := range images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		view, err := context.driver.CreateImageView(&viewInfo)
		if err != nil {
			swapchain.destroySwapchain(context)
			return nil, fmt.Errorf("failed to create swapchain image view: %w", err)
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	// Depth resources
	if context.Device.DepthFormat == vk.FormatUndefined {
		swapchain.destroySwapchain(context)
		return nil, ErrNoDepthFormat
	}

	// Create depth image and its view.
	depthAttachment, err := ImageCreate(
		context,
		vk.ImageType2d,
		swapchain.Extent.Width,
		swapchain.Extent.Height,
		context.Device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		swapchain.destroySwapchain(context)
		return nil, err
	}
	swapchain.DepthAttachment = depthAttachment

	core.LogInfo("Swapchain created successfully: %dx%d, %d images.",
		swapchain.Extent.Width, swapchain.Extent.Height, swapchain.ImageCount)
	return swapchain, nil
}

// destroySwapchain releases the depth attachment, the image views and then
// the swapchain itself. The images are owned by the swapchain.
func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext) {
	context.driver.DeviceWaitIdle()
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy(context)
		vs.DepthAttachment = nil
	}

	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range vs.Views {
		context.driver.DestroyImageView(view)
	}
	vs.Views = nil

	if vs.Handle != nil {
		context.driver.DestroySwapchain(vs.Handle)
		vs.Handle = nil
	}
	vs.Images = nil
	vs.ImageCount = 0
}
