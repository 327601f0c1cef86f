package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

func ImageCreate(
	context *VulkanContext,
	imageType vk.ImageType,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspectFlags vk.ImageAspectFlags,
) (*VulkanImage, error) {
	outImage := &VulkanImage{
		Width:  width,
		Height: height,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	handle, memory, err := context.driver.CreateImage(&imageCreateInfo, memoryFlags)
	if err != nil {
		err = fmt.Errorf("failed to create image: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	outImage.Handle = handle
	outImage.Memory = memory

	if createView {
		if err := outImage.createView(context, format, viewAspectFlags); err != nil {
			outImage.Destroy(context)
			return nil, err
		}
	}
	return outImage, nil
}

func (vi *VulkanImage) createView(context *VulkanContext, format vk.Format, aspectFlags vk.ImageAspectFlags) error {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	view, err := context.driver.CreateImageView(&viewCreateInfo)
	if err != nil {
		err = fmt.Errorf("failed to create image view: %w", err)
		core.LogError(err.Error())
		return err
	}
	vi.View = view
	return nil
}

func (vi *VulkanImage) Destroy(context *VulkanContext) {
	if vi.View != nil {
		context.driver.DestroyImageView(vi.View)
		vi.View = nil
	}
	if vi.Handle != nil || vi.Memory != nil {
		context.driver.DestroyImage(vi.Handle, vi.Memory)
		vi.Handle = nil
		vi.Memory = nil
	}
}
