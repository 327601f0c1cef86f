package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseSurfaceFormat(t *testing.T) {
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, srgb, chooseSurfaceFormat([]vk.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, unorm, chooseSurfaceFormat([]vk.SurfaceFormat{unorm}))
}

func TestChoosePresentMode(t *testing.T) {
	modes := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode(modes, vk.PresentModeMailbox))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(modes, vk.PresentModeImmediate))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode(nil, vk.PresentModeMailbox))
}

func TestChooseExtentClampsToSurface(t *testing.T) {
	caps := defaultSupport().Capabilities

	tests := []struct {
		name          string
		width, height uint32
		want          vk.Extent2D
	}{
		{"inside", 800, 600, vk.Extent2D{Width: 800, Height: 600}},
		{"zero", 0, 0, vk.Extent2D{Width: 1, Height: 1}},
		{"too large", 9000, 300, vk.Extent2D{Width: 4096, Height: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chooseExtent(caps, tt.width, tt.height))
		})
	}
}

func TestChooseImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, uint32(2), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
	// zero max means no upper limit
	assert.Equal(t, uint32(4), chooseImageCount(vk.SurfaceCapabilities{MinImageCount: 3}))
}

func TestParsePresentMode(t *testing.T) {
	assert.Equal(t, vk.PresentModeMailbox, parsePresentMode("mailbox"))
	assert.Equal(t, vk.PresentModeImmediate, parsePresentMode("immediate"))
	assert.Equal(t, vk.PresentModeFifo, parsePresentMode("fifo"))
	assert.Equal(t, vk.PresentModeFifo, parsePresentMode(""))
}

func TestSwapchainCreateFromZeroSizedWindow(t *testing.T) {
	fake := newFakeDriver(suitableDevice("gpu"))
	vr := New(testRendererConfig())

	require.NoError(t, vr.setup(fake, 0, 0))
	require.Len(t, fake.swapchains, 1)
	assert.Equal(t, vk.Extent2D{Width: 1, Height: 1}, fake.swapchains[0].ImageExtent)
	assert.Equal(t, uint32(1), vr.context.FramebufferWidth)
	assert.Equal(t, uint32(1), vr.context.FramebufferHeight)
}

func TestSwapchainRecreateClampsOversizedRequest(t *testing.T) {
	fake := newFakeDriver(suitableDevice("gpu"))
	vr := newTestRenderer(t, fake)

	vr.Resized(9000, 9000)
	assert.ErrorIs(t, vr.BeginFrame(0), core.ErrSwapchainBooting)

	require.Len(t, fake.swapchains, 2)
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 4096}, fake.swapchains[1].ImageExtent)
	assert.Equal(t, uint32(4096), vr.context.FramebufferWidth)
	assert.Equal(t, float32(4096), vr.context.MainRenderpass.W)
}

func TestSwapchainCreateRejectsTooFewImages(t *testing.T) {
	fake := newFakeDriver(suitableDevice("gpu"))
	fake.imageCount = 1
	vr := New(testRendererConfig())

	assert.ErrorIs(t, vr.setup(fake, 800, 600), ErrSwapchainImageCount)
}

func TestSwapchainCreateImageCountAndFormat(t *testing.T) {
	fake := newFakeDriver(suitableDevice("gpu"))
	vr := newTestRenderer(t, fake)

	info := fake.swapchains[0]
	assert.Equal(t, uint32(3), info.MinImageCount)
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, info.ImageFormat)
	assert.Equal(t, vk.SharingModeExclusive, info.ImageSharingMode)

	sc := vr.context.Swapchain
	assert.Equal(t, uint32(3), sc.ImageCount)
	assert.Len(t, sc.Views, 3)
	assert.Len(t, sc.Framebuffers, 3)
	assert.Len(t, vr.context.GraphicsCommandBuffers, 3)
	assert.Len(t, vr.context.RenderFinishedSemaphores, 3)
	assert.Len(t, vr.context.ImagesInFlight, 3)
	assert.Len(t, vr.context.ImageAvailableSemaphores, 2)
	assert.Len(t, vr.context.InFlightFences, 2)
	assert.NotNil(t, sc.DepthAttachment)
}

func TestSwapchainHonorsPreferredPresentMode(t *testing.T) {
	device := suitableDevice("gpu")
	fake := newFakeDriver(device)
	support := fake.support[device]
	support.PresentModes = []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate}
	fake.support[device] = support

	newTestRenderer(t, fake, func(r *config.Renderer) { r.PresentMode = "immediate" })
	assert.Equal(t, vk.PresentModeImmediate, fake.swapchains[0].PresentMode)

	// mailbox is not offered, so the backend settles for FIFO
	fake = newFakeDriver(device)
	fake.support[device] = support
	newTestRenderer(t, fake, func(r *config.Renderer) { r.PresentMode = "mailbox" })
	assert.Equal(t, vk.PresentModeFifo, fake.swapchains[0].PresentMode)
}

func TestSwapchainConcurrentSharingAcrossFamilies(t *testing.T) {
	device := suitableDevice("split")
	device.QueueFamilies = []QueueFamily{
		{Flags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit), Count: 1},
		{Flags: vk.QueueFlags(vk.QueueTransferBit), Count: 1, SupportsPresent: true},
	}
	fake := newFakeDriver(device)
	newTestRenderer(t, fake)

	info := fake.swapchains[0]
	assert.Equal(t, vk.SharingModeConcurrent, info.ImageSharingMode)
	assert.Equal(t, []uint32{0, 1}, info.PQueueFamilyIndices)
}
