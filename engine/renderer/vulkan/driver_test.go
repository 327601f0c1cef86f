package vulkan

import (
	"fmt"
	"io"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/stretchr/testify/require"
)

func init() {
	core.SetLogOutput(io.Discard)
}

type acquireStep struct {
	index  uint32
	result vk.Result
}

type presentCall struct {
	imageIndex uint32
	wait       *VulkanSemaphore
}

// fakeDriver stands in for the GPU. Handles are nil, so identity is tracked
// through the wrapper pointers the backend hands over.
type fakeDriver struct {
	devices       []*PhysicalDeviceInfo
	support       map[*PhysicalDeviceInfo]VulkanSwapchainSupportInfo
	depthFeatures vk.FormatFeatureFlags
	// images returned per swapchain; zero means the requested minimum.
	imageCount uint32

	acquireScript  []acquireStep
	waitResults    []vk.Result
	presentResults []vk.Result
	submitResult   vk.Result

	deviceInfo      *vk.DeviceCreateInfo
	swapchains      []vk.SwapchainCreateInfo
	currentImages   uint32
	nextImage       uint32
	lastAcquired    uint32
	acquireSignals  []*VulkanSemaphore
	viewports       []vk.Viewport
	scissors        []vk.Rect2D
	renderPasses    int
	submits         []Submission
	presents        []presentCall
	waits           []*VulkanFence
	waitIdle        int
	destroyedDevice bool

	pending           map[*VulkanFence]bool
	lastFenceForImage map[uint32]*VulkanFence
	violations        []string
}

var _ Driver = (*fakeDriver)(nil)

func newFakeDriver(devices ...*PhysicalDeviceInfo) *fakeDriver {
	f := &fakeDriver{
		devices:           devices,
		support:           make(map[*PhysicalDeviceInfo]VulkanSwapchainSupportInfo),
		depthFeatures:     vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit),
		pending:           make(map[*VulkanFence]bool),
		lastFenceForImage: make(map[uint32]*VulkanFence),
	}
	for _, d := range devices {
		f.support[d] = defaultSupport()
	}
	return f
}

func suitableDevice(name string) *PhysicalDeviceInfo {
	return &PhysicalDeviceInfo{
		Name:              name,
		Type:              vk.PhysicalDeviceTypeDiscreteGpu,
		SamplerAnisotropy: true,
		QueueFamilies: []QueueFamily{
			{Flags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit), Count: 4, SupportsPresent: true},
		},
		Extensions: []string{vk.KhrSwapchainExtensionName},
		MemoryHeaps: []MemoryHeap{
			{Size: 8 << 30, DeviceLocal: true},
		},
	}
}

func defaultSupport() VulkanSwapchainSupportInfo {
	return VulkanSwapchainSupportInfo{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
		},
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []vk.PresentMode{vk.PresentModeFifo},
	}
}

func testRendererConfig() *config.Renderer {
	cfg := config.Default().Renderer
	return &cfg
}

// newTestRenderer runs the device level setup against fake at 800x600.
func newTestRenderer(t *testing.T, fake *fakeDriver, mutate ...func(*config.Renderer)) *VulkanRenderer {
	t.Helper()
	cfg := testRendererConfig()
	for _, m := range mutate {
		m(cfg)
	}
	vr := New(cfg)
	require.NoError(t, vr.setup(fake, 800, 600))
	return vr
}

func (f *fakeDriver) PhysicalDevices(vk.Surface) ([]*PhysicalDeviceInfo, error) {
	return f.devices, nil
}

func (f *fakeDriver) QuerySwapchainSupport(device *PhysicalDeviceInfo, _ vk.Surface) (VulkanSwapchainSupportInfo, error) {
	support, ok := f.support[device]
	if !ok {
		return VulkanSwapchainSupportInfo{}, fmt.Errorf("no surface support for %s", device.Name)
	}
	return support, nil
}

func (f *fakeDriver) FormatProperties(*PhysicalDeviceInfo, vk.Format) vk.FormatProperties {
	return vk.FormatProperties{OptimalTilingFeatures: f.depthFeatures}
}

func (f *fakeDriver) CreateDevice(_ *PhysicalDeviceInfo, info *vk.DeviceCreateInfo) (vk.Device, error) {
	f.deviceInfo = info
	return nil, nil
}

func (f *fakeDriver) DestroyDevice() { f.destroyedDevice = true }
func (f *fakeDriver) DeviceQueue(uint32, uint32) vk.Queue { return nil }

func (f *fakeDriver) DeviceWaitIdle() vk.Result {
	f.waitIdle++
	// An idle device has retired every submission.
	clear(f.pending)
	return vk.Success
}

func (f *fakeDriver) CreateCommandPool(*vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	return nil, nil
}
func (f *fakeDriver) DestroyCommandPool(vk.CommandPool) {}

func (f *fakeDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	f.swapchains = append(f.swapchains, *info)
	f.currentImages = info.MinImageCount
	if f.imageCount > 0 {
		f.currentImages = f.imageCount
	}
	f.nextImage = 0
	return nil, nil
}

func (f *fakeDriver) SwapchainImages(vk.Swapchain) ([]vk.Image, error) {
	return make([]vk.Image, f.currentImages), nil
}

func (f *fakeDriver) DestroySwapchain(vk.Swapchain) {}

func (f *fakeDriver) AcquireNextImage(_ vk.Swapchain, _ uint64, signal *VulkanSemaphore) (uint32, vk.Result) {
	f.acquireSignals = append(f.acquireSignals, signal)
	if len(f.acquireScript) > 0 {
		step := f.acquireScript[0]
		f.acquireScript = f.acquireScript[1:]
		f.lastAcquired = step.index
		return step.index, step.result
	}
	idx := f.nextImage % f.currentImages
	f.nextImage++
	f.lastAcquired = idx
	return idx, vk.Success
}

func (f *fakeDriver) QueuePresent(_ vk.Queue, _ vk.Swapchain, imageIndex uint32, wait *VulkanSemaphore) vk.Result {
	f.presents = append(f.presents, presentCall{imageIndex: imageIndex, wait: wait})
	if len(f.presentResults) > 0 {
		res := f.presentResults[0]
		f.presentResults = f.presentResults[1:]
		return res
	}
	return vk.Success
}

func (f *fakeDriver) CreateImage(*vk.ImageCreateInfo, vk.MemoryPropertyFlags) (vk.Image, vk.DeviceMemory, error) {
	return nil, nil, nil
}
func (f *fakeDriver) DestroyImage(vk.Image, vk.DeviceMemory) {}
func (f *fakeDriver) CreateImageView(*vk.ImageViewCreateInfo) (vk.ImageView, error) {
	return nil, nil
}
func (f *fakeDriver) DestroyImageView(vk.ImageView) {}

func (f *fakeDriver) CreateRenderPass(*vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	return nil, nil
}
func (f *fakeDriver) DestroyRenderPass(vk.RenderPass) {}
func (f *fakeDriver) CreateFramebuffer(*vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	return nil, nil
}
func (f *fakeDriver) DestroyFramebuffer(vk.Framebuffer) {}

func (f *fakeDriver) AllocateCommandBuffer(vk.CommandPool, vk.CommandBufferLevel) (vk.CommandBuffer, error) {
	return nil, nil
}
func (f *fakeDriver) FreeCommandBuffer(vk.CommandPool, vk.CommandBuffer) {}
func (f *fakeDriver) BeginCommandBuffer(vk.CommandBuffer, *vk.CommandBufferBeginInfo) vk.Result {
	return vk.Success
}
func (f *fakeDriver) EndCommandBuffer(vk.CommandBuffer) vk.Result   { return vk.Success }
func (f *fakeDriver) ResetCommandBuffer(vk.CommandBuffer) vk.Result { return vk.Success }

func (f *fakeDriver) CmdSetViewport(_ vk.CommandBuffer, viewport vk.Viewport) {
	f.viewports = append(f.viewports, viewport)
}

func (f *fakeDriver) CmdSetScissor(_ vk.CommandBuffer, scissor vk.Rect2D) {
	f.scissors = append(f.scissors, scissor)
}

func (f *fakeDriver) CmdBeginRenderPass(vk.CommandBuffer, *vk.RenderPassBeginInfo) { f.renderPasses++ }
func (f *fakeDriver) CmdEndRenderPass(vk.CommandBuffer)                            {}

func (f *fakeDriver) CreateSemaphore() (vk.Semaphore, error) { return nil, nil }
func (f *fakeDriver) DestroySemaphore(vk.Semaphore)          {}
func (f *fakeDriver) CreateFence(bool) (vk.Fence, error)     { return nil, nil }
func (f *fakeDriver) DestroyFence(vk.Fence)                  {}

func (f *fakeDriver) WaitForFence(fence *VulkanFence, _ uint64) vk.Result {
	f.waits = append(f.waits, fence)
	res := vk.Success
	if len(f.waitResults) > 0 {
		res = f.waitResults[0]
		f.waitResults = f.waitResults[1:]
	}
	if res == vk.Success {
		delete(f.pending, fence)
	}
	return res
}

func (f *fakeDriver) ResetFence(*VulkanFence) vk.Result { return vk.Success }

func (f *fakeDriver) QueueSubmit(_ vk.Queue, submit Submission) vk.Result {
	if prev := f.lastFenceForImage[f.lastAcquired]; prev != nil && f.pending[prev] {
		f.violations = append(f.violations, fmt.Sprintf("image %d submitted while its previous fence was pending", f.lastAcquired))
	}
	if f.pending[submit.Fence] {
		f.violations = append(f.violations, "fence submitted while still pending")
	}
	f.submits = append(f.submits, submit)
	if f.submitResult != vk.Success {
		return f.submitResult
	}
	f.pending[submit.Fence] = true
	f.lastFenceForImage[f.lastAcquired] = submit.Fence
	return vk.Success
}
