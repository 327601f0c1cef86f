package vulkan

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/engine/platform"
)

var ErrAlreadyInitialized = errors.New("vulkan backend already initialized")

type VulkanRenderer struct {
	context                 *VulkanContext
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	validation        bool
	discreteGPU       bool
	requireCompute    bool
	samplerAnisotropy bool
	clearColor        [4]float32

	initialized bool
	shutdown    bool
}

// New prepares a backend from configuration. Nothing touches the GPU until
// Initialize.
func New(cfg *config.Renderer) *VulkanRenderer {
	framesInFlight := cfg.MaxFramesInFlight
	if framesInFlight == 0 {
		framesInFlight = DEFAULT_MAX_FRAMES_IN_FLIGHT
	}

	var fenceTimeout uint64 = math.MaxUint64
	if cfg.FenceTimeoutMS > 0 {
		fenceTimeout = uint64(time.Duration(cfg.FenceTimeoutMS) * time.Millisecond)
	}

	clearColor := [4]float32{0.0, 0.0, 0.2, 1.0}
	if len(cfg.ClearColor) == 4 {
		copy(clearColor[:], cfg.ClearColor)
	}

	return &VulkanRenderer{
		context: &VulkanContext{
			Allocator:            nil,
			MaxFramesInFlight:    framesInFlight,
			FenceTimeoutNs:       fenceTimeout,
			PreferredPresentMode: parsePresentMode(cfg.PresentMode),
		},
		validation:        cfg.Validation,
		discreteGPU:       cfg.DiscreteGPU,
		requireCompute:    cfg.RequireCompute,
		samplerAnisotropy: cfg.SamplerAnisotropy,
		clearColor:        clearColor,
	}
}

func (vr *VulkanRenderer) requirements() *VulkanPhysicalDeviceRequirements {
	requirements := &VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		Compute:              vr.requireCompute,
		SamplerAnisotropy:    vr.samplerAnisotropy,
		DiscreteGPU:          vr.discreteGPU,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}
	return requirements
}

func (vr *VulkanRenderer) Initialize(appName string, surface platform.SurfaceProvider) error {
	if vr.initialized {
		return ErrAlreadyInitialized
	}

	procAddr := surface.InstanceProcAddr()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	if err := vr.createInstance(appName, surface.RequiredExtensions()); err != nil {
		return err
	}

	// Debugger
	if vr.validation {
		if err := vr.createDebugCallback(); err != nil {
			return err
		}
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surfacePtr, err := surface.CreateSurface(vr.context.Instance)
	if err != nil {
		err = fmt.Errorf("failed to create platform surface: %w", err)
		core.LogError(err.Error())
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surfacePtr)
	core.LogDebug("Vulkan surface created.")

	width, height := surface.FramebufferSize()
	return vr.setup(newVkDriver(vr.context.Instance, vr.context.Allocator), width, height)
}

func (vr *VulkanRenderer) createInstance(appName string, platformExtensions []string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString(ENGINE_NAME),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{vk.KhrSurfaceExtensionName} // Generic surface extension
	for _, name := range platformExtensions {
		if !slices.Contains(requiredExtensions, name) {
			requiredExtensions = append(requiredExtensions, name)
		}
	}

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	// Validation layers.
	var validationLayers []string
	if vr.validation {
		if vr.validationLayerAvailable() {
			validationLayers = []string{VALIDATION_LAYER_NAME}
			requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		} else {
			core.LogWarn("Required validation layer is missing: %s. Continuing without validation.", VALIDATION_LAYER_NAME)
			vr.validation = false
		}
	}

	core.LogInfo("Required extensions:")
	for _, name := range requiredExtensions {
		core.LogInfo(name)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(validationLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(validationLayers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}

	core.LogInfo("Vulkan Instance created.")
	return nil
}

func (vr *VulkanRenderer) validationLayerAvailable() bool {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}

	core.LogInfo("Searching for layer: %s...", VALIDATION_LAYER_NAME)
	for i := range layers {
		layers[i].Deref()
		name := vk.ToString(layers[i].LayerName[:])
		core.LogDebug("Available Layer: `%s`", name)
		if name == VALIDATION_LAYER_NAME {
			core.LogInfo("Found.")
			return true
		}
	}
	return false
}

func (vr *VulkanRenderer) createDebugCallback() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}

	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, vr.context.Allocator, &dbg)); err != nil {
		core.LogError("vk.CreateDebugReportCallback failed with %s", err)
		return err
	}
	vr.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

// setup builds every device level object on top of driver. The instance and
// surface, if any, must already exist.
func (vr *VulkanRenderer) setup(driver Driver, width, height uint32) error {
	context := vr.context
	context.driver = driver

	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height

	// Device creation
	if err := DeviceCreate(context, vr.requirements()); err != nil {
		core.LogError("Failed to create device: %s", err)
		return err
	}

	// Swapchain
	sc, err := SwapchainCreate(context, width, height)
	if err != nil {
		return err
	}
	context.Swapchain = sc
	context.FramebufferWidth = sc.Extent.Width
	context.FramebufferHeight = sc.Extent.Height

	rp, err := RenderpassCreate(
		context,
		0, 0, float32(context.FramebufferWidth), float32(context.FramebufferHeight),
		vr.clearColor[0], vr.clearColor[1], vr.clearColor[2], vr.clearColor[3],
		1.0,
		0)
	if err != nil {
		return err
	}
	context.MainRenderpass = rp

	// Swapchain framebuffers.
	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}

	// Create command buffers.
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}

	// Create sync objects.
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	context.FramebufferSizeLastGeneration = context.FramebufferSizeGeneration
	context.State = FrameStateIdle
	vr.initialized = true

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

// Shutdown destroys everything in the opposite order of creation. It copes
// with a partially initialized backend and is a no-op the second time.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.shutdown {
		core.LogWarn("Vulkan renderer shutdown called more than once.")
		return nil
	}
	vr.shutdown = true
	vr.teardown()
	vr.destroyInstance()
	vr.initialized = false
	return nil
}

func (vr *VulkanRenderer) teardown() {
	context := vr.context
	if context.driver == nil {
		return
	}
	if res := context.driver.DeviceWaitIdle(); !VulkanResultIsSuccess(res) {
		core.LogWarn("vkDeviceWaitIdle failed during shutdown: %s", VulkanResultString(res, false))
	}

	// Sync objects
	destroySemaphores(context, context.ImageAvailableSemaphores)
	destroySemaphores(context, context.RenderFinishedSemaphores)
	for _, fence := range context.InFlightFences {
		if fence != nil {
			fence.Destroy(context)
		}
	}
	context.ImageAvailableSemaphores = nil
	context.RenderFinishedSemaphores = nil
	context.InFlightFences = nil
	context.ImagesInFlight = nil

	// Command buffers
	vr.freeCommandBuffers()

	// Destroy framebuffers
	vr.destroyFramebuffers()

	// Renderpass
	if context.MainRenderpass != nil {
		context.MainRenderpass.Destroy(context)
		context.MainRenderpass = nil
	}

	// Swapchain
	if context.Swapchain != nil {
		context.Swapchain.SwapchainDestroy(context)
		context.Swapchain = nil
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(context)
	context.State = FrameStateIdle
}

func (vr *VulkanRenderer) destroyInstance() {
	context := vr.context
	if context.Instance == nil {
		return
	}

	core.LogDebug("Destroying Vulkan surface...")
	if context.Surface != vk.NullSurface {
		vk.DestroySurface(context.Instance, context.Surface, context.Allocator)
		context.Surface = vk.NullSurface
	}

	if context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(context.Instance, context.debugMessenger, context.Allocator)
		context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(context.Instance, context.Allocator)
	context.Instance = nil
}

// Resized records the new framebuffer size. The swapchain is rebuilt at the
// start of the next frame.
func (vr *VulkanRenderer) Resized(width, height uint16) {
	// Update the "framebuffer size generation", a counter which indicates when the
	// framebuffer size has been updated.
	vr.cachedFramebufferWidth = uint32(width)
	vr.cachedFramebufferHeight = uint32(height)
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
}

// State reports where the backend is within the current frame.
func (vr *VulkanRenderer) State() FrameState {
	return vr.context.State
}

func (vr *VulkanRenderer) BeginFrame(deltaTime float64) error {
	return vr.beginFrame()
}

func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	return vr.endFrame()
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	context := vr.context
	context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, context.Swapchain.ImageCount)
	for i := range context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		context.GraphicsCommandBuffers[i] = cb
	}

	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) freeCommandBuffers() {
	context := vr.context
	if context.Device == nil {
		return
	}
	for _, cb := range context.GraphicsCommandBuffers {
		if cb != nil {
			cb.Free(context, context.Device.GraphicsCommandPool)
		}
	}
	context.GraphicsCommandBuffers = nil
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	context := vr.context
	swapchain := context.Swapchain
	swapchain.Framebuffers = make([]*VulkanFramebuffer, swapchain.ImageCount)
	for i := range swapchain.Framebuffers {
		attachments := []vk.ImageView{
			swapchain.Views[i],
			swapchain.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(context, context.MainRenderpass, context.FramebufferWidth, context.FramebufferHeight, attachments)
		if err != nil {
			core.LogError("failed to execute framebuffer create function")
			return err
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func (vr *VulkanRenderer) destroyFramebuffers() {
	swapchain := vr.context.Swapchain
	if swapchain == nil {
		return
	}
	for _, fb := range swapchain.Framebuffers {
		if fb != nil {
			fb.Destroy(vr.context)
		}
	}
	swapchain.Framebuffers = nil
}

// createSyncObjects creates the per frame-slot semaphores and fences, then the
// per image objects.
func (vr *VulkanRenderer) createSyncObjects() error {
	context := vr.context
	frames := int(context.MaxFramesInFlight)

	semaphores, err := createSemaphores(context, frames)
	if err != nil {
		return err
	}
	context.ImageAvailableSemaphores = semaphores

	context.InFlightFences = make([]*VulkanFence, frames)
	for i := range context.InFlightFences {
		// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
		// This will prevent the application from waiting indefinitely for the first frame to render since it
		// cannot be rendered until a frame is "rendered" before it.
		f, err := NewFence(context, true)
		if err != nil {
			return err
		}
		context.InFlightFences[i] = f
	}

	return vr.createImageSyncObjects()
}

// createImageSyncObjects sizes the per image semaphores and fence slots to the
// current swapchain. Callers guarantee the device is idle.
func (vr *VulkanRenderer) createImageSyncObjects() error {
	context := vr.context
	destroySemaphores(context, context.RenderFinishedSemaphores)
	context.RenderFinishedSemaphores = nil

	semaphores, err := createSemaphores(context, int(context.Swapchain.ImageCount))
	if err != nil {
		return err
	}
	context.RenderFinishedSemaphores = semaphores

	// In flight fences should not yet exist at this point, so clear the list. Actual fences are not owned
	// by this list.
	context.ImagesInFlight = make([]*VulkanFence, context.Swapchain.ImageCount)
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
