package vulkan

import (
	"errors"
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/core"
)

// FrameState tracks where the backend is within one frame.
type FrameState uint8

const (
	FrameStateIdle FrameState = iota
	FrameStateAcquiring
	FrameStateRecording
	FrameStateSubmitted
	FrameStatePresenting
	FrameStateRecreating
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "idle"
	case FrameStateAcquiring:
		return "acquiring"
	case FrameStateRecording:
		return "recording"
	case FrameStateSubmitted:
		return "submitted"
	case FrameStatePresenting:
		return "presenting"
	case FrameStateRecreating:
		return "recreating"
	}
	return "unknown"
}

var (
	ErrFrameNotStarted = errors.New("end frame called without a successful begin frame")
	ErrFrameInProgress = errors.New("begin frame called while a frame is being recorded")
	ErrNotInitialized  = errors.New("vulkan backend is not initialized")
)

// beginFrame waits for the frame slot, handles pending resizes, acquires an
// image and opens the main render pass on its command buffer.
func (vr *VulkanRenderer) beginFrame() error {
	context := vr.context
	if context.driver == nil || context.Swapchain == nil {
		return ErrNotInitialized
	}

	switch context.State {
	case FrameStateIdle:
	case FrameStateRecording:
		return ErrFrameInProgress
	default:
		// Recreation in progress or an earlier frame aborted mid way.
		core.LogInfo("Frame state is %s, booting.", context.State)
		return core.ErrSwapchainBooting
	}

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	if err := context.InFlightFences[context.CurrentFrame].Wait(context, context.FenceTimeoutNs); err != nil {
		return err
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if context.FramebufferSizeGeneration != context.FramebufferSizeLastGeneration {
		recreated, err := vr.recreateSwapchain()
		if err != nil {
			return err
		}
		if recreated {
			core.LogInfo("Resized, booting.")
		}
		return core.ErrSwapchainBooting
	}

	// Acquire the next image from the swap chain. Pass along the semaphore that should signaled when this completes.
	// This same semaphore will later be waited on by the queue submission to ensure this image is available.
	context.State = FrameStateAcquiring
	imageIndex, result := context.Swapchain.AcquireNextImageIndex(context, math.MaxUint64, context.ImageAvailableSemaphores[context.CurrentFrame])
	switch result {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		// Trigger swapchain recreation on the next frame, then boot out of the render loop.
		context.State = FrameStateIdle
		context.FramebufferSizeGeneration++
		core.LogDebug("Swapchain out of date on acquire, booting.")
		return core.ErrSwapchainBooting
	case vk.ErrorDeviceLost:
		context.State = FrameStateIdle
		return ErrDeviceLost
	default:
		context.State = FrameStateIdle
		return fmt.Errorf("failed to acquire swapchain image: %s", VulkanResultString(result, true))
	}
	if imageIndex >= context.Swapchain.ImageCount {
		context.State = FrameStateIdle
		return fmt.Errorf("acquired image index %d is out of range for %d images", imageIndex, context.Swapchain.ImageCount)
	}

	// Make sure the previous frame is not using this image (i.e. its fence is being waited on)
	if fence := context.ImagesInFlight[imageIndex]; fence != nil {
		if err := fence.Wait(context, context.FenceTimeoutNs); err != nil {
			context.State = FrameStateIdle
			return imageFenceError(imageIndex, err)
		}
	}
	// Mark the image fence as in-use by this frame.
	context.ImagesInFlight[imageIndex] = context.InFlightFences[context.CurrentFrame]
	context.ImageIndex = imageIndex

	// Begin recording commands.
	commandBuffer := context.GraphicsCommandBuffers[imageIndex]
	if err := commandBuffer.Reset(context); err != nil {
		context.State = FrameStateIdle
		return err
	}
	if err := commandBuffer.Begin(context, false, false, false); err != nil {
		context.State = FrameStateIdle
		return err
	}

	// Dynamic state. The viewport is flipped so +Y points up.
	viewport := vk.Viewport{
		X:        0.0,
		Y:        float32(context.FramebufferHeight),
		Width:    float32(context.FramebufferWidth),
		Height:   -float32(context.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}

	// Scissor
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  context.FramebufferWidth,
			Height: context.FramebufferHeight,
		},
	}

	context.driver.CmdSetViewport(commandBuffer.Handle, viewport)
	context.driver.CmdSetScissor(commandBuffer.Handle, scissor)

	context.MainRenderpass.W = float32(context.FramebufferWidth)
	context.MainRenderpass.H = float32(context.FramebufferHeight)

	// Begin the render pass.
	context.MainRenderpass.Begin(context, commandBuffer, context.Swapchain.Framebuffers[imageIndex].Handle)
	context.State = FrameStateRecording
	return nil
}

// imageFenceError turns a failed wait on an acquired image's fence into a
// fatal error. The image is held and the slot's image available semaphore is
// signaled, so skipping would acquire again with a signaled semaphore.
func imageFenceError(imageIndex uint32, err error) error {
	switch {
	case errors.Is(err, ErrDeviceLost):
		return err
	case errors.Is(err, ErrFenceTimeout):
		return fmt.Errorf("image %d is still in flight: %w", imageIndex, ErrFenceTimeout)
	}
	return fmt.Errorf("waiting for image %d to retire: %v", imageIndex, err)
}

// endFrame closes the command buffer, submits it and presents the image.
func (vr *VulkanRenderer) endFrame() error {
	context := vr.context
	if context.State != FrameStateRecording {
		return ErrFrameNotStarted
	}

	commandBuffer := context.GraphicsCommandBuffers[context.ImageIndex]

	// End renderpass
	context.MainRenderpass.End(context, commandBuffer)
	if err := commandBuffer.End(context); err != nil {
		context.State = FrameStateIdle
		return err
	}

	// Reset the fence for use on the next frame
	fence := context.InFlightFences[context.CurrentFrame]
	if err := fence.Reset(context); err != nil {
		context.State = FrameStateIdle
		return err
	}

	// The wait stage prevents subsequent colour attachment writes from executing
	// until the image available semaphore signals.
	result := context.driver.QueueSubmit(context.Device.GraphicsQueue, Submission{
		CommandBuffer: commandBuffer,
		Wait:          context.ImageAvailableSemaphores[context.CurrentFrame],
		WaitStage:     vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		Signal:        context.RenderFinishedSemaphores[context.ImageIndex],
		Fence:         fence,
	})
	if result != vk.Success {
		context.State = FrameStateIdle
		if result == vk.ErrorDeviceLost {
			return ErrDeviceLost
		}
		err := fmt.Errorf("vkQueueSubmit failed with result: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return err
	}
	commandBuffer.UpdateSubmitted()
	context.State = FrameStateSubmitted

	// Give the image back to the swapchain.
	context.State = FrameStatePresenting
	result = context.Swapchain.Present(
		context,
		context.Device.PresentQueue,
		context.RenderFinishedSemaphores[context.ImageIndex],
		context.ImageIndex)
	switch result {
	case vk.Success:
	case vk.ErrorOutOfDate, vk.Suboptimal:
		// Recreation is driven by acquire results and resize events only.
		core.LogDebug("Present returned %s.", VulkanResultString(result, false))
	case vk.ErrorDeviceLost:
		context.State = FrameStateIdle
		return ErrDeviceLost
	default:
		context.State = FrameStateIdle
		err := fmt.Errorf("failed to present swap chain image: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return err
	}

	// Increment (and loop) the index.
	context.CurrentFrame = (context.CurrentFrame + 1) % uint32(context.MaxFramesInFlight)
	context.State = FrameStateIdle
	return nil
}

// recreateSwapchain rebuilds the swapchain and everything sized by it. It
// reports false without error when the window has no area.
func (vr *VulkanRenderer) recreateSwapchain() (bool, error) {
	context := vr.context

	// If already being recreated, do not try again.
	if context.RecreatingSwapchain {
		core.LogDebug("recreate_swapchain called when already recreating. Booting.")
		return false, nil
	}

	// Detect if the window is too small to be drawn to
	if vr.cachedFramebufferWidth == 0 || vr.cachedFramebufferHeight == 0 {
		core.LogDebug("recreate_swapchain called when window is < 1 in a dimension. Booting.")
		return false, nil
	}

	// Mark as recreating if the dimensions are valid.
	context.RecreatingSwapchain = true
	context.State = FrameStateRecreating
	defer func() {
		context.RecreatingSwapchain = false
		context.State = FrameStateIdle
	}()

	// Wait for any operations to complete.
	if result := context.driver.DeviceWaitIdle(); result != vk.Success {
		if result == vk.ErrorDeviceLost {
			return false, ErrDeviceLost
		}
		return false, fmt.Errorf("vkDeviceWaitIdle failed: '%s'", VulkanResultString(result, true))
	}

	// Clear these out just in case.
	clear(context.ImagesInFlight)

	// Requery support
	if err := DeviceQuerySwapchainSupport(context); err != nil {
		return false, err
	}
	if !DeviceDetectDepthFormat(context) {
		return false, ErrNoDepthFormat
	}

	// cleanup swapchain
	vr.destroyFramebuffers()
	vr.freeCommandBuffers()

	sc, err := context.Swapchain.SwapchainRecreate(context, vr.cachedFramebufferWidth, vr.cachedFramebufferHeight)
	if err != nil {
		return false, err
	}
	context.Swapchain = sc

	// The surface may have clamped the request, so the negotiated extent wins.
	context.FramebufferWidth = sc.Extent.Width
	context.FramebufferHeight = sc.Extent.Height
	context.MainRenderpass.X = 0
	context.MainRenderpass.Y = 0
	context.MainRenderpass.W = float32(context.FramebufferWidth)
	context.MainRenderpass.H = float32(context.FramebufferHeight)

	// Update framebuffer size generation.
	context.FramebufferSizeLastGeneration = context.FramebufferSizeGeneration

	if err := vr.regenerateFramebuffers(); err != nil {
		return false, err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return false, err
	}
	if err := vr.createImageSyncObjects(); err != nil {
		return false, err
	}
	return true, nil
}
