package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/core"
)

var (
	ErrFenceTimeout = errors.New("fence wait timed out")
	// ErrDeviceLost wraps core.ErrDeviceLost so callers can match either.
	ErrDeviceLost = fmt.Errorf("vulkan: %w", core.ErrDeviceLost)
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	handle, err := context.driver.CreateFence(createSignaled)
	if err != nil {
		core.LogError("failed to create fence: %s", err)
		return nil, err
	}
	return &VulkanFence{
		Handle: handle,
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}, nil
}

func (vf *VulkanFence) Destroy(context *VulkanContext) {
	if vf.Handle != nil {
		context.driver.DestroyFence(vf.Handle)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence signals or timeoutNs elapses. A timeout or a
// recoverable failure wraps core.ErrFrameSkipped; a lost device wraps
// core.ErrDeviceLost.
func (vf *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	result := context.driver.WaitForFence(vf, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return fmt.Errorf("%w: %w", core.ErrFrameSkipped, ErrFenceTimeout)
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return ErrDeviceLost
	case vk.ErrorOutOfHostMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		core.LogError("vk_fence_wait - An unknown error has occurred.")
	}
	return fmt.Errorf("%w: vk_fence_wait returned %s", core.ErrFrameSkipped, VulkanResultString(result, false))
}

func (vf *VulkanFence) Reset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if res := context.driver.ResetFence(vf); res != vk.Success {
		err := fmt.Errorf("failed to reset fence: %s", VulkanResultString(res, false))
		core.LogError(err.Error())
		return err
	}
	vf.IsSignaled = false
	return nil
}
