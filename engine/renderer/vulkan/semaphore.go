package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/koala/engine/core"
)

type VulkanSemaphore struct {
	Handle vk.Semaphore
}

func NewSemaphore(context *VulkanContext) (*VulkanSemaphore, error) {
	handle, err := context.driver.CreateSemaphore()
	if err != nil {
		core.LogError("failed to create semaphore: %s", err)
		return nil, err
	}
	return &VulkanSemaphore{Handle: handle}, nil
}

func (vs *VulkanSemaphore) Destroy(context *VulkanContext) {
	if vs.Handle != vk.NullSemaphore {
		context.driver.DestroySemaphore(vs.Handle)
		vs.Handle = vk.NullSemaphore
	}
}

func createSemaphores(context *VulkanContext, count int) ([]*VulkanSemaphore, error) {
	semaphores := make([]*VulkanSemaphore, 0, count)
	for i := 0; i < count; i++ {
		s, err := NewSemaphore(context)
		if err != nil {
			destroySemaphores(context, semaphores)
			return nil, err
		}
		semaphores = append(semaphores, s)
	}
	return semaphores, nil
}

func destroySemaphores(context *VulkanContext, semaphores []*VulkanSemaphore) {
	for _, s := range semaphores {
		if s != nil {
			s.Destroy(context)
		}
	}
}
