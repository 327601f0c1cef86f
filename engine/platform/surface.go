package platform

import (
	"errors"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

var ErrNoWindow = errors.New("platform window has not been created")

// SurfaceProvider is what a graphics backend needs from the windowing layer.
type SurfaceProvider interface {
	// CreateSurface returns the native surface handle for the given API instance.
	CreateSurface(instance interface{}) (uintptr, error)
	RequiredExtensions() []string
	FramebufferSize() (uint32, uint32)
	// InstanceProcAddr is the loader entry point for the graphics API.
	InstanceProcAddr() unsafe.Pointer
}

var _ SurfaceProvider = (*Platform)(nil)

func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	if p.Window == nil {
		return 0, ErrNoWindow
	}
	return p.Window.CreateWindowSurface(instance, nil)
}

func (p *Platform) RequiredExtensions() []string {
	if p.Window == nil {
		return nil
	}
	return p.Window.GetRequiredInstanceExtensions()
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	if p.Window == nil {
		return 0, 0
	}
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}

func (p *Platform) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}
