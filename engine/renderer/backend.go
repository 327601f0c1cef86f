package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/koala/engine/platform"
)

var ErrBackendNotImplemented = errors.New("renderer backend not implemented")

// Backend is the capability set every graphics API implementation provides.
//
// BeginFrame returns core.ErrSwapchainBooting or an error wrapping
// core.ErrFrameSkipped when the frame must be skipped; EndFrame must then not
// be called. Any other error, and every EndFrame error, is fatal.
type Backend interface {
	Initialize(appName string, surface platform.SurfaceProvider) error
	// Shutdown releases everything; call it once, after the render loop stopped.
	Shutdown() error
	// Resized only records the new size, recreation happens on the next BeginFrame.
	Resized(width, height uint16)
	BeginFrame(deltaTime float64) error
	EndFrame(deltaTime float64) error
}

type BackendType uint8

const (
	Vulkan BackendType = iota
	OpenGL
	DirectX
)

func (t BackendType) String() string {
	switch t {
	case Vulkan:
		return "vulkan"
	case OpenGL:
		return "opengl"
	case DirectX:
		return "directx"
	}
	return fmt.Sprintf("backend(%d)", uint8(t))
}

func ParseBackendType(name string) (BackendType, error) {
	for _, t := range []BackendType{Vulkan, OpenGL, DirectX} {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown renderer backend %q", name)
}
