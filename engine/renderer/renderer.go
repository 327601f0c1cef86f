package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/engine/platform"
	"github.com/spaghettifunk/koala/engine/renderer/vulkan"
)

type RenderPacket struct {
	DeltaTime float64
}

// Renderer is the frontend the engine talks to. It owns exactly one backend.
type Renderer struct {
	backend     Backend
	backendType BackendType
	frameNumber uint64
}

func NewRenderer(cfg *config.Renderer) (*Renderer, error) {
	bt, err := ParseBackendType(cfg.Backend)
	if err != nil {
		return nil, err
	}
	var backend Backend
	switch bt {
	case Vulkan:
		backend = vulkan.New(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBackendNotImplemented, bt)
	}
	return &Renderer{backend: backend, backendType: bt}, nil
}

func (r *Renderer) Initialize(appName string, surface platform.SurfaceProvider) error {
	if err := r.backend.Initialize(appName, surface); err != nil {
		core.LogError("Renderer backend %s failed to initialize. Shutting down.", r.backendType)
		return err
	}
	core.LogInfo("Renderer backend %s initialized.", r.backendType)
	return nil
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

func (r *Renderer) OnResized(width, height uint16) {
	r.backend.Resized(width, height)
}

// DrawFrame returns an error only when the render loop has to stop.
func (r *Renderer) DrawFrame(packet *RenderPacket) error {
	if err := r.backend.BeginFrame(packet.DeltaTime); err != nil {
		switch {
		case errors.Is(err, core.ErrSwapchainBooting):
			core.LogDebug("frame skipped: %s", err)
			return nil
		case errors.Is(err, core.ErrFrameSkipped):
			core.LogWarn("%s", err)
			return nil
		default:
			core.LogError("RendererBeginFrame failed: %s", err)
			return err
		}
	}
	if err := r.backend.EndFrame(packet.DeltaTime); err != nil {
		core.LogError("RendererEndFrame failed. Application shutting down...")
		return err
	}
	r.frameNumber++
	return nil
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}
