package renderer

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/engine/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	beginErr  error
	endErr    error
	begins    int
	ends      int
	resizes   [][2]uint16
	shutdowns int
}

func (f *fakeBackend) Initialize(string, platform.SurfaceProvider) error { return nil }
func (f *fakeBackend) Shutdown() error                                  { f.shutdowns++; return nil }
func (f *fakeBackend) Resized(w, h uint16)                              { f.resizes = append(f.resizes, [2]uint16{w, h}) }
func (f *fakeBackend) BeginFrame(float64) error                         { f.begins++; return f.beginErr }
func (f *fakeBackend) EndFrame(float64) error                           { f.ends++; return f.endErr }

func init() {
	core.SetLogOutput(io.Discard)
}

func TestDrawFrameSkipsEndWhenBeginSkips(t *testing.T) {
	b := &fakeBackend{beginErr: core.ErrSwapchainBooting}
	r := &Renderer{backend: b}

	require.NoError(t, r.DrawFrame(&RenderPacket{DeltaTime: 0.016}))
	assert.Equal(t, 1, b.begins)
	assert.Zero(t, b.ends)
	assert.Zero(t, r.FrameNumber())

	// a frame local failure also only skips the frame
	b.beginErr = fmt.Errorf("%w: fence timed out", core.ErrFrameSkipped)
	require.NoError(t, r.DrawFrame(&RenderPacket{}))
	assert.Zero(t, b.ends)
}

func TestDrawFrameBeginFailureIsFatal(t *testing.T) {
	b := &fakeBackend{beginErr: core.ErrDeviceLost}
	r := &Renderer{backend: b}
	assert.ErrorIs(t, r.DrawFrame(&RenderPacket{}), core.ErrDeviceLost)
	assert.Zero(t, b.ends)

	b.beginErr = errors.New("swapchain recreation failed")
	assert.Error(t, r.DrawFrame(&RenderPacket{}))
	assert.Zero(t, b.ends)
}

func TestDrawFrameEndFailureIsFatal(t *testing.T) {
	endErr := errors.New("submit failed")
	b := &fakeBackend{endErr: endErr}
	r := &Renderer{backend: b}
	assert.ErrorIs(t, r.DrawFrame(&RenderPacket{}), endErr)
	assert.Zero(t, r.FrameNumber())

	b.endErr = nil
	require.NoError(t, r.DrawFrame(&RenderPacket{}))
	assert.Equal(t, uint64(1), r.FrameNumber())
}

func TestOnResizedForwards(t *testing.T) {
	b := &fakeBackend{}
	r := &Renderer{backend: b}
	r.OnResized(640, 480)
	assert.Equal(t, [][2]uint16{{640, 480}}, b.resizes)
}

func TestNewRendererBackendSelection(t *testing.T) {
	cfg := config.Default().Renderer

	cfg.Backend = "opengl"
	_, err := NewRenderer(&cfg)
	assert.ErrorIs(t, err, ErrBackendNotImplemented)

	cfg.Backend = "directx"
	_, err = NewRenderer(&cfg)
	assert.ErrorIs(t, err, ErrBackendNotImplemented)

	cfg.Backend = "metal"
	_, err = NewRenderer(&cfg)
	assert.Error(t, err)

	cfg.Backend = "vulkan"
	r, err := NewRenderer(&cfg)
	require.NoError(t, err)
	assert.Equal(t, Vulkan, r.backendType)
}
