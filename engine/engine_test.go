package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"unsafe"

	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/engine/platform"
	"github.com/spaghettifunk/koala/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	core.SetLogOutput(io.Discard)
}

// recorder is shared by the fakes so tests can assert on call order.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...interface{}) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type fakeWindow struct {
	rec        *recorder
	startupErr error
	// pump is invoked on every PumpMessages with the tick number. Returning
	// false closes the window.
	pump  func(tick int) bool
	ticks int
}

var _ platform.SurfaceProvider = (*fakeWindow)(nil)

func (w *fakeWindow) Startup(name string, x, y int32, width, height uint32) error {
	w.rec.add("platform.startup %s %dx%d", name, width, height)
	return w.startupErr
}

func (w *fakeWindow) PumpMessages() bool {
	tick := w.ticks
	w.ticks++
	if w.pump == nil {
		return tick < 1
	}
	return w.pump(tick)
}

func (w *fakeWindow) Shutdown() error {
	w.rec.add("platform.shutdown")
	return nil
}

func (w *fakeWindow) CreateSurface(interface{}) (uintptr, error) { return 0, nil }
func (w *fakeWindow) RequiredExtensions() []string                { return nil }
func (w *fakeWindow) FramebufferSize() (uint32, uint32)           { return 0, 0 }
func (w *fakeWindow) InstanceProcAddr() unsafe.Pointer            { return nil }

type fakeRenderer struct {
	rec     *recorder
	initErr error
	drawErr error
	draws   int
	resizes [][2]uint16
}

func (r *fakeRenderer) Initialize(appName string, _ platform.SurfaceProvider) error {
	r.rec.add("renderer.initialize %s", appName)
	return r.initErr
}

func (r *fakeRenderer) DrawFrame(*renderer.RenderPacket) error {
	r.draws++
	return r.drawErr
}

func (r *fakeRenderer) OnResized(width, height uint16) {
	r.resizes = append(r.resizes, [2]uint16{width, height})
}

func (r *fakeRenderer) Shutdown() error {
	r.rec.add("renderer.shutdown")
	return nil
}

type testGame struct {
	*Game
	rec     *recorder
	updates int
	renders int
	// called from FnUpdate, lets tests look at input mid frame
	onUpdate func()
}

func newTestGame(rec *recorder) *testGame {
	cfg := config.Default()
	cfg.Name = "engine test"
	cfg.LimitFrames = false
	tg := &testGame{rec: rec, Game: &Game{ApplicationConfig: cfg}}
	tg.FnInitialize = func() error {
		rec.add("game.initialize")
		return nil
	}
	tg.FnUpdate = func(float64) error {
		tg.updates++
		if tg.onUpdate != nil {
			tg.onUpdate()
		}
		return nil
	}
	tg.FnRender = func(packet *renderer.RenderPacket, delta float64) error {
		tg.renders++
		return nil
	}
	tg.FnOnResize = func(w, h uint32) error {
		rec.add("game.resize %dx%d", w, h)
		return nil
	}
	tg.FnShutdown = func() error {
		rec.add("game.shutdown")
		return nil
	}
	return tg
}

type harness struct {
	rec      *recorder
	game     *testGame
	window   *fakeWindow
	renderer *fakeRenderer
	engine   *Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rec := &recorder{}
	h := &harness{
		rec:      rec,
		game:     newTestGame(rec),
		window:   &fakeWindow{rec: rec},
		renderer: &fakeRenderer{rec: rec},
	}
	events := core.NewEventBus()
	input := core.NewInput(events)
	h.engine = newEngine(h.game.Game, events, input, h.window, h.renderer)
	return h
}

func (h *harness) fireResize(width, height uint16) {
	h.engine.events.Fire(core.EVENT_CODE_RESIZED, nil, core.EventContext{
		Data: core.ResizeEvent{Width: width, Height: height},
	})
}

func TestNewRejectsIncompleteGame(t *testing.T) {
	_, err := New(&Game{FnInitialize: func() error { return nil }})
	assert.ErrorIs(t, err, ErrInvalidGame)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrInvalidGame)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	g := newTestGame(&recorder{})
	g.ApplicationConfig.StartWidth = 0
	_, err := New(g.Game)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewFillsGameHandles(t *testing.T) {
	h := newHarness(t)
	assert.Same(t, h.engine.input, h.game.Input)
	assert.Same(t, h.engine.events, h.game.Events)
	assert.Equal(t, EngineStageBootComplete, h.engine.Stage())
	w, hh := h.engine.GetFramebufferSize()
	assert.Equal(t, uint32(1280), w)
	assert.Equal(t, uint32(720), hh)
}

func TestInitializeOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Initialize())

	assert.Equal(t, []string{
		"platform.startup engine test 1280x720",
		"renderer.initialize engine test",
		"game.initialize",
		"game.resize 1280x720",
	}, h.rec.calls)
	assert.Equal(t, EngineStageInitialized, h.engine.Stage())

	assert.Equal(t, 1, h.engine.events.ListenerCount(core.EVENT_CODE_APPLICATION_QUIT))
	assert.Equal(t, 1, h.engine.events.ListenerCount(core.EVENT_CODE_KEY_PRESSED))
	assert.Equal(t, 1, h.engine.events.ListenerCount(core.EVENT_CODE_KEY_RELEASED))
	assert.Equal(t, 1, h.engine.events.ListenerCount(core.EVENT_CODE_RESIZED))

	assert.ErrorIs(t, h.engine.Initialize(), ErrWrongStage)
}

func TestInitializeRendererFailureReleasesEverything(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("no vulkan")
	h.renderer.initErr = boom

	assert.ErrorIs(t, h.engine.Initialize(), boom)
	assert.Equal(t, []string{
		"platform.startup engine test 1280x720",
		"renderer.initialize engine test",
		"renderer.shutdown",
		"platform.shutdown",
	}, h.rec.calls)
	assert.Equal(t, 0, h.game.updates)

	// nothing left to release
	assert.NoError(t, h.engine.Shutdown())
	assert.ErrorIs(t, h.engine.Run(context.Background()), ErrWrongStage)
}

func TestRunDrivesGameAndRenderer(t *testing.T) {
	h := newHarness(t)
	h.window.pump = func(tick int) bool { return tick < 3 }
	require.NoError(t, h.engine.Initialize())

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 3, h.game.updates)
	assert.Equal(t, 3, h.game.renders)
	assert.Equal(t, 3, h.renderer.draws)
	assert.Equal(t, 4, h.window.ticks)
}

func TestRunAdvancesInputAfterTheFrame(t *testing.T) {
	h := newHarness(t)
	input := h.engine.input
	h.window.pump = func(tick int) bool {
		if tick == 0 {
			input.ProcessKey(core.KEY_W, 0, true)
		}
		return tick < 2
	}
	var sawDown, sawWasDown []bool
	h.game.onUpdate = func() {
		sawDown = append(sawDown, input.IsKeyDown(core.KEY_W))
		sawWasDown = append(sawWasDown, input.WasKeyDown(core.KEY_W))
	}
	require.NoError(t, h.engine.Initialize())
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, []bool{true, true}, sawDown)
	// the previous snapshot only catches up once the first frame ends
	assert.Equal(t, []bool{false, true}, sawWasDown)
}

func TestRunEscapeQuits(t *testing.T) {
	h := newHarness(t)
	input := h.engine.input
	h.window.pump = func(tick int) bool {
		input.ProcessKey(core.KEY_ESCAPE, 0, true)
		return true
	}
	require.NoError(t, h.engine.Initialize())

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 1, h.window.ticks)
	assert.Equal(t, 1, h.renderer.draws)
}

func TestRunWindowCloseQuits(t *testing.T) {
	h := newHarness(t)
	h.window.pump = func(tick int) bool {
		if tick == 1 {
			h.engine.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{Data: core.QuitEvent{}})
		}
		return true
	}
	require.NoError(t, h.engine.Initialize())
	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 2, h.window.ticks)
}

func TestRunContextCancelled(t *testing.T) {
	h := newHarness(t)
	h.window.pump = func(int) bool { return true }
	require.NoError(t, h.engine.Initialize())

	quits := 0
	h.engine.events.Register(core.EVENT_CODE_APPLICATION_QUIT, "observer", func(core.EventCode, interface{}, interface{}, core.EventContext) bool {
		quits++
		return false
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.engine.Run(ctx))
	assert.Equal(t, 0, h.window.ticks)
	assert.Equal(t, 0, h.renderer.draws)
	// the engine listener consumes QUIT first
	assert.Equal(t, 0, quits)
}

func TestRunStopsOnDrawFailure(t *testing.T) {
	h := newHarness(t)
	h.window.pump = func(int) bool { return true }
	h.renderer.drawErr = core.ErrDeviceLost
	require.NoError(t, h.engine.Initialize())

	assert.ErrorIs(t, h.engine.Run(context.Background()), core.ErrDeviceLost)
	assert.Equal(t, 1, h.renderer.draws)
	assert.NoError(t, h.engine.Shutdown())
}

func TestRunStopsOnGameFailure(t *testing.T) {
	h := newHarness(t)
	h.window.pump = func(int) bool { return true }
	boom := errors.New("update failed")
	h.game.FnUpdate = func(float64) error { return boom }
	require.NoError(t, h.engine.Initialize())

	assert.ErrorIs(t, h.engine.Run(context.Background()), boom)
	assert.Equal(t, 0, h.renderer.draws)
}

func TestMinimizeSuspendsAndRestoreResumes(t *testing.T) {
	h := newHarness(t)
	h.window.pump = func(tick int) bool {
		switch tick {
		case 1:
			h.fireResize(0, 720)
		case 3:
			h.fireResize(1024, 768)
		}
		return tick < 5
	}
	require.NoError(t, h.engine.Initialize())
	require.NoError(t, h.engine.Run(context.Background()))

	// ticks 1 and 2 are suspended
	assert.Equal(t, 3, h.game.updates)
	assert.Equal(t, 3, h.renderer.draws)
	assert.Equal(t, [][2]uint16{{1024, 768}}, h.renderer.resizes)
	assert.Contains(t, h.rec.calls, "game.resize 1024x768")
	assert.NotContains(t, h.rec.calls, "game.resize 0x720")
}

func TestResizeIgnoresUnchangedSize(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Initialize())

	h.fireResize(1280, 720)
	assert.Empty(t, h.renderer.resizes)

	h.fireResize(800, 600)
	h.fireResize(800, 600)
	assert.Equal(t, [][2]uint16{{800, 600}}, h.renderer.resizes)
	w, hh := h.engine.GetFramebufferSize()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), hh)
}

type fakeConfigSource struct {
	changes chan *config.Application
}

func (f *fakeConfigSource) Path() string                        { return "/tmp/koala.toml" }
func (f *fakeConfigSource) Changes() <-chan *config.Application { return f.changes }

func TestRunAppliesConfigReload(t *testing.T) {
	h := newHarness(t)
	src := &fakeConfigSource{changes: make(chan *config.Application, 1)}
	h.engine.WatchConfig(src)
	require.NoError(t, h.engine.Initialize())

	var reloaded []core.ConfigReloadedEvent
	h.engine.events.Register(core.EVENT_CODE_CONFIG_RELOADED, "observer", func(_ core.EventCode, _ interface{}, _ interface{}, ctx core.EventContext) bool {
		reloaded = append(reloaded, ctx.Data.(core.ConfigReloadedEvent))
		return true
	})

	next := config.Default()
	next.LogLevel = "warn"
	next.TargetFPS = 30
	next.Renderer.Validation = false
	src.changes <- next
	close(src.changes)

	h.window.pump = func(tick int) bool { return tick < 2 }
	require.NoError(t, h.engine.Run(context.Background()))

	require.Len(t, reloaded, 1)
	assert.Equal(t, "/tmp/koala.toml", reloaded[0].Path)
	assert.Equal(t, "warn", h.engine.config.LogLevel)
	assert.Equal(t, 30.0, h.engine.config.TargetFPS)
	// renderer settings wait for a restart
	assert.True(t, h.engine.config.Renderer.Validation)
	// a closed source is dropped
	assert.Nil(t, h.engine.watcher)

	require.NoError(t, core.SetLogLevel("debug"))
}

func TestConfigReloadKeepsPinnedLogLevel(t *testing.T) {
	h := newHarness(t)
	src := &fakeConfigSource{changes: make(chan *config.Application, 1)}
	h.engine.WatchConfig(src)
	h.engine.PinLogLevel("info")
	require.NoError(t, h.engine.Initialize())

	next := config.Default()
	next.LogLevel = "error"
	next.TargetFPS = 24
	src.changes <- next

	h.window.pump = func(tick int) bool { return tick < 2 }
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, "info", h.engine.config.LogLevel)
	// everything else still follows the file
	assert.Equal(t, 24.0, h.engine.config.TargetFPS)

	require.NoError(t, core.SetLogLevel("debug"))
}

func TestShutdownOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Initialize())
	require.NoError(t, h.engine.Run(context.Background()))
	h.rec.calls = nil

	require.NoError(t, h.engine.Shutdown())
	assert.Equal(t, []string{"game.shutdown", "renderer.shutdown", "platform.shutdown"}, h.rec.calls)
	assert.Equal(t, EngineStageShutdown, h.engine.Stage())
	assert.Panics(t, func() { h.engine.events.ListenerCount(core.EVENT_CODE_RESIZED) })

	// second call is a no-op
	h.rec.calls = nil
	require.NoError(t, h.engine.Shutdown())
	assert.Empty(t, h.rec.calls)
}

func TestShutdownBeforeInitialize(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.Shutdown(), ErrWrongStage)
}
