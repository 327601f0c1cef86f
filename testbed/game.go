package testbed

import (
	"github.com/spaghettifunk/koala/engine"
	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/engine/renderer"
)

// Application event codes used by the testbed.
const (
	EVENT_CODE_DEBUG0 core.EventCode = core.MAX_SYSTEM_EVENT_CODE + 1 + iota
	EVENT_CODE_DEBUG1
)

// Units per second the marker moves while a direction key is held.
const moveSpeed = 50.0

type TestGame struct {
	*engine.Game
}

type gameState struct {
	// marker moved around with the keyboard, stands in for a camera
	X, Y float64

	width  uint32
	height uint32

	frames      uint64
	debugEvents int
}

func NewTestGame(cfg *config.Application) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	g.Events.Register(EVENT_CODE_DEBUG0, g, g.gameOnDebugEvent)
	g.Events.Register(EVENT_CODE_DEBUG1, g, g.gameOnDebugEvent)
	g.Events.Register(core.EVENT_CODE_BUTTON_PRESSED, g, g.gameOnButton)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	in := g.Input
	state.frames++

	step := moveSpeed * deltaTime
	if in.IsKeyDown(core.KEY_A) || in.IsKeyDown(core.KEY_LEFT) {
		state.X -= step
	}
	if in.IsKeyDown(core.KEY_D) || in.IsKeyDown(core.KEY_RIGHT) {
		state.X += step
	}
	if in.IsKeyDown(core.KEY_W) || in.IsKeyDown(core.KEY_UP) {
		state.Y += step
	}
	if in.IsKeyDown(core.KEY_S) || in.IsKeyDown(core.KEY_DOWN) {
		state.Y -= step
	}

	// Released this frame.
	if in.IsKeyUp(core.KEY_P) && in.WasKeyDown(core.KEY_P) {
		core.LogDebug("Pos:[%.2f, %.2f]", state.X, state.Y)
	}

	if in.IsKeyUp(core.KEY_L) && in.WasKeyDown(core.KEY_L) {
		g.Events.Fire(EVENT_CODE_DEBUG0, g, core.EventContext{
			Data: core.UserEvent{Data: [2]uint64{state.frames, 0}},
		})
	}
	if in.IsKeyUp(core.KEY_K) && in.WasKeyDown(core.KEY_K) {
		g.Events.Fire(EVENT_CODE_DEBUG1, g, core.EventContext{
			Data: core.UserEvent{Data: [2]uint64{state.frames, 1}},
		})
	}
	return nil
}

func (g *TestGame) Render(packet *renderer.RenderPacket, deltaTime float64) error {
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	g.Events.Unregister(EVENT_CODE_DEBUG0, g, g.gameOnDebugEvent)
	g.Events.Unregister(EVENT_CODE_DEBUG1, g, g.gameOnDebugEvent)
	g.Events.Unregister(core.EVENT_CODE_BUTTON_PRESSED, g, g.gameOnButton)
	return nil
}

func (g *TestGame) gameOnDebugEvent(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	ue, ok := context.Data.(core.UserEvent)
	if !ok {
		return false
	}
	g.state().debugEvents++
	core.LogInfo("debug event 0x%x fired on frame %d", uint16(code), ue.Data[0])
	return true
}

func (g *TestGame) gameOnButton(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	be, ok := context.Data.(core.MouseButtonEvent)
	if !ok {
		return false
	}
	x, y := g.Input.MousePosition()
	core.LogDebug("mouse button %d pressed at %d,%d", be.Button, x, y)
	return false
}
