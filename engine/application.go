package engine

import (
	"github.com/spaghettifunk/koala/engine/core"
)

func (e *Engine) registerListeners() {
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.id, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.id, e.onKey)
	e.events.Register(core.EVENT_CODE_KEY_RELEASED, e.id, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.id, e.onResized)
}

func (e *Engine) unregisterListeners() {
	e.events.Unregister(core.EVENT_CODE_APPLICATION_QUIT, e.id, e.onEvent)
	e.events.Unregister(core.EVENT_CODE_KEY_PRESSED, e.id, e.onKey)
	e.events.Unregister(core.EVENT_CODE_KEY_RELEASED, e.id, e.onKey)
	e.events.Unregister(core.EVENT_CODE_RESIZED, e.id, e.onResized)
}

func (e *Engine) onEvent(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	switch code {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	ke, ok := context.Data.(core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%s`", code)
		return false
	}

	if code == core.EVENT_CODE_KEY_PRESSED {
		if ke.Key == core.KEY_ESCAPE {
			// NOTE: Technically firing an event to itself, but there may be other listeners.
			e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{Data: core.QuitEvent{}})
			// Block anything else from processing this.
			return true
		}
		core.LogDebug("key 0x%02x pressed in window (mods 0x%x).", uint16(ke.Key), ke.Modifiers)
	} else {
		core.LogDebug("key 0x%02x released in window.", uint16(ke.Key))
	}
	return false
}

func (e *Engine) onResized(code core.EventCode, sender interface{}, listener interface{}, context core.EventContext) bool {
	re, ok := context.Data.(core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%s`", code)
		return false
	}

	width := uint32(re.Width)
	height := uint32(re.Height)

	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if err := e.game.FnOnResize(width, height); err != nil {
		core.LogError("game resize failed: %s", err)
	}
	e.renderer.OnResized(re.Width, re.Height)
	// Event purposely not handled to allow other listeners to get this.
	return false
}
