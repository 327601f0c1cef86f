package platform

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/koala/engine/core"
)

var keyMap = buildKeyMap()

func buildKeyMap() map[glfw.Key]core.KeyCode {
	m := map[glfw.Key]core.KeyCode{
		glfw.KeyBackspace:    core.KEY_BACKSPACE,
		glfw.KeyEnter:        core.KEY_ENTER,
		glfw.KeyKPEnter:      core.KEY_ENTER,
		glfw.KeyTab:          core.KEY_TAB,
		glfw.KeyPause:        core.KEY_PAUSE,
		glfw.KeyCapsLock:     core.KEY_CAPITAL,
		glfw.KeyEscape:       core.KEY_ESCAPE,
		glfw.KeySpace:        core.KEY_SPACE,
		glfw.KeyPageUp:       core.KEY_PRIOR,
		glfw.KeyPageDown:     core.KEY_NEXT,
		glfw.KeyEnd:          core.KEY_END,
		glfw.KeyHome:         core.KEY_HOME,
		glfw.KeyLeft:         core.KEY_LEFT,
		glfw.KeyUp:           core.KEY_UP,
		glfw.KeyRight:        core.KEY_RIGHT,
		glfw.KeyDown:         core.KEY_DOWN,
		glfw.KeyPrintScreen:  core.KEY_SNAPSHOT,
		glfw.KeyInsert:       core.KEY_INSERT,
		glfw.KeyDelete:       core.KEY_DELETE,
		glfw.KeyLeftSuper:    core.KEY_LWIN,
		glfw.KeyRightSuper:   core.KEY_RWIN,
		glfw.KeyMenu:         core.KEY_APPS,
		glfw.KeyKPMultiply:   core.KEY_MULTIPLY,
		glfw.KeyKPAdd:        core.KEY_ADD,
		glfw.KeyKPSubtract:   core.KEY_SUBTRACT,
		glfw.KeyKPDecimal:    core.KEY_DECIMAL,
		glfw.KeyKPDivide:     core.KEY_DIVIDE,
		glfw.KeyKPEqual:      core.KEY_NUMPAD_EQUAL,
		glfw.KeyNumLock:      core.KEY_NUMLOCK,
		glfw.KeyScrollLock:   core.KEY_SCROLL,
		glfw.KeyLeftShift:    core.KEY_LSHIFT,
		glfw.KeyRightShift:   core.KEY_RSHIFT,
		glfw.KeyLeftControl:  core.KEY_LCONTROL,
		glfw.KeyRightControl: core.KEY_RCONTROL,
		glfw.KeyLeftAlt:      core.KEY_LMENU,
		glfw.KeyRightAlt:     core.KEY_RMENU,
		glfw.KeySemicolon:    core.KEY_SEMICOLON,
		glfw.KeyEqual:        core.KEY_PLUS,
		glfw.KeyComma:        core.KEY_COMMA,
		glfw.KeyMinus:        core.KEY_MINUS,
		glfw.KeyPeriod:       core.KEY_PERIOD,
		glfw.KeySlash:        core.KEY_SLASH,
		glfw.KeyGraveAccent:  core.KEY_GRAVE,
	}
	// Letters and digits share their ASCII values with the engine codes.
	for k := glfw.KeyA; k <= glfw.KeyZ; k++ {
		m[k] = core.KeyCode(k)
	}
	for k := glfw.Key0; k <= glfw.Key9; k++ {
		m[k] = core.KeyCode(k)
	}
	for k := glfw.KeyKP0; k <= glfw.KeyKP9; k++ {
		m[k] = core.KEY_NUMPAD0 + core.KeyCode(k-glfw.KeyKP0)
	}
	for k := glfw.KeyF1; k <= glfw.KeyF24; k++ {
		m[k] = core.KEY_F1 + core.KeyCode(k-glfw.KeyF1)
	}
	return m
}

func translateKey(key glfw.Key) (core.KeyCode, bool) {
	code, ok := keyMap[key]
	return code, ok
}
