package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/koala/engine/containers"
	"github.com/spaghettifunk/koala/engine/core"
)

const eventQueueSize = 256

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type eventKind uint8

const (
	eventKey eventKind = iota
	eventButton
	eventMouseMove
	eventMouseWheel
	eventResize
	eventClose
)

// platformEvent is what a GLFW callback captured, replayed by PumpMessages.
type platformEvent struct {
	kind      eventKind
	key       core.KeyCode
	modifiers uint16
	pressed   bool
	button    core.Button
	x, y      int16
	zDelta    int8
	width     uint16
	height    uint16
}

type Platform struct {
	Window *glfw.Window

	events *core.EventBus
	input  *core.Input
	queue  *containers.RingQueue[platformEvent]
}

func New(events *core.EventBus, input *core.Input) (*Platform, error) {
	return &Platform{
		Window: nil,
		events: events,
		input:  input,
		queue:  containers.NewRingQueue[platformEvent](eventQueueSize),
	}, nil
}

func (p *Platform) Startup(applicationName string, x, y int32, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		glfw.Terminate()
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetMouseButtonCallback(p.mouseButtonCallback)
	p.Window.SetCursorPosCallback(p.cursorPosCallback)
	p.Window.SetScrollCallback(p.scrollCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the OS and forwards everything captured to the input
// tracker and the event bus. It returns false once the window should close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	p.drain()
	return p.Window != nil && !p.Window.ShouldClose()
}

func (p *Platform) enqueue(ev platformEvent) {
	if p.queue.IsFull() {
		dropped, _ := p.queue.Dequeue()
		core.LogWarn("platform event queue full, dropping event of kind %d", dropped.kind)
	}
	_ = p.queue.Enqueue(ev)
}

func (p *Platform) drain() {
	for !p.queue.IsEmpty() {
		ev, err := p.queue.Dequeue()
		if err != nil {
			return
		}
		p.dispatch(ev)
	}
}

func (p *Platform) dispatch(ev platformEvent) {
	switch ev.kind {
	case eventKey:
		p.input.ProcessKey(ev.key, ev.modifiers, ev.pressed)
	case eventButton:
		p.input.ProcessButton(ev.button, ev.pressed)
	case eventMouseMove:
		p.input.ProcessMouseMove(ev.x, ev.y)
	case eventMouseWheel:
		p.input.ProcessMouseWheel(ev.zDelta)
	case eventResize:
		p.events.Fire(core.EVENT_CODE_RESIZED, p, core.EventContext{
			Data: core.ResizeEvent{Width: ev.width, Height: ev.height},
		})
	case eventClose:
		p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{Data: core.QuitEvent{}})
	}
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	code, ok := translateKey(key)
	if !ok {
		return
	}
	p.enqueue(platformEvent{
		kind:      eventKey,
		key:       code,
		modifiers: uint16(mods),
		pressed:   action != glfw.Release,
	})
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.BUTTON_LEFT
	case glfw.MouseButtonRight:
		b = core.BUTTON_RIGHT
	case glfw.MouseButtonMiddle:
		b = core.BUTTON_MIDDLE
	default:
		return
	}
	p.enqueue(platformEvent{kind: eventButton, button: b, pressed: action != glfw.Release})
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.enqueue(platformEvent{kind: eventMouseMove, x: int16(xpos), y: int16(ypos)})
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	if yoff == 0 {
		return
	}
	// flatten to a direction, the same on every OS
	var z int8 = 1
	if yoff < 0 {
		z = -1
	}
	p.enqueue(platformEvent{kind: eventMouseWheel, zDelta: z})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.enqueue(platformEvent{kind: eventResize, width: uint16(width), height: uint16(height)})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.enqueue(platformEvent{kind: eventClose})
}
