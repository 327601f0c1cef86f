package platform

import (
	"io"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlatform(t *testing.T) (*Platform, *core.EventBus, *core.Input) {
	t.Helper()
	core.SetLogOutput(io.Discard)
	bus := core.NewEventBus()
	input := core.NewInput(bus)
	p, err := New(bus, input)
	require.NoError(t, err)
	return p, bus, input
}

func TestPumpForwardsInputAndEvents(t *testing.T) {
	p, bus, input := newTestPlatform(t)

	var resized []core.ResizeEvent
	quits := 0
	bus.Register(core.EVENT_CODE_RESIZED, t, func(code core.EventCode, sender, inst interface{}, data core.EventContext) bool {
		resized = append(resized, data.Data.(core.ResizeEvent))
		return true
	})
	bus.Register(core.EVENT_CODE_APPLICATION_QUIT, t, func(core.EventCode, interface{}, interface{}, core.EventContext) bool {
		quits++
		return true
	})

	p.keyCallback(nil, glfw.KeyW, 0, glfw.Press, glfw.ModShift)
	p.keyCallback(nil, glfw.KeyW, 0, glfw.Repeat, glfw.ModShift)
	p.mouseButtonCallback(nil, glfw.MouseButtonRight, glfw.Press, 0)
	p.cursorPosCallback(nil, 12.7, 40.2)
	p.framebufferSizeCallback(nil, 800, 600)
	p.closeCallback(nil)

	// nothing reaches the engine until the queue is drained
	assert.False(t, input.IsKeyDown(core.KEY_W))

	p.drain()
	assert.True(t, input.IsKeyDown(core.KEY_W))
	assert.True(t, input.IsButtonDown(core.BUTTON_RIGHT))
	x, y := input.MousePosition()
	assert.Equal(t, int16(12), x)
	assert.Equal(t, int16(40), y)
	assert.Equal(t, []core.ResizeEvent{{Width: 800, Height: 600}}, resized)
	assert.Equal(t, 1, quits)
	assert.True(t, p.queue.IsEmpty())
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	p, _, input := newTestPlatform(t)

	p.keyCallback(nil, glfw.KeyA, 0, glfw.Press, 0)
	for i := 0; i < eventQueueSize; i++ {
		p.cursorPosCallback(nil, float64(i), 0)
	}
	p.drain()

	assert.False(t, input.IsKeyDown(core.KEY_A))
	x, _ := input.MousePosition()
	assert.Equal(t, int16(eventQueueSize-1), x)
}

func TestTranslateKey(t *testing.T) {
	tests := map[glfw.Key]core.KeyCode{
		glfw.KeyA:      core.KEY_A,
		glfw.KeyZ:      core.KEY_Z,
		glfw.KeyEscape: core.KEY_ESCAPE,
		glfw.KeyF1:     core.KEY_F1,
		glfw.KeyF12:    core.KEY_F12,
		glfw.KeyKP5:    core.KEY_NUMPAD5,
		glfw.KeyEqual:  core.KEY_PLUS,
	}
	for in, want := range tests {
		got, ok := translateKey(in)
		assert.True(t, ok, "key %d", in)
		assert.Equal(t, want, got)
	}
	_, ok := translateKey(glfw.KeyUnknown)
	assert.False(t, ok)
}

func TestScrollIsFlattened(t *testing.T) {
	p, bus, _ := newTestPlatform(t)
	var deltas []int8
	bus.Register(core.EVENT_CODE_MOUSE_WHEEL, t, func(code core.EventCode, sender, inst interface{}, data core.EventContext) bool {
		deltas = append(deltas, data.Data.(core.MouseWheelEvent).ZDelta)
		return false
	})
	p.scrollCallback(nil, 0, 3.5)
	p.scrollCallback(nil, 0, -0.2)
	p.scrollCallback(nil, 1, 0)
	p.drain()
	assert.Equal(t, []int8{1, -1}, deltas)
}
