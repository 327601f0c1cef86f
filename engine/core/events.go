package core

import (
	"errors"
	"reflect"
)

// Event codes. System internal codes live at or below MAX_SYSTEM_EVENT_CODE,
// application codes should use anything above it.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	// Data: QuitEvent
	EVENT_CODE_APPLICATION_QUIT EventCode = 0x01

	// Keyboard key pressed.
	// Data: KeyEvent
	EVENT_CODE_KEY_PRESSED EventCode = 0x02

	// Keyboard key released.
	// Data: KeyEvent
	EVENT_CODE_KEY_RELEASED EventCode = 0x03

	// Mouse button pressed.
	// Data: MouseButtonEvent
	EVENT_CODE_BUTTON_PRESSED EventCode = 0x04

	// Mouse button released.
	// Data: MouseButtonEvent
	EVENT_CODE_BUTTON_RELEASED EventCode = 0x05

	// Mouse moved.
	// Data: MouseMoveEvent
	EVENT_CODE_MOUSE_MOVED EventCode = 0x06

	// Mouse wheel moved.
	// Data: MouseWheelEvent
	EVENT_CODE_MOUSE_WHEEL EventCode = 0x07

	// Resized/resolution changed from the OS.
	// Data: ResizeEvent
	EVENT_CODE_RESIZED EventCode = 0x08

	// The configuration file changed on disk and was reloaded.
	// Data: ConfigReloadedEvent
	EVENT_CODE_CONFIG_RELOADED EventCode = 0x09

	MAX_SYSTEM_EVENT_CODE EventCode = 0xFF
	MAX_EVENT_CODE        EventCode = 0xFFFF
)

func (c EventCode) String() string {
	switch c {
	case EVENT_CODE_APPLICATION_QUIT:
		return "APPLICATION_QUIT"
	case EVENT_CODE_KEY_PRESSED:
		return "KEY_PRESSED"
	case EVENT_CODE_KEY_RELEASED:
		return "KEY_RELEASED"
	case EVENT_CODE_BUTTON_PRESSED:
		return "BUTTON_PRESSED"
	case EVENT_CODE_BUTTON_RELEASED:
		return "BUTTON_RELEASED"
	case EVENT_CODE_MOUSE_MOVED:
		return "MOUSE_MOVED"
	case EVENT_CODE_MOUSE_WHEEL:
		return "MOUSE_WHEEL"
	case EVENT_CODE_RESIZED:
		return "RESIZED"
	case EVENT_CODE_CONFIG_RELOADED:
		return "CONFIG_RELOADED"
	}
	if c > MAX_SYSTEM_EVENT_CODE {
		return "APPLICATION"
	}
	return "UNKNOWN"
}

// EventData is the payload attached to a fired event. The set of payloads is
// closed; application codes carry a UserEvent.
type EventData interface {
	eventData()
}

type KeyEvent struct {
	Key       KeyCode
	Modifiers uint16
}

type MouseButtonEvent struct {
	Button Button
}

type MouseMoveEvent struct {
	X int16
	Y int16
}

type MouseWheelEvent struct {
	ZDelta int8
}

type ResizeEvent struct {
	Width  uint16
	Height uint16
}

type QuitEvent struct{}

type ConfigReloadedEvent struct {
	Path string
}

// UserEvent is a 16 byte payload for application defined codes.
type UserEvent struct {
	Data [2]uint64
}

func (KeyEvent) eventData()            {}
func (MouseButtonEvent) eventData()    {}
func (MouseMoveEvent) eventData()      {}
func (MouseWheelEvent) eventData()     {}
func (ResizeEvent) eventData()         {}
func (QuitEvent) eventData()           {}
func (ConfigReloadedEvent) eventData() {}
func (UserEvent) eventData()           {}

// EventContext is copied by value to every listener.
type EventContext struct {
	Data EventData
}

// Should return true if handled.
type FnOnEvent func(code EventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

var ErrEventBusNotInitialized = errors.New("event bus used before initialization or after shutdown")

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus maps event codes to ordered listener lists. It is not safe for
// concurrent use: registration and firing happen on the main loop thread.
type EventBus struct {
	registered map[EventCode][]registeredEvent
	// codes that already produced a "no listeners" warning
	warned map[EventCode]bool
	live   bool
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]registeredEvent),
		warned:     make(map[EventCode]bool),
		live:       true,
	}
}

// Shutdown frees the listener lists. Any later use of the bus panics.
func (eb *EventBus) Shutdown() {
	eb.mustBeLive()
	// Objects pointed to by listeners are destroyed on their own.
	eb.registered = nil
	eb.warned = nil
	eb.live = false
}

func (eb *EventBus) mustBeLive() {
	if eb == nil || !eb.live {
		panic(ErrEventBusNotInitialized)
	}
}

/**
 * Register to listen for when events are sent with the provided code. A listener
 * may only be registered once per code; a duplicate returns false.
 * @param code The event code to listen for.
 * @param listener The listener identity. Compared with ==, never dereferenced. Can be nil.
 * Must be a pointer or another comparable value; slices, maps and funcs are rejected.
 * @param onEvent The callback to be invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func (eb *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	eb.mustBeLive()
	if listener != nil && !reflect.TypeOf(listener).Comparable() {
		LogWarn("listener of type %T cannot be used as an identity for event %s (0x%02x)", listener, code, uint16(code))
		return false
	}
	for _, e := range eb.registered[code] {
		if e.listener == listener {
			LogWarn("listener %v is already registered for event %s (0x%02x)", listener, code, uint16(code))
			return false
		}
	}
	eb.registered[code] = append(eb.registered[code], registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	delete(eb.warned, code)
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns false.
 * @param code The event code to stop listening for.
 * @param listener The listener identity used at registration.
 * @param onEvent The callback used at registration.
 * @returns true if the event is successfully unregistered; otherwise false.
 */
func (eb *EventBus) Unregister(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	eb.mustBeLive()
	events := eb.registered[code]
	if len(events) == 0 {
		LogWarn("nothing is registered for event %s (0x%02x)", code, uint16(code))
		return false
	}
	for i, e := range events {
		if e.listener == listener && sameCallback(e.callback, onEvent) {
			// Compacting removal keeps dispatch order for the rest.
			eb.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @param code The event code to fire.
 * @param sender The sender. Can be nil.
 * @param data The event data.
 * @returns true if handled, otherwise false.
 */
func (eb *EventBus) Fire(code EventCode, sender interface{}, data EventContext) bool {
	eb.mustBeLive()
	events := eb.registered[code]
	if len(events) == 0 {
		if !eb.warned[code] {
			LogWarn("event %s (0x%02x) fired with no listeners", code, uint16(code))
			eb.warned[code] = true
		}
		return false
	}
	for _, e := range events {
		if e.callback(code, sender, e.listener, data) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

// ListenerCount reports how many listeners are registered for code.
func (eb *EventBus) ListenerCount(code EventCode) int {
	eb.mustBeLive()
	return len(eb.registered[code])
}

func sameCallback(a, b FnOnEvent) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
