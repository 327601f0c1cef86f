package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/engine/platform"
	"github.com/spaghettifunk/koala/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released everything and cannot be used again
	EngineStageShutdown
)

// Time given back to the OS per tick while the window is minimized.
const suspendedPollInterval = 10 * time.Millisecond

var ErrWrongStage = errors.New("engine is not in the right stage for this call")

// windowSystem is the part of the platform layer the main loop drives.
type windowSystem interface {
	platform.SurfaceProvider
	Startup(applicationName string, x, y int32, width, height uint32) error
	PumpMessages() bool
	Shutdown() error
}

// frameRenderer is the renderer frontend as seen by the main loop.
type frameRenderer interface {
	Initialize(appName string, surface platform.SurfaceProvider) error
	DrawFrame(packet *renderer.RenderPacket) error
	OnResized(width, height uint16)
	Shutdown() error
}

// ConfigSource delivers configuration reloads. *config.Watcher implements it.
type ConfigSource interface {
	Path() string
	Changes() <-chan *config.Application
}

type Engine struct {
	id           core.Identifier
	currentStage Stage
	game         *Game
	config       *config.Application

	events   *core.EventBus
	input    *core.Input
	platform windowSystem
	renderer frameRenderer
	watcher  ConfigSource

	// set from the command line, wins over reloads
	pinnedLogLevel string

	isRunning   bool
	isSuspended bool
	width       uint32
	height      uint32
	clock       *core.Clock
	metrics     *core.Metrics
	lastTime    float64
}

// New wires the engine subsystems for g. A nil ApplicationConfig means the
// default configuration.
func New(g *Game) (*Engine, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	cfg := g.ApplicationConfig
	if cfg == nil {
		cfg = config.Default()
		g.ApplicationConfig = cfg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	events := core.NewEventBus()
	input := core.NewInput(events)

	p, err := platform.New(events, input)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	r, err := renderer.NewRenderer(&cfg.Renderer)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return newEngine(g, events, input, p, r), nil
}

func newEngine(g *Game, events *core.EventBus, input *core.Input, window windowSystem, r frameRenderer) *Engine {
	e := &Engine{
		id:           core.NewIdentifier(),
		currentStage: EngineStageBooting,
		game:         g,
		config:       g.ApplicationConfig,
		events:       events,
		input:        input,
		platform:     window,
		renderer:     r,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}
	g.Input = input
	g.Events = events
	e.currentStage = EngineStageBootComplete
	return e
}

// WatchConfig makes the main loop apply reloads published by src.
func (e *Engine) WatchConfig(src ConfigSource) {
	e.watcher = src
}

// PinLogLevel fixes the log level for the lifetime of the engine. Reloaded
// configurations keep every other setting but not their log_level.
func (e *Engine) PinLogLevel(level string) {
	e.pinnedLogLevel = level
	e.config.LogLevel = level
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageBootComplete {
		return fmt.Errorf("%w: initialize called in stage %d", ErrWrongStage, e.currentStage)
	}
	e.currentStage = EngineStageInitializing
	cfg := e.config

	if err := core.SetLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	// register some events
	e.registerListeners()

	if err := e.platform.Startup(cfg.Name, cfg.StartPosX, cfg.StartPosY, cfg.StartWidth, cfg.StartHeight); err != nil {
		e.currentStage = EngineStageShutdown
		return err
	}

	if err := e.renderer.Initialize(cfg.Name, e.platform); err != nil {
		core.LogError("Failed to initialize renderer. Aborting application.")
		e.currentStage = EngineStageShutdown
		// whatever the backend managed to create is released here
		if serr := e.renderer.Shutdown(); serr != nil {
			core.LogError("renderer shutdown after failed initialize: %s", serr)
		}
		if serr := e.platform.Shutdown(); serr != nil {
			core.LogError("platform shutdown after failed initialize: %s", serr)
		}
		return err
	}

	// From here on Shutdown owns the cleanup, even if the game fails.
	e.currentStage = EngineStageInitialized

	if err := e.game.FnInitialize(); err != nil {
		core.LogError("Game failed to initialize.")
		return err
	}

	if err := e.game.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	return nil
}

// Run drives the main loop on the calling goroutine until the application
// quits, ctx is cancelled or a frame fails.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("%w: run called in stage %d", ErrWrongStage, e.currentStage)
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runningTime float64 = 0.0

	for e.isRunning {
		select {
		case <-ctx.Done():
			core.LogInfo("Run context done: %s", ctx.Err())
			e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{Data: core.QuitEvent{}})
			e.isRunning = false
			continue
		default:
		}

		e.applyConfigChanges()

		if !e.platform.PumpMessages() {
			e.isRunning = false
			continue
		}

		if e.isSuspended {
			time.Sleep(suspendedPollInterval)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := time.Now()

		if err := e.game.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			return err
		}

		packet := &renderer.RenderPacket{DeltaTime: delta}

		// Call the game's render routine.
		if err := e.game.FnRender(packet, delta); err != nil {
			core.LogError("Game render failed, shutting down: %s", err)
			return err
		}

		if err := e.renderer.DrawFrame(packet); err != nil {
			return err
		}

		// Figure out how long the frame took and, if below the target, give the rest back to the OS.
		frameElapsedTime := time.Since(frameStartTime).Seconds()
		e.metrics.Update(frameElapsedTime)
		runningTime += frameElapsedTime
		if runningTime >= 1.0 {
			fps, ms := e.metrics.Frame()
			core.LogDebug("FPS: %.0f, frame time: %.3fms", fps, ms)
			runningTime = 0
		}

		if e.config.LimitFrames {
			targetFrameSeconds := 1.0 / e.config.TargetFPS
			if remaining := targetFrameSeconds - frameElapsedTime; remaining > 0 {
				time.Sleep(time.Duration(remaining * float64(time.Second)))
			}
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		// As a safety, input is the last thing to be updated before
		// this frame ends.
		e.input.AdvanceFrame(delta)

		// Update last time
		e.lastTime = currentTime
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// applyConfigChanges drains pending reloads. Only settings that can change at
// runtime are applied; renderer settings need a restart.
func (e *Engine) applyConfigChanges() {
	if e.watcher == nil {
		return
	}
	for {
		select {
		case cfg, ok := <-e.watcher.Changes():
			if !ok {
				e.watcher = nil
				return
			}
			e.applyConfig(cfg)
		default:
			return
		}
	}
}

func (e *Engine) applyConfig(cfg *config.Application) {
	switch {
	case e.pinnedLogLevel != "":
		if cfg.LogLevel != e.pinnedLogLevel {
			core.LogDebug("Keeping log level %s set on the command line.", e.pinnedLogLevel)
		}
	default:
		if err := core.SetLogLevel(cfg.LogLevel); err != nil {
			core.LogWarn("ignoring reloaded log level: %s", err)
		} else {
			e.config.LogLevel = cfg.LogLevel
		}
	}
	e.config.LimitFrames = cfg.LimitFrames
	e.config.TargetFPS = cfg.TargetFPS
	if !reflect.DeepEqual(e.config.Renderer, cfg.Renderer) {
		core.LogInfo("Renderer settings changed, they take effect on the next start.")
	}

	core.LogInfo("Configuration reloaded from %s.", e.watcher.Path())
	e.events.Fire(core.EVENT_CODE_CONFIG_RELOADED, e, core.EventContext{
		Data: core.ConfigReloadedEvent{Path: e.watcher.Path()},
	})
}

// Shutdown tears everything down in the reverse order of Initialize.
func (e *Engine) Shutdown() error {
	switch e.currentStage {
	case EngineStageInitialized, EngineStageRunning:
	case EngineStageShutdown, EngineStageShuttingDown:
		core.LogWarn("Engine shutdown called more than once.")
		return nil
	default:
		return fmt.Errorf("%w: shutdown called in stage %d", ErrWrongStage, e.currentStage)
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	e.unregisterListeners()

	var errs []error
	if e.game.FnShutdown != nil {
		if err := e.game.FnShutdown(); err != nil {
			errs = append(errs, fmt.Errorf("game shutdown: %w", err))
		}
	}
	if err := e.renderer.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("renderer shutdown: %w", err))
	}
	if err := e.platform.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("platform shutdown: %w", err))
	}
	e.input.Shutdown()
	e.events.Shutdown()

	e.currentStage = EngineStageShutdown
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}
