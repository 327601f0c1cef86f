package engine

import (
	"errors"

	"github.com/spaghettifunk/koala/engine/config"
	"github.com/spaghettifunk/koala/engine/core"
	"github.com/spaghettifunk/koala/engine/renderer"
)

var ErrInvalidGame = errors.New("game is missing required callbacks")

// Game is what an application hands to the engine. The engine fills Input and
// Events during New so callbacks can query them.
type Game struct {
	ApplicationConfig *config.Application
	State             interface{}

	Input  *core.Input
	Events *core.EventBus

	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(packet *renderer.RenderPacket, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error

func (g *Game) validate() error {
	if g == nil {
		return ErrInvalidGame
	}
	var errs []error
	if g.FnInitialize == nil {
		errs = append(errs, errors.New("FnInitialize is nil"))
	}
	if g.FnUpdate == nil {
		errs = append(errs, errors.New("FnUpdate is nil"))
	}
	if g.FnRender == nil {
		errs = append(errs, errors.New("FnRender is nil"))
	}
	if g.FnOnResize == nil {
		errs = append(errs, errors.New("FnOnResize is nil"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidGame}, errs...)...)
	}
	return nil
}
