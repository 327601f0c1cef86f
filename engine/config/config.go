package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "koala.toml"

var ErrInvalidConfig = errors.New("invalid configuration")

// Application holds the settings used to create the window and drive the main loop.
type Application struct {
	Name        string   `toml:"name"`
	StartPosX   int32    `toml:"start_pos_x"`
	StartPosY   int32    `toml:"start_pos_y"`
	StartWidth  uint32   `toml:"start_width"`
	StartHeight uint32   `toml:"start_height"`
	LimitFrames bool     `toml:"limit_frames"`
	TargetFPS   float64  `toml:"target_fps"`
	LogLevel    string   `toml:"log_level"`
	Renderer    Renderer `toml:"renderer"`
}

type Renderer struct {
	Backend           string    `toml:"backend"`
	Validation        bool      `toml:"validation"`
	MaxFramesInFlight uint8     `toml:"max_frames_in_flight"`
	FenceTimeoutMS    uint64    `toml:"fence_timeout_ms"`
	PresentMode       string    `toml:"present_mode"`
	DiscreteGPU       bool      `toml:"discrete_gpu"`
	RequireCompute    bool      `toml:"require_compute"`
	SamplerAnisotropy bool      `toml:"sampler_anisotropy"`
	ClearColor        []float32 `toml:"clear_color"`
}

var (
	backends     = []string{"vulkan", "opengl", "directx"}
	presentModes = []string{"mailbox", "fifo", "immediate"}
	logLevels    = []string{"debug", "info", "warn", "error", "fatal"}
)

func Default() *Application {
	return &Application{
		Name:        "Koala Engine Testbed",
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		LimitFrames: false,
		TargetFPS:   60,
		LogLevel:    "debug",
		Renderer: Renderer{
			Backend:           "vulkan",
			Validation:        true,
			MaxFramesInFlight: 2,
			FenceTimeoutMS:    0,
			PresentMode:       "mailbox",
			DiscreteGPU:       false,
			RequireCompute:    false,
			SamplerAnisotropy: true,
			ClearColor:        []float32{0.0, 0.0, 0.2, 1.0},
		},
	}
}

// Load reads a TOML file on top of Default. A missing file yields the defaults.
func Load(path string) (*Application, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data into cfg and validates the result.
func Parse(data []byte, cfg *Application) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("%w: line %d column %d: %s", ErrInvalidConfig, row, col, derr.Error())
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return cfg.Validate()
}

func (a *Application) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, fmt.Errorf("%w: name must not be empty", ErrInvalidConfig))
	}
	if a.StartWidth == 0 || a.StartHeight == 0 {
		errs = append(errs, fmt.Errorf("%w: start size %dx%d must be non-zero", ErrInvalidConfig, a.StartWidth, a.StartHeight))
	}
	if a.LimitFrames && a.TargetFPS <= 0 {
		errs = append(errs, fmt.Errorf("%w: target_fps must be positive when limit_frames is set", ErrInvalidConfig))
	}
	if !oneOf(a.LogLevel, logLevels) {
		errs = append(errs, fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, a.LogLevel))
	}
	if err := a.Renderer.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *Renderer) Validate() error {
	var errs []error
	if !oneOf(r.Backend, backends) {
		errs = append(errs, fmt.Errorf("%w: unknown renderer backend %q", ErrInvalidConfig, r.Backend))
	}
	if !oneOf(r.PresentMode, presentModes) {
		errs = append(errs, fmt.Errorf("%w: unknown present_mode %q", ErrInvalidConfig, r.PresentMode))
	}
	if r.MaxFramesInFlight == 0 {
		errs = append(errs, fmt.Errorf("%w: max_frames_in_flight must be at least 1", ErrInvalidConfig))
	}
	if len(r.ClearColor) != 4 {
		errs = append(errs, fmt.Errorf("%w: clear_color needs 4 components, got %d", ErrInvalidConfig, len(r.ClearColor)))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
