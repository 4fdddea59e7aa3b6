package engine

import (
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/window"
)

// engineConfig collects options that are applied after the engine's fields are in place.
type engineConfig struct {
	profiling bool
	scene     *common.Bitmap
}

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine, *engineConfig)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.profiling = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithWindow sets the window whose message loop Run drives. Without a window the engine runs
// headless until Quit.
//
// Parameters:
//   - w: a created Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.window = w
	}
}

// WithScene sets the initial scene bitmap.
//
// Parameters:
//   - bmp: the scene bitmap
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(bmp *common.Bitmap) EngineBuilderOption {
	return func(_ *engine, cfg *engineConfig) {
		cfg.scene = bmp
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		e.renderFrameLimit = frameInterval(fps)
	}
}

// WithLogger sets the logger for frame errors and profiler output. Defaults to Logger().
//
// Parameters:
//   - l: the logger, nil keeps the default
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(l *slog.Logger) EngineBuilderOption {
	return func(e *engine, _ *engineConfig) {
		if l != nil {
			e.logger = l
		}
	}
}
