// Package engine runs the frame loop of an oxy-gi application: a fixed-rate tick goroutine
// for scene updates, a render goroutine that lights the current scene bitmap with a gi.System
// and presents it, and the window message loop on the calling goroutine.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/gi"
	"github.com/Carmen-Shannon/oxy-gi/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gi/engine/window"
)

var (
	// ErrNoScene is returned by RenderFrame before a scene bitmap has been set.
	ErrNoScene = errors.New("engine: no scene bitmap set")

	// ErrRunning is returned by Run when the engine is already running.
	ErrRunning = errors.New("engine: already running")
)

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	system   gi.System
	logger   *slog.Logger

	scene       atomic.Pointer[common.Bitmap]
	pendingSize atomic.Pointer[[2]int] // surface size queued by the resize callback
	frames      atomic.Uint64

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	errMu sync.Mutex
	err   error
}

// Engine is the main entry point for the engine.
// It orchestrates the tick loop, render loop, and window management.
type Engine interface {
	// Window returns the underlying window, or nil for a headless engine.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer frames are drawn with.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// System returns the GI system that lights each frame.
	//
	// Returns:
	//   - gi.System: the system
	System() gi.System

	// SetScene replaces the scene bitmap rendered by following frames. The engine keeps the
	// pointer, so callers must not modify a bitmap after handing it over; pass a new or cloned
	// bitmap instead. Safe to call from any goroutine.
	//
	// Parameters:
	//   - bmp: the scene bitmap
	//
	// Returns:
	//   - error: an error if bmp is malformed
	SetScene(bmp *common.Bitmap) error

	// Scene returns the current scene bitmap, or nil if none has been set.
	//
	// Returns:
	//   - *common.Bitmap: the scene bitmap
	Scene() *common.Bitmap

	// RenderFrame renders and presents one frame of the current scene: applies a queued
	// surface resize, opens the frame, runs the GI system, ends the frame and presents it.
	//
	// Returns:
	//   - error: ErrNoScene, or the first renderer or GI error
	RenderFrame() error

	// Frames returns the number of frames presented so far.
	//
	// Returns:
	//   - uint64: the frame count
	Frames() uint64

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for scene updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for input processing and scene edits.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the tick and render goroutines and blocks until the window closes, or until
	// Quit is called for a headless engine. A frame error stops the engine.
	//
	// Returns:
	//   - error: the frame error that stopped the engine, ErrRunning, or nil
	Run() error

	// Quit signals all engine goroutines to stop and asks the window to close.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine rendering with r and lighting with sys.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - r: the renderer owning the frame lifecycle
//   - sys: the GI system run each frame, created on r
//   - options: functional options for engine configuration (window, scene, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if r or sys is nil or the initial scene is malformed
func NewEngine(r renderer.Renderer, sys gi.System, options ...EngineBuilderOption) (Engine, error) {
	if r == nil || sys == nil {
		return nil, errors.New("engine: renderer and GI system are required")
	}
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		wg:              sync.WaitGroup{},
		renderer:        r,
		system:          sys,
		logger:          Logger(),
		engineTickRate:  time.Second / 60,
	}

	var cfg engineConfig
	for _, opt := range options {
		opt(e, &cfg)
	}
	e.profiler = profiler.NewProfiler(e.logger)
	e.profilingEnabled.Store(cfg.profiling)

	if cfg.scene != nil {
		if err := e.SetScene(cfg.scene); err != nil {
			return nil, err
		}
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if width > 0 && height > 0 {
				e.pendingSize.Store(&[2]int{width, height})
			}
		})
	}

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) System() gi.System {
	return e.system
}

func (e *engine) SetScene(bmp *common.Bitmap) error {
	if err := bmp.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.scene.Store(bmp)
	return nil
}

func (e *engine) Scene() *common.Bitmap {
	return e.scene.Load()
}

func (e *engine) RenderFrame() error {
	scene := e.scene.Load()
	if scene == nil {
		return ErrNoScene
	}

	// Resizes are applied between frames so the surface never changes under an open pass.
	if size := e.pendingSize.Swap(nil); size != nil {
		if err := e.renderer.Resize(size[0], size[1]); err != nil {
			return fmt.Errorf("engine: resize to %dx%d: %w", size[0], size[1], err)
		}
		e.logger.Debug("engine: surface resized", "width", size[0], "height", size[1])
	}

	if err := e.renderer.BeginFrame(); err != nil {
		return err
	}
	if err := e.system.RenderBitmap(scene); err != nil {
		// Close the frame so the renderer stays usable; the GI error is the one reported.
		if endErr := e.renderer.EndFrame(); endErr != nil {
			e.logger.Warn("engine: failed to end aborted frame", "error", endErr)
		}
		return err
	}
	if err := e.renderer.EndFrame(); err != nil {
		return err
	}
	if err := e.renderer.Present(); err != nil {
		return err
	}
	e.frames.Add(1)
	return nil
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) Run() error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)

	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit and flags the window
// for closing. Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
		if e.window != nil {
			e.window.RequestClose()
		}
	})
}

// fail records the first frame error and stops the engine.
func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.logger.Error("engine: frame failed", "frame", e.frames.Load(), "error", err)
	e.signalQuit()
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// Each iteration renders one frame of the current scene. Frames are skipped until a scene is
// set. Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("engine: render goroutine panicked: %v", r))
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			if err := e.RenderFrame(); err != nil && !errors.Is(err, ErrNoScene) {
				e.fail(err)
				return
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled.Load() {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameInterval(fps)
}

// tickInterval converts a tick rate to a ticker period, treating fps <= 0 as 60.
func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}

// frameInterval converts a frame cap to a minimum frame duration, 0 meaning uncapped.
func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
