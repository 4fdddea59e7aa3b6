package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/gi"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
)

const testShaderPath = "../shaders/gi.wgsl"

func newTestEngine(t *testing.T, width, height int, opts ...EngineBuilderOption) Engine {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeHeadless, nil,
		renderer.WithSurfaceSize(width, height),
		renderer.WithFragmentFunc(gi.ReferenceFragment))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Destroy)

	sys, err := gi.NewSystem(r, width, height,
		gi.WithShaderPath(testShaderPath),
		gi.WithShaderValidation(false),
		gi.WithCascadeCount(3))
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	t.Cleanup(func() { _ = sys.Release() })

	e, err := NewEngine(r, sys, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(nil, nil); err == nil {
		t.Error("NewEngine accepted a nil renderer and system")
	}

	e := newTestEngine(t, 8, 8)
	if _, err := NewEngine(e.Renderer(), e.System(), WithScene(&common.Bitmap{Width: 8, Height: 8})); err == nil {
		t.Error("NewEngine accepted a malformed scene")
	}
}

func TestRenderFrame(t *testing.T) {
	e := newTestEngine(t, 8, 8)

	if err := e.RenderFrame(); !errors.Is(err, ErrNoScene) {
		t.Fatalf("RenderFrame without a scene error = %v, want ErrNoScene", err)
	}

	scene := common.NewBitmap(8, 8)
	scene.FillRect(2, 2, 4, 4, common.ColorWhite)
	if err := e.SetScene(scene); err != nil {
		t.Fatalf("SetScene: %v", err)
	}
	if e.Scene() != scene {
		t.Error("Scene does not return the bitmap set")
	}

	before := e.Renderer().Stats()
	for range 2 {
		if err := e.RenderFrame(); err != nil {
			t.Fatalf("RenderFrame: %v", err)
		}
	}
	after := e.Renderer().Stats()

	if e.Frames() != 2 {
		t.Errorf("Frames = %d, want 2", e.Frames())
	}
	if got := after.Frames - before.Frames; got != 2 {
		t.Errorf("renderer frames = %d, want 2", got)
	}
	// Three cascade passes and the composite per frame.
	if got := after.Draws - before.Draws; got != 8 {
		t.Errorf("draws = %d, want 8", got)
	}
	if after.Created() != before.Created() {
		t.Errorf("frames created %d objects", after.Created()-before.Created())
	}

	// The scene's own surface pixels pass through the composite.
	pix, err := e.Renderer().ReadTexture(0)
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	if i := (2*8 + 2) * 4; pix[i] != 255 || pix[i+1] != 255 || pix[i+2] != 255 {
		t.Errorf("surface pixel at (2, 2) = %v, want white", pix[i:i+4])
	}
}

func TestRenderFrameErrorClosesFrame(t *testing.T) {
	e := newTestEngine(t, 8, 8, WithScene(common.NewBitmap(4, 4)))

	if err := e.RenderFrame(); !errors.Is(err, gi.ErrResolutionMismatch) {
		t.Fatalf("RenderFrame error = %v, want ErrResolutionMismatch", err)
	}
	if e.Frames() != 0 {
		t.Errorf("failed frame counted")
	}

	// The aborted frame was ended, so the next one can begin.
	if err := e.SetScene(common.NewBitmap(8, 8)); err != nil {
		t.Fatalf("SetScene: %v", err)
	}
	if err := e.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame after a failed frame: %v", err)
	}
}

func TestRenderFrameAppliesQueuedResize(t *testing.T) {
	e := newTestEngine(t, 8, 8, WithScene(common.NewBitmap(8, 8)))
	e.(*engine).pendingSize.Store(&[2]int{16, 4})

	if err := e.RenderFrame(); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	pix, err := e.Renderer().ReadTexture(0)
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	if len(pix) != 16*4*4 {
		t.Errorf("surface holds %d bytes, want a 16x4 target", len(pix))
	}
	if e.(*engine).pendingSize.Load() != nil {
		t.Error("queued resize not consumed")
	}
}

func TestRunHeadless(t *testing.T) {
	e := newTestEngine(t, 8, 8, WithScene(common.NewBitmap(8, 8)), WithTickRate(1000))

	var ticks atomic.Int32
	e.SetTickCallback(func(float32) { ticks.Add(1) })
	e.SetRenderCallback(func(float32) {
		if e.Frames() >= 3 {
			e.Quit()
		}
	})

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
	if e.Frames() < 3 {
		t.Errorf("Frames = %d, want at least 3", e.Frames())
	}
	if err := e.Run(); err != nil {
		t.Errorf("Run after Quit: %v", err)
	}
}

func TestRunStopsOnFrameError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	e := newTestEngine(t, 8, 8, WithScene(common.NewBitmap(4, 4)), WithLogger(logger))

	done := make(chan error, 1)
	go func() { done <- e.Run() }()

	select {
	case err := <-done:
		if !errors.Is(err, gi.ErrResolutionMismatch) {
			t.Fatalf("Run error = %v, want ErrResolutionMismatch", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop on a frame error")
	}
	if !strings.Contains(logs.String(), "engine: frame failed") {
		t.Errorf("frame error not logged: %q", logs.String())
	}
}

func TestIntervals(t *testing.T) {
	tests := []struct {
		fps       float64
		wantTick  time.Duration
		wantFrame time.Duration
	}{
		{0, time.Second / 60, 0},
		{-5, time.Second / 60, 0},
		{120, time.Second / 120, time.Second / 120},
		{0.5, 2 * time.Second, 2 * time.Second},
	}
	for _, tt := range tests {
		if got := tickInterval(tt.fps); got != tt.wantTick {
			t.Errorf("tickInterval(%g) = %v, want %v", tt.fps, got, tt.wantTick)
		}
		if got := frameInterval(tt.fps); got != tt.wantFrame {
			t.Errorf("frameInterval(%g) = %v, want %v", tt.fps, got, tt.wantFrame)
		}
	}
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, nil))
	SetLogger(l)
	if Logger() != l {
		t.Error("Logger does not return the installed logger")
	}
	SetLogger(nil)
	if Logger() == nil || Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore the silent logger")
	}
}
