// Command oxy-gi lights a 2D scene with radiance-cascade global illumination.
//
// By default it opens a window showing the built-in scene, or the image given with -scene,
// and lets the scene be painted with the mouse: the left button paints light, the right
// button erases, keys 1 to 6 pick a color, the wheel sizes the brush, C clears, R restores
// the original scene and P toggles the profiler.
//
// With -out it renders a single frame on the CPU reference backend and writes it as PNG,
// BMP or TIFF instead of opening a window.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine"
	"github.com/Carmen-Shannon/oxy-gi/engine/gi"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gi/engine/window"
)

// config is the parsed command line.
type config struct {
	scenePath  string
	outPath    string
	width      int
	height     int
	viewWidth  int
	viewHeight int
	resizable  bool
	cascades   int
	spacing    float64
	rays       int
	skyLight   bool
	skyColor   common.Color
	shaderPath string
	validate   bool
	fps        float64
	vsync      bool
	software   bool
	profile    bool
	logLevel   slog.Level
}

// GLFW requires its calls on the main thread; locking in init pins the main goroutine to it.
func init() {
	runtime.LockOSThread()
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.logLevel}))
	engine.SetLogger(logger)

	if cfg.outPath != "" {
		err = runHeadless(cfg)
	} else {
		err = runWindow(cfg)
	}
	if err != nil {
		logger.Error("oxy-gi failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (config, error) {
	cfg := config{skyColor: common.ColorWhite, logLevel: slog.LevelInfo}
	fs := flag.NewFlagSet("oxy-gi", flag.ContinueOnError)

	fs.StringVar(&cfg.scenePath, "scene", "", "scene image (PNG, JPEG, BMP, TIFF or WebP); empty uses the built-in scene")
	fs.StringVar(&cfg.outPath, "out", "", "render one frame on the CPU and write it to this .png, .bmp or .tiff file")
	fs.IntVar(&cfg.width, "width", 256, "GI resolution width; the scene is resampled to it")
	fs.IntVar(&cfg.height, "height", 256, "GI resolution height")
	fs.IntVar(&cfg.viewWidth, "view-width", 0, "output width; 0 uses the GI width, at least 512 in a window")
	fs.IntVar(&cfg.viewHeight, "view-height", 0, "output height; 0 uses the GI height, at least 512 in a window")
	fs.BoolVar(&cfg.resizable, "resizable", true, "let the window be resized")
	fs.IntVar(&cfg.cascades, "cascades", 7, "cascade count")
	fs.Float64Var(&cfg.spacing, "spacing", 1, "cascade 0 probe spacing factor d0")
	fs.IntVar(&cfg.rays, "rays", 4, "cascade 0 rays per probe r0")
	fs.BoolVar(&cfg.skyLight, "sky", true, "light the scene from outside its bounds")
	sky := fs.String("sky-color", "ffffff", "sky color as RRGGBB hex")
	fs.StringVar(&cfg.shaderPath, "shader", gi.DefaultShaderPath, "GI shader path")
	fs.BoolVar(&cfg.validate, "validate", true, "validate the shader with naga before compiling")
	fs.Float64Var(&cfg.fps, "fps", 0, "render frame cap, 0 for uncapped")
	fs.BoolVar(&cfg.vsync, "vsync", true, "wait for vertical blank when presenting")
	fs.BoolVar(&cfg.software, "software", false, "force the software fallback adapter")
	fs.BoolVar(&cfg.profile, "profile", false, "log frame statistics every second")
	level := fs.String("log-level", "info", "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 {
		return config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if cfg.width <= 0 || cfg.height <= 0 {
		return config{}, fmt.Errorf("invalid resolution %dx%d", cfg.width, cfg.height)
	}
	if cfg.viewWidth < 0 || cfg.viewHeight < 0 {
		return config{}, fmt.Errorf("invalid view size %dx%d", cfg.viewWidth, cfg.viewHeight)
	}

	var err error
	if cfg.skyColor, err = parseHexColor(*sky); err != nil {
		return config{}, err
	}
	if err := cfg.logLevel.UnmarshalText([]byte(*level)); err != nil {
		return config{}, fmt.Errorf("invalid -log-level: %w", err)
	}
	return cfg, nil
}

// parseHexColor parses RRGGBB, with or without a leading '#', into an opaque color.
func parseHexColor(s string) (common.Color, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return common.Color{}, fmt.Errorf("color %q is not RRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return common.Color{}, fmt.Errorf("color %q is not RRGGBB: %w", s, err)
	}
	return common.Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
		A: 1,
	}, nil
}

// loadScene returns the scene bitmap at the GI resolution.
func loadScene(cfg config) (*common.Bitmap, error) {
	if cfg.scenePath == "" {
		return demoScene(cfg.width, cfg.height), nil
	}
	return common.LoadBitmap(cfg.scenePath, cfg.width, cfg.height)
}

// viewSize returns the output size: the -view-width/-view-height flags, or the GI resolution
// raised to minSide.
func viewSize(cfg config, minSide int) (int, int) {
	w, h := cfg.viewWidth, cfg.viewHeight
	if w == 0 {
		w = max(cfg.width, minSide)
	}
	if h == 0 {
		h = max(cfg.height, minSide)
	}
	return w, h
}

func windowOptions(cfg config) []window.WindowBuilderOption {
	w, h := viewSize(cfg, 512)
	return []window.WindowBuilderOption{
		window.WithTitle("oxy-gi"),
		window.WithWidth(w),
		window.WithHeight(h),
		window.WithResizable(cfg.resizable),
	}
}

func systemOptions(cfg config) []gi.SystemBuilderOption {
	return []gi.SystemBuilderOption{
		gi.WithCascadeCount(cfg.cascades),
		gi.WithProbeSpacing(float32(cfg.spacing)),
		gi.WithRayCount(cfg.rays),
		gi.WithSkyLight(cfg.skyLight),
		gi.WithSkyColor(cfg.skyColor),
		gi.WithShaderPath(cfg.shaderPath),
		gi.WithShaderValidation(cfg.validate),
	}
}

// runHeadless renders one frame with the CPU reference fragment and writes the surface.
func runHeadless(cfg config) error {
	scene, err := loadScene(cfg)
	if err != nil {
		return err
	}

	viewW, viewH := viewSize(cfg, 0)
	r, err := renderer.NewRenderer(renderer.BackendTypeHeadless, nil,
		renderer.WithSurfaceSize(viewW, viewH),
		renderer.WithFragmentFunc(gi.ReferenceFragment),
	)
	if err != nil {
		return err
	}
	defer r.Destroy()

	sys, err := gi.NewSystem(r, cfg.width, cfg.height, systemOptions(cfg)...)
	if err != nil {
		return err
	}
	defer sys.Release()

	eng, err := engine.NewEngine(r, sys, engine.WithScene(scene))
	if err != nil {
		return err
	}
	if err := eng.RenderFrame(); err != nil {
		return err
	}

	pix, err := r.ReadTexture(0)
	if err != nil {
		return err
	}
	img, err := common.ImageFromRGBA(pix, viewW, viewH)
	if err != nil {
		return err
	}
	if err := common.SaveImage(cfg.outPath, img); err != nil {
		return err
	}
	engine.Logger().Info("frame written", "path", cfg.outPath, "width", viewW, "height", viewH)
	return nil
}

// runWindow opens a window and runs the interactive frame loop until it closes.
func runWindow(cfg config) error {
	scene, err := loadScene(cfg)
	if err != nil {
		return err
	}

	// ── Window ──────────────────────────────────────────────────────────
	win, err := window.NewWindow(windowOptions(cfg)...)
	if err != nil {
		return err
	}
	defer win.Close()

	// ── Renderer ────────────────────────────────────────────────────────
	presentMode := renderer.PresentModeVSync
	if !cfg.vsync {
		presentMode = renderer.PresentModeUncapped
	}
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, win,
		renderer.WithPresentMode(presentMode),
		renderer.WithForceSoftwareRenderer(cfg.software),
	)
	if err != nil {
		return err
	}
	defer r.Destroy()

	// ── GI ──────────────────────────────────────────────────────────────
	sys, err := gi.NewSystem(r, cfg.width, cfg.height, systemOptions(cfg)...)
	if err != nil {
		return err
	}
	defer sys.Release()

	// ── Engine ──────────────────────────────────────────────────────────
	eng, err := engine.NewEngine(r, sys,
		engine.WithWindow(win),
		engine.WithScene(scene),
		engine.WithProfiling(cfg.profile),
		engine.WithRenderFrameLimit(cfg.fps),
	)
	if err != nil {
		return err
	}
	setupInput(eng, newPainter(scene), cfg.profile)

	return eng.Run()
}

// setupInput wires window input to the painter. Window callbacks run on the main goroutine;
// each edit hands the engine a fresh snapshot.
func setupInput(eng engine.Engine, p *painter, profiling bool) {
	win := eng.Window()
	publish := func() {
		if err := eng.SetScene(p.snapshot()); err != nil {
			engine.Logger().Warn("scene update rejected", "error", err)
		}
	}

	win.SetMouseButtonCallback(func(button window.MouseButton, pressed bool, x, y int32) {
		if !pressed {
			p.release()
			return
		}
		if button != window.MouseButtonLeft && button != window.MouseButtonRight {
			return
		}
		sx, sy := p.toScene(x, y, win.Width(), win.Height())
		if p.press(button == window.MouseButtonLeft, sx, sy) {
			publish()
		}
	})

	win.SetMouseMoveCallback(func(x, y int32) {
		sx, sy := p.toScene(x, y, win.Width(), win.Height())
		if p.drag(sx, sy) {
			publish()
		}
	})

	win.SetScrollCallback(func(delta float32) {
		switch {
		case delta > 0:
			p.grow(1)
		case delta < 0:
			p.grow(-1)
		}
	})

	win.SetKeyDownCallback(func(keyCode uint32) {
		switch keyCode {
		case common.Key1, common.Key2, common.Key3, common.Key4, common.Key5, common.Key6:
			p.selectColor(int(keyCode - common.Key1))
		case common.KeyC:
			p.clear()
			publish()
		case common.KeyR:
			p.reset()
			publish()
		case common.KeyP:
			profiling = !profiling
			if profiling {
				eng.EnableProfiler()
			} else {
				eng.DisableProfiler()
			}
		}
	})
}
