package main

import (
	"errors"
	"flag"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/gi"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg config)
	}{
		{
			name: "defaults",
			check: func(t *testing.T, cfg config) {
				if cfg.width != 256 || cfg.height != 256 || cfg.cascades != 7 || cfg.rays != 4 || cfg.spacing != 1 {
					t.Errorf("defaults = %+v", cfg)
				}
				if !cfg.skyLight || cfg.skyColor != common.ColorWhite || cfg.logLevel != slog.LevelInfo {
					t.Errorf("sky or log defaults = %+v", cfg)
				}
				if !cfg.resizable {
					t.Error("window not resizable by default")
				}
				if w, h := viewSize(cfg, 512); w != 512 || h != 512 {
					t.Errorf("window view = %dx%d, want 512x512", w, h)
				}
				if w, h := viewSize(cfg, 0); w != 256 || h != 256 {
					t.Errorf("headless view = %dx%d, want the GI size", w, h)
				}
			},
		},
		{
			name: "overrides",
			args: []string{"-width", "64", "-height", "32", "-cascades", "3", "-sky=false", "-sky-color", "#336699", "-log-level", "DEBUG", "-out", "x.png"},
			check: func(t *testing.T, cfg config) {
				if cfg.width != 64 || cfg.height != 32 || cfg.cascades != 3 || cfg.skyLight || cfg.outPath != "x.png" {
					t.Errorf("overrides = %+v", cfg)
				}
				if got := cfg.skyColor.RGB8(); got != [3]byte{0x33, 0x66, 0x99} {
					t.Errorf("sky color = %v", got)
				}
				if cfg.logLevel != slog.LevelDebug {
					t.Errorf("log level = %v", cfg.logLevel)
				}
			},
		},
		{
			name: "view",
			args: []string{"-view-width", "800", "-view-height", "600", "-resizable=false"},
			check: func(t *testing.T, cfg config) {
				if w, h := viewSize(cfg, 512); w != 800 || h != 600 {
					t.Errorf("view = %dx%d, want 800x600", w, h)
				}
				if cfg.resizable {
					t.Error("-resizable=false not applied")
				}
				if got := len(windowOptions(cfg)); got != 4 {
					t.Errorf("windowOptions returned %d options, want 4", got)
				}
			},
		},
		{name: "bad resolution", args: []string{"-width", "0"}, wantErr: true},
		{name: "bad view", args: []string{"-view-width", "-1"}, wantErr: true},
		{name: "bad color", args: []string{"-sky-color", "blue"}, wantErr: true},
		{name: "bad level", args: []string{"-log-level", "loud"}, wantErr: true},
		{name: "stray argument", args: []string{"scene.png"}, wantErr: true},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseFlags(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}

	if _, err := parseFlags([]string{"-h"}); err != flag.ErrHelp {
		t.Errorf("-h error = %v, want flag.ErrHelp", err)
	}
}

func TestRunHeadless(t *testing.T) {
	tests := []struct {
		name         string
		view         []string
		wantW, wantH int
	}{
		{"gi size", nil, 24, 16},
		{"doubled view", []string{"-view-width", "48", "-view-height", "32"}, 48, 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "frame.png")
			args := append([]string{
				"-out", out,
				"-width", "24", "-height", "16",
				"-cascades", "4",
				"-shader", "../../shaders/gi.wgsl",
				"-validate=false",
			}, tt.view...)
			cfg, err := parseFlags(args)
			if err != nil {
				t.Fatalf("parseFlags: %v", err)
			}
			if err := runHeadless(cfg); err != nil {
				t.Fatalf("runHeadless: %v", err)
			}

			f, err := os.Open(out)
			if err != nil {
				t.Fatalf("open output: %v", err)
			}
			defer f.Close()
			img, _, err := image.Decode(f)
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if b := img.Bounds(); b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Fatalf("output is %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}

			// The built-in scene's warm light is drawn straight through the composite, scaled
			// to the view.
			bmp := common.BitmapFromImage(img)
			scene := demoScene(24, 16)
			sx, sy := tt.wantW/24, tt.wantH/16
			if got, want := bmp.At(24/5*sx, 16/5*sy), scene.At(24/5, 16/5); got != want {
				t.Errorf("light pixel = %v, want the scene color %v", got, want)
			}
		})
	}
}

func TestRunHeadlessTextureLimit(t *testing.T) {
	cfg, err := parseFlags([]string{
		"-out", filepath.Join(t.TempDir(), "x.png"),
		"-spacing", "0.000001",
		"-shader", "../../shaders/gi.wgsl",
		"-validate=false",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if err := runHeadless(cfg); !errors.Is(err, gi.ErrTextureTooLarge) {
		t.Errorf("runHeadless error = %v, want gi.ErrTextureTooLarge", err)
	}
}

func TestRunHeadlessMissingScene(t *testing.T) {
	cfg, err := parseFlags([]string{"-out", filepath.Join(t.TempDir(), "x.png"), "-scene", "does-not-exist.png"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if err := runHeadless(cfg); err == nil {
		t.Error("runHeadless succeeded without a scene file")
	}
}
