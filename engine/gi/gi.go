// Package gi renders 2D global illumination with radiance cascades. A System owns the GPU
// objects of the technique, created once, and each frame uploads the scene bitmap, merges the
// cascades top-down through a ping-pong texture pair and composites the result into the
// active render target.
package gi

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/lifetime"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
)

// DefaultShaderPath is the WGSL program loaded when no WithShaderPath option is given.
const DefaultShaderPath = "shaders/gi.wgsl"

var (
	// ErrResolutionMismatch is returned by Render when the bitmap size differs from the size
	// the System was built for. Resolution changes need a new System.
	ErrResolutionMismatch = errors.New("gi: resolution differs from initialization")

	// ErrBitmapSize is returned by Render when the bitmap length is not width*height*3.
	ErrBitmapSize = errors.New("gi: bitmap size does not match its dimensions")

	// ErrReleased is returned by Render after Release.
	ErrReleased = errors.New("gi: system released")

	// ErrTextureTooLarge is returned by NewSystem when the cascade textures would exceed the
	// renderer's texture size limit. A larger probe spacing or fewer rays shrinks them.
	ErrTextureTooLarge = errors.New("gi: cascade texture exceeds the renderer limit")
)

// systemSeq numbers Systems so their pipeline keys never collide in a shared renderer.
var systemSeq atomic.Uint64

// system is the implementation of the System interface.
type system struct {
	id     uint64
	r      renderer.Renderer
	lt     *lifetime.Lifetime
	parent *lifetime.Lifetime
	logger *slog.Logger

	width, height  int
	cn             int
	d0             float32
	r0             int
	skyLight       bool
	skyColor       common.Color
	shaderPath     string
	validateShader bool

	res        Resources
	scheduler  cascadeScheduler
	compositor compositor
	released   bool
}

// System is one radiance-cascade GI instance bound to a renderer and a fixed scene resolution.
// It is not safe for concurrent use; frames are rendered from one goroutine.
type System interface {
	// Render uploads bitmap into the input texture, records the cascade passes and records the
	// composite draw into the active render target. It must be called between the renderer's
	// BeginFrame and EndFrame. Renderer errors are returned unchanged.
	//
	// Parameters:
	//   - bitmap: packed row-major RGB pixels, 3 bytes each
	//   - width: the bitmap width, equal to the width given to NewSystem
	//   - height: the bitmap height, equal to the height given to NewSystem
	//
	// Returns:
	//   - error: ErrResolutionMismatch, ErrBitmapSize, ErrReleased, or a renderer error
	Render(bitmap []byte, width, height int) error

	// RenderBitmap is Render for a common.Bitmap.
	//
	// Parameters:
	//   - bmp: the scene bitmap
	//
	// Returns:
	//   - error: as Render
	RenderBitmap(bmp *common.Bitmap) error

	// Resources returns a copy of the GPU object handles the System renders with.
	//
	// Returns:
	//   - Resources: the handle set
	Resources() Resources

	// Release destroys the System's GPU objects. Releasing twice is a no-op.
	//
	// Returns:
	//   - error: the joined release errors
	Release() error
}

var _ System = &system{}

// NewSystem creates every GPU object of the technique exactly once: bind group layouts, the
// pipeline compiled from the shader, the packed uniform buffer with one bind group per block,
// the input texture, the ping-pong pair and the two texture bind groups. On error, everything
// created so far is released.
//
// Parameters:
//   - r: the renderer creating and drawing the objects
//   - width: the scene width in pixels
//   - height: the scene height in pixels
//   - opts: variadic list of SystemBuilderOption functions to configure the System
//
// Returns:
//   - System: the created system
//   - error: an error if the configuration is invalid or any object cannot be created
func NewSystem(r renderer.Renderer, width, height int, opts ...SystemBuilderOption) (System, error) {
	s := &system{
		id:             systemSeq.Add(1),
		r:              r,
		logger:         common.Logger(),
		width:          width,
		height:         height,
		cn:             7,
		d0:             1,
		r0:             4,
		skyLight:       true,
		skyColor:       common.ColorWhite,
		shaderPath:     DefaultShaderPath,
		validateShader: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	s.lt = lifetime.New(fmt.Sprintf("gi system %d", s.id))
	ri := &resourceInitializer{r: r, lt: s.lt, logger: s.logger, cfg: s}
	res, err := ri.init()
	if err != nil {
		if derr := s.lt.Destroy(); derr != nil {
			s.logger.Warn("gi: failed to release partial resources", "error", derr)
		}
		return nil, err
	}
	s.res = res
	s.scheduler = newCascadeScheduler(&s.res, s.cn)
	s.compositor = newCompositor(&s.res)

	if s.parent != nil {
		if err := s.parent.Add(s.lt.Destroy); err != nil {
			return nil, fmt.Errorf("gi: owning scope: %w", err)
		}
	}

	s.logger.Info("gi: system initialized",
		"width", width, "height", height, "cascades", s.cn,
		"d0", s.d0, "r0", s.r0, "n0", res.Params.N0,
		"objects", s.lt.Len(), "composite_slot", s.compositor.readsSlot.String())
	return s, nil
}

func (s *system) validate() error {
	switch {
	case s.r == nil:
		return errors.New("gi: renderer is nil")
	case s.width <= 0 || s.height <= 0:
		return fmt.Errorf("gi: invalid resolution %dx%d", s.width, s.height)
	case s.cn < 1:
		return fmt.Errorf("gi: cascade count %d, need at least 1", s.cn)
	case s.cn > 16:
		return fmt.Errorf("gi: cascade count %d exceeds 16", s.cn)
	case !(s.d0 > 0):
		return fmt.Errorf("gi: probe spacing %g, need > 0", s.d0)
	case s.r0 < 1:
		return fmt.Errorf("gi: ray count %d, need at least 1", s.r0)
	case s.shaderPath == "":
		return errors.New("gi: empty shader path")
	}
	return s.validateTextureSize()
}

// validateTextureSize checks the (r0·n0)×n0 ping-pong size against the renderer's texture
// limit while it is still a float, before anything is narrowed to int32.
func (s *system) validateTextureSize() error {
	limit := min(float64(s.r.MaxTextureDimension2D()), math.MaxInt32)
	n0 := math.Floor(float64(float32(2*s.width) / s.d0))
	switch {
	case n0 < 1:
		return fmt.Errorf("gi: probe spacing %g leaves no probes across width %d", s.d0, s.width)
	case n0 > limit:
		return fmt.Errorf("%w: %g probes per side at spacing %g, limit %g", ErrTextureTooLarge, n0, s.d0, limit)
	case float64(s.r0)*n0 > limit:
		return fmt.Errorf("%w: %d rays x %g probes, limit %g", ErrTextureTooLarge, s.r0, n0, limit)
	}
	return nil
}

func (s *system) Render(bitmap []byte, width, height int) error {
	if s.released {
		return ErrReleased
	}
	if width != s.width || height != s.height {
		return fmt.Errorf("%w: got %dx%d, initialized with %dx%d", ErrResolutionMismatch, width, height, s.width, s.height)
	}
	if want := width * height * common.BytesPerPixelRGB; len(bitmap) != want {
		return fmt.Errorf("%w: %d bytes for %dx%d, want %d", ErrBitmapSize, len(bitmap), width, height, want)
	}

	if err := s.r.WriteTexture(s.res.Input, bitmap); err != nil {
		return err
	}
	if err := s.scheduler.run(s.r); err != nil {
		return err
	}
	return s.compositor.draw(s.r)
}

func (s *system) RenderBitmap(bmp *common.Bitmap) error {
	if bmp == nil {
		return fmt.Errorf("%w: nil bitmap", ErrBitmapSize)
	}
	return s.Render(bmp.Pix, bmp.Width, bmp.Height)
}

func (s *system) Resources() Resources {
	return s.res.clone()
}

func (s *system) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	err := s.lt.Destroy()
	if err != nil {
		s.logger.Warn("gi: release errors", "error", err)
	}
	return err
}
