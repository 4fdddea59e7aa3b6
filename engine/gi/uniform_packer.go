package gi

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/lifetime"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
)

var (
	// ErrPackerExhausted is returned when Next is called on the last block.
	ErrPackerExhausted = errors.New("gi: uniform packer has no more blocks")

	// ErrPackerClosed is returned when a packer is used after End.
	ErrPackerClosed = errors.New("gi: uniform packer already ended")
)

// uniformPacker is the implementation of the UniformPacker interface.
type uniformPacker struct {
	r      renderer.Renderer
	buffer renderer.BufferID

	blockSize  uint64
	blockCount int
	stride     uint64

	image   []byte
	current int
	ended   bool
}

// UniformPacker lays out a fixed number of equal-size parameter blocks in one uniform buffer.
// Blocks are filled strictly in order: write the current block through Data, take its bind
// group entry from Entry, then move on with Next. End uploads every block with a single buffer
// write.
//
// Blocks are placed at Stride apart so each one can be bound at its own offset.
type UniformPacker interface {
	// Buffer returns the uniform buffer the blocks are packed into.
	//
	// Returns:
	//   - renderer.BufferID: the buffer handle
	Buffer() renderer.BufferID

	// Stride returns the distance in bytes between the starts of consecutive blocks.
	//
	// Returns:
	//   - uint64: the block stride
	Stride() uint64

	// Index returns the index of the current block.
	//
	// Returns:
	//   - int: the block index
	Index() int

	// Data returns the writable CPU view of the current block, exactly blockSize bytes long.
	//
	// Returns:
	//   - []byte: the block view
	//   - error: ErrPackerClosed after End
	Data() ([]byte, error)

	// Entry returns the bind group entry binding the current block.
	//
	// Returns:
	//   - renderer.BindGroupEntry: the buffer, offset and size of the current block
	//   - error: ErrPackerClosed after End
	Entry() (renderer.BindGroupEntry, error)

	// Next advances to the following block.
	//
	// Returns:
	//   - error: ErrPackerExhausted on the last block, ErrPackerClosed after End
	Next() error

	// End uploads the packed blocks with one buffer write. The packer is unusable afterwards.
	//
	// Returns:
	//   - error: ErrPackerClosed if already ended, or the write error
	End() error
}

var _ UniformPacker = &uniformPacker{}

// BeginUniformPacker creates the uniform buffer for blockCount blocks of blockSize bytes and
// returns a packer positioned on block 0. The buffer is released when lt is destroyed.
//
// Parameters:
//   - r: the renderer that creates and fills the buffer
//   - blockSize: the size of one block in bytes
//   - blockCount: the number of blocks
//   - lt: the scope owning the buffer
//
// Returns:
//   - UniformPacker: the packer
//   - error: an error if the sizes are invalid or the buffer cannot be created
func BeginUniformPacker(r renderer.Renderer, blockSize uint64, blockCount int, lt *lifetime.Lifetime) (UniformPacker, error) {
	if blockSize == 0 || blockCount <= 0 {
		return nil, fmt.Errorf("gi: uniform packer needs a positive block size and count, got %d x %d", blockSize, blockCount)
	}
	stride := common.RoundUpAlign(r.MinUniformBufferOffsetAlignment(), blockSize)
	size := stride * uint64(blockCount)

	buffer, err := r.CreateBuffer(renderer.BufferDescriptor{Label: "GI Uniforms", Size: size})
	if err != nil {
		return nil, fmt.Errorf("gi: failed to create uniform buffer: %w", err)
	}
	if err := lt.Add(func() error { return r.Release(buffer) }); err != nil {
		return nil, err
	}

	return &uniformPacker{
		r:          r,
		buffer:     buffer,
		blockSize:  blockSize,
		blockCount: blockCount,
		stride:     stride,
		image:      make([]byte, size),
	}, nil
}

func (p *uniformPacker) Buffer() renderer.BufferID {
	return p.buffer
}

func (p *uniformPacker) Stride() uint64 {
	return p.stride
}

func (p *uniformPacker) Index() int {
	return p.current
}

func (p *uniformPacker) offset() uint64 {
	return uint64(p.current) * p.stride
}

func (p *uniformPacker) Data() ([]byte, error) {
	if p.ended {
		return nil, ErrPackerClosed
	}
	off := p.offset()
	return p.image[off : off+p.blockSize : off+p.blockSize], nil
}

func (p *uniformPacker) Entry() (renderer.BindGroupEntry, error) {
	if p.ended {
		return renderer.BindGroupEntry{}, ErrPackerClosed
	}
	return renderer.BindGroupEntry{
		Buffer: p.buffer,
		Offset: p.offset(),
		Size:   p.blockSize,
	}, nil
}

func (p *uniformPacker) Next() error {
	if p.ended {
		return ErrPackerClosed
	}
	if p.current+1 >= p.blockCount {
		return ErrPackerExhausted
	}
	p.current++
	return nil
}

func (p *uniformPacker) End() error {
	if p.ended {
		return ErrPackerClosed
	}
	p.ended = true
	if err := p.r.WriteBuffer(p.buffer, 0, p.image); err != nil {
		return fmt.Errorf("gi: failed to upload uniform blocks: %w", err)
	}
	return nil
}
