package gi

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gi/common"
	"github.com/Carmen-Shannon/oxy-gi/engine/renderer"
)

// Slot names one texture of the ping-pong pair.
type Slot int

const (
	// SlotA is the ping-pong texture read by even cascades.
	SlotA Slot = iota

	// SlotB is the ping-pong texture read by odd cascades and written by cascade 0.
	SlotB
)

// SlotOf returns the slot cascade i reads from.
func SlotOf(i int) Slot {
	if i%2 == 0 {
		return SlotA
	}
	return SlotB
}

// Other returns the opposite slot of the pair.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Pass is one cascade draw: uniform block Cascade, texture bind group Read, output texture Write.
type Pass struct {
	Cascade int
	Read    Slot
	Write   Slot
}

// Schedule returns the cascade passes of one frame in submission order, from cascade cn-1 down
// to cascade 0. Pass i reads SlotOf(i) and writes SlotOf(i).Other(), so each pass reads what
// the previous one wrote.
//
// Parameters:
//   - cn: the cascade count
//
// Returns:
//   - []Pass: the passes, empty for cn <= 0
func Schedule(cn int) []Pass {
	if cn <= 0 {
		return nil
	}
	passes := make([]Pass, 0, cn)
	for i := cn - 1; i >= 0; i-- {
		read := SlotOf(i)
		passes = append(passes, Pass{Cascade: i, Read: read, Write: read.Other()})
	}
	return passes
}

// ClearSlot returns the slot cleared before the first pass of a frame. It is the slot the first
// pass reads, so the topmost cascade merges against zero radiance.
//
// Parameters:
//   - cn: the cascade count, at least 1
//
// Returns:
//   - Slot: SlotOf(cn-1)
func ClearSlot(cn int) Slot {
	return SlotOf(cn - 1)
}

// FinalSlot returns the slot written by the last pass of a frame, which the compositor reads.
// Cascade 0 is always the last pass, so this is SlotB for every cascade count.
//
// Returns:
//   - Slot: SlotOf(0).Other()
func FinalSlot() Slot {
	return SlotOf(0).Other()
}

// cascadeScheduler records the per-frame clear and cascade passes of a System. The draw calls
// are built once from the immutable Resources.
type cascadeScheduler struct {
	clear renderer.TextureID
	calls []renderer.DrawCall
}

func newCascadeScheduler(res *Resources, cn int) cascadeScheduler {
	passes := Schedule(cn)
	calls := make([]renderer.DrawCall, len(passes))
	for i, p := range passes {
		calls[i] = renderer.DrawCall{
			Pipeline:    res.Pipeline,
			BindGroups:  []renderer.BindGroupID{res.CascadeBindGroups[p.Cascade], res.TextureBindGroups[p.Read]},
			VertexCount: fullScreenVertices,
			Output:      res.PingPong[p.Write],
		}
	}
	return cascadeScheduler{
		clear: res.PingPong[ClearSlot(cn)],
		calls: calls,
	}
}

// run clears the first pass's input and records every pass in order. Errors from the
// renderer are returned unchanged.
func (s cascadeScheduler) run(r renderer.Renderer) error {
	if err := r.ClearTexture(s.clear, common.ColorTransparent); err != nil {
		return err
	}
	for _, call := range s.calls {
		if err := r.Draw(call); err != nil {
			return err
		}
	}
	return nil
}
