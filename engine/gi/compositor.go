package gi

import "github.com/Carmen-Shannon/oxy-gi/engine/renderer"

// compositor draws the merged cascade-0 radiance, composited with the scene, into the active
// render target of the frame.
type compositor struct {
	pipeline  renderer.PipelineID
	uniforms  renderer.BindGroupID
	textures  renderer.BindGroupID
	readsSlot Slot
}

// newCompositor binds the composite to FinalSlot(), the slot cascade 0 always writes, rather
// than the cn mod 2 parity, which names the stale texture when the cascade count is even.
func newCompositor(res *Resources) compositor {
	slot := FinalSlot()
	return compositor{
		pipeline:  res.Pipeline,
		uniforms:  res.CompositeBindGroup,
		textures:  res.TextureBindGroups[slot],
		readsSlot: slot,
	}
}

func (c compositor) drawCall() renderer.DrawCall {
	return renderer.DrawCall{
		Pipeline:    c.pipeline,
		BindGroups:  []renderer.BindGroupID{c.uniforms, c.textures},
		VertexCount: fullScreenVertices,
	}
}

func (c compositor) draw(r renderer.Renderer) error {
	return r.Draw(c.drawCall())
}
