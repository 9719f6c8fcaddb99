// Package physics is the Physics Engine (spec.md §4.6): a single per-atom
// compute kernel, workgroup size 256, selecting wander vs. morph mode from
// the has_targets field of the sim-parameters uniform. Grounded on
// physics.go's PhysicsSystem for the general sub-stepped integration
// style, translated from the teacher's CPU 3D rigid-body kernel into a
// GPU 2D per-atom dispatch (no colliders, no contacts in this domain).
package physics

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/gpu"
	"github.com/gekko3d/atomfield/shaders"
)

const WorkgroupSize = 256

// Engine owns the physics compute pipeline and its two ping-pong bind
// groups (atoms_in/atoms_out swap identity by frame parity; pre-built
// once at startup per spec.md §9's "never allocate bind groups per
// frame" rule).
type Engine struct {
	ctx *gpu.Context
	reg *buffers.Registry
	n   uint32

	pipeline *wgpu.ComputePipeline
	bg       [2]*wgpu.BindGroup // bg[parity]: atoms_in=Atoms[parity], atoms_out=Atoms[parity^1]
}

func New(ctx *gpu.Context, reg *buffers.Registry, n uint32, maxVel, bound float32) (*Engine, error) {
	e := &Engine{ctx: ctx, reg: reg, n: n}

	constants := gpu.Constants{N: n, MaxVel: maxVel, Bound: bound}
	module, err := ctx.CreateShaderModule("physics", shaders.PhysicsWGSL, constants)
	if err != nil {
		return nil, err
	}

	bgl, err := ctx.CreateBindGroupLayout("physics-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeUniform),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeStorage),
		gpu.ComputeBufferLayoutEntry(3, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(4, wgpu.BufferBindingTypeReadOnlyStorage),
	})
	if err != nil {
		return nil, err
	}
	layout, err := ctx.CreatePipelineLayout("physics-layout", bgl)
	if err != nil {
		return nil, err
	}
	e.pipeline, err = ctx.CreateComputePipeline("physics-pipeline", module, "main", layout)
	if err != nil {
		return nil, err
	}

	for parity := 0; parity < 2; parity++ {
		in, out := reg.Atoms[parity], reg.Atoms[parity^1]
		e.bg[parity], err = ctx.CreateBindGroup(fmt.Sprintf("physics-bg-%d", parity), bgl, []wgpu.BindGroupEntry{
			gpu.BufferEntry(0, reg.SimParams),
			gpu.BufferEntry(1, in),
			gpu.BufferEntry(2, out),
			gpu.BufferEntry(3, reg.Source),
			gpu.BufferEntry(4, reg.Target),
		})
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Dispatch records the physics pass into encoder. parity selects which
// atom buffer is read (physics reads slot frame&1, writes the other),
// per spec.md §5's ping-pong discipline.
func (e *Engine) Dispatch(encoder *wgpu.CommandEncoder, parity int) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(e.pipeline)
	pass.SetBindGroup(0, e.bg[parity], nil)
	pass.DispatchWorkgroups(gpu.Dispatch1D(e.n, WorkgroupSize), 1, 1)
	pass.End()
}
