// Package splat is the Splat Engine (spec.md §4.7): a per-atom kernel that
// atomically accumulates density and speed into the display grid.
// Grounded on voxelrt/rt/gpu/manager.go's single-bind-group compute
// dispatch pattern; the 3x3 Gaussian footprint lives in the shader, the
// Go side only wires buffers and dispatches.
package splat

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/gpu"
	"github.com/gekko3d/atomfield/shaders"
)

const WorkgroupSize = 256

type Engine struct {
	ctx *gpu.Context
	n   uint32

	pipeline *wgpu.ComputePipeline
	bg       [2]*wgpu.BindGroup // bg[parity]: atoms = reg.Atoms[parity]
}

func New(ctx *gpu.Context, reg *buffers.Registry, n, densityW, densityH uint32, maxVel float32) (*Engine, error) {
	e := &Engine{ctx: ctx, n: n}

	constants := gpu.Constants{N: n, DensityW: densityW, DensityH: densityH, MaxVel: maxVel}
	module, err := ctx.CreateShaderModule("splat", shaders.SplatWGSL, constants)
	if err != nil {
		return nil, err
	}

	bgl, err := ctx.CreateBindGroupLayout("splat-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return nil, err
	}
	layout, err := ctx.CreatePipelineLayout("splat-layout", bgl)
	if err != nil {
		return nil, err
	}
	e.pipeline, err = ctx.CreateComputePipeline("splat-pipeline", module, "main", layout)
	if err != nil {
		return nil, err
	}

	for parity := 0; parity < 2; parity++ {
		e.bg[parity], err = ctx.CreateBindGroup("splat-bg", bgl, []wgpu.BindGroupEntry{
			gpu.BufferEntry(0, reg.Atoms[parity]),
			gpu.BufferEntry(1, reg.DensityBuf),
			gpu.BufferEntry(2, reg.VelBuf),
		})
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Dispatch records the splat pass into encoder. parity must match the
// slot physics just wrote (the atom buffer carrying this frame's
// positions), per spec.md §5's per-frame ordering: physics -> splat.
func (e *Engine) Dispatch(encoder *wgpu.CommandEncoder, parity int) {
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(e.pipeline)
	pass.SetBindGroup(0, e.bg[parity], nil)
	pass.DispatchWorkgroups(gpu.Dispatch1D(e.n, WorkgroupSize), 1, 1)
	pass.End()
}
