// Package render is the Trail/Decay, Bloom, and Render stage (spec.md
// §4.8): trail decay and bloom are compute passes over the display grid,
// the final phosphor composite is a fullscreen-triangle render pass
// against the swapchain view. Grounded on voxelrt/rt/app/app.go's
// fullscreen blit pipeline (vs_main/fs_main, no vertex buffer,
// PrimitiveTopologyTriangleList, single color target) and its
// GetCurrentTexture -> CreateView -> BeginRenderPass -> Present loop.
package render

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/gpu"
	"github.com/gekko3d/atomfield/shaders"
)

// Engine owns the decay, two-pass bloom, and final composite pipelines.
type Engine struct {
	ctx            *gpu.Context
	reg            *buffers.Registry
	densityW, densityH uint32

	decayPipeline *wgpu.ComputePipeline
	bgDecay       *wgpu.BindGroup

	bloomPipeline *wgpu.ComputePipeline
	bgBloom       *wgpu.BindGroup

	renderPipeline *wgpu.RenderPipeline
	bgRender       *wgpu.BindGroup
}

func New(ctx *gpu.Context, reg *buffers.Registry, densityW, densityH uint32, decay float32) (*Engine, error) {
	e := &Engine{ctx: ctx, reg: reg, densityW: densityW, densityH: densityH}
	constants := gpu.Constants{DensityW: densityW, DensityH: densityH, Decay: decay}

	if err := e.buildDecay(constants); err != nil {
		return nil, err
	}
	if err := e.buildBloom(constants); err != nil {
		return nil, err
	}
	if err := e.buildRender(constants); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) buildDecay(c gpu.Constants) error {
	module, err := e.ctx.CreateShaderModule("decay", shaders.DecayWGSL, c)
	if err != nil {
		return err
	}
	bgl, err := e.ctx.CreateBindGroupLayout("decay-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return err
	}
	layout, err := e.ctx.CreatePipelineLayout("decay-layout", bgl)
	if err != nil {
		return err
	}
	e.decayPipeline, err = e.ctx.CreateComputePipeline("decay-pipeline", module, "main", layout)
	if err != nil {
		return err
	}
	e.bgDecay, err = e.ctx.CreateBindGroup("decay-bg", bgl, []wgpu.BindGroupEntry{
		gpu.BufferEntry(0, e.reg.DensityBuf),
		gpu.BufferEntry(1, e.reg.TrailBuf),
	})
	return err
}

func (e *Engine) buildBloom(c gpu.Constants) error {
	module, err := e.ctx.CreateShaderModule("bloom", shaders.BloomWGSL, c)
	if err != nil {
		return err
	}
	bgl, err := e.ctx.CreateBindGroupLayout("bloom-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeUniform),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeStorage),
		gpu.ComputeBufferLayoutEntry(3, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return err
	}
	layout, err := e.ctx.CreatePipelineLayout("bloom-layout", bgl)
	if err != nil {
		return err
	}
	e.bloomPipeline, err = e.ctx.CreateComputePipeline("bloom-pipeline", module, "main", layout)
	if err != nil {
		return err
	}
	e.bgBloom, err = e.ctx.CreateBindGroup("bloom-bg", bgl, []wgpu.BindGroupEntry{
		gpu.BufferEntry(0, e.reg.BloomParams),
		gpu.BufferEntry(1, e.reg.TrailBuf),
		gpu.BufferEntry(2, e.reg.BloomScratch),
		gpu.BufferEntry(3, e.reg.BloomBuf),
	})
	return err
}

func (e *Engine) buildRender(c gpu.Constants) error {
	module, err := e.ctx.CreateShaderModule("render", shaders.RenderWGSL, c)
	if err != nil {
		return err
	}
	bgl, err := e.ctx.CreateBindGroupLayout("render-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeUniform),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(3, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(4, wgpu.BufferBindingTypeReadOnlyStorage),
	})
	if err != nil {
		return err
	}
	layout, err := e.ctx.CreatePipelineLayout("render-layout", bgl)
	if err != nil {
		return err
	}
	e.renderPipeline, err = e.ctx.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "render-pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    e.ctx.SurfaceConfig.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		Layout: layout,
	})
	if err != nil {
		return fmt.Errorf("%w: render-pipeline: %v", gpu.ErrPipelineBuild, err)
	}
	e.bgRender, err = e.ctx.CreateBindGroup("render-bg", bgl, []wgpu.BindGroupEntry{
		gpu.BufferEntry(0, e.reg.RenderParams),
		gpu.BufferEntry(1, e.reg.TrailBuf),
		gpu.BufferEntry(2, e.reg.VelBuf),
		gpu.BufferEntry(3, e.reg.DensityBuf),
		gpu.BufferEntry(4, e.reg.BloomBuf),
	})
	return err
}

// DispatchDecay records the trail-decay pass.
func (e *Engine) DispatchDecay(encoder *wgpu.CommandEncoder) {
	w, h := gpu.Dispatch2D(e.densityW, e.densityH)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(e.decayPipeline)
	pass.SetBindGroup(0, e.bgDecay, nil)
	pass.DispatchWorkgroups(w, h, 1)
	pass.End()
}

// WriteBloomParams rewrites the bloom uniform for one direction of the
// separable filter; horizontal must be called before vertical since the
// horizontal pass's output (bloom_scratch) feeds the vertical pass.
func (e *Engine) WriteBloomParams(horizontal bool, threshold float32) {
	var h uint32
	if horizontal {
		h = 1
	}
	data := gpu.Uint32SliceToBytes([]uint32{h})
	data = append(data, gpu.Float32SliceToBytes([]float32{threshold, 0, 0})...)
	e.ctx.Queue.WriteBuffer(e.reg.BloomParams, 0, data)
}

// DispatchBloomPass records one direction of the separable bloom filter.
// Caller must call WriteBloomParams(true, ...) then DispatchBloomPass,
// then WriteBloomParams(false, ...) then DispatchBloomPass again.
func (e *Engine) DispatchBloomPass(encoder *wgpu.CommandEncoder) {
	w, h := gpu.Dispatch2D(e.densityW, e.densityH)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(e.bloomPipeline)
	pass.SetBindGroup(0, e.bgBloom, nil)
	pass.DispatchWorkgroups(w, h, 1)
	pass.End()
}

// WriteRenderParams rewrites the composite-pass uniform.
func (e *Engine) WriteRenderParams(tref float32, bloomEnabled bool) {
	var b uint32
	if bloomEnabled {
		b = 1
	}
	data := gpu.Float32SliceToBytes([]float32{tref})
	data = append(data, gpu.Uint32SliceToBytes([]uint32{b})...)
	data = append(data, gpu.Float32SliceToBytes([]float32{0, 0})...)
	e.ctx.Queue.WriteBuffer(e.reg.RenderParams, 0, data)
}

// DispatchComposite records the final fullscreen-triangle render pass
// against view (the swapchain's current texture view).
func (e *Engine) DispatchComposite(encoder *wgpu.CommandEncoder, view *wgpu.TextureView) error {
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	pass.SetPipeline(e.renderPipeline)
	pass.SetBindGroup(0, e.bgRender, nil)
	pass.Draw(6, 1, 0, 0)
	return pass.End()
}
