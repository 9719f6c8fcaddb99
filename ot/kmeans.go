// Package ot is the OT Engine (spec.md §4.5): it assigns each source atom
// a target position via hierarchical GPU k-means + centroid-level
// sort-by-angle matching + intra-cluster round-robin pairing, since full
// bipartite optimal transport on N x N is infeasible at N~1.5M.
package ot

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/gpu"
	"github.com/gekko3d/atomfield/shaders"
)

// kmeansRunner owns the three k-means compute pipelines and their bind
// groups, shared by both the source-cloud and target-cloud runs (the
// registry's OT scratch buffers are reused across both calls, never
// allocated per call, per spec.md §9's zero-transient-allocation note).
type kmeansRunner struct {
	ctx *gpu.Context
	reg *buffers.Registry
	n   uint32
	k   uint32
	iter int

	assignPipeline *wgpu.ComputePipeline
	accumPipeline  *wgpu.ComputePipeline
	dividePipeline *wgpu.ComputePipeline

	bgAssign *wgpu.BindGroup
	bgAccum  *wgpu.BindGroup
	bgDivide *wgpu.BindGroup
}

func newKMeansRunner(ctx *gpu.Context, reg *buffers.Registry, n, k uint32, iter int, scale int32) (*kmeansRunner, error) {
	r := &kmeansRunner{ctx: ctx, reg: reg, n: n, k: k, iter: iter}
	constants := gpu.Constants{N: n, K: k, Scale: scale}

	if err := r.buildAssign(constants); err != nil {
		return nil, err
	}
	if err := r.buildAccumulate(constants); err != nil {
		return nil, err
	}
	if err := r.buildDivide(constants); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *kmeansRunner) buildAssign(c gpu.Constants) error {
	module, err := r.ctx.CreateShaderModule("kmeans-assign", shaders.KMeansAssignWGSL, c)
	if err != nil {
		return err
	}
	bgl, err := r.ctx.CreateBindGroupLayout("kmeans-assign-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return err
	}
	layout, err := r.ctx.CreatePipelineLayout("kmeans-assign-layout", bgl)
	if err != nil {
		return err
	}
	r.assignPipeline, err = r.ctx.CreateComputePipeline("kmeans-assign-pipeline", module, "main", layout)
	if err != nil {
		return err
	}
	r.bgAssign, err = r.ctx.CreateBindGroup("kmeans-assign-bg", bgl, []wgpu.BindGroupEntry{
		gpu.BufferEntry(0, r.reg.OtPositions),
		gpu.BufferEntry(1, r.reg.OtCentroids),
		gpu.BufferEntry(2, r.reg.OtLabels),
	})
	return err
}

func (r *kmeansRunner) buildAccumulate(c gpu.Constants) error {
	module, err := r.ctx.CreateShaderModule("kmeans-accumulate", shaders.KMeansAccumulateWGSL, c)
	if err != nil {
		return err
	}
	bgl, err := r.ctx.CreateBindGroupLayout("kmeans-accumulate-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeStorage),
		gpu.ComputeBufferLayoutEntry(3, wgpu.BufferBindingTypeStorage),
		gpu.ComputeBufferLayoutEntry(4, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return err
	}
	layout, err := r.ctx.CreatePipelineLayout("kmeans-accumulate-layout", bgl)
	if err != nil {
		return err
	}
	r.accumPipeline, err = r.ctx.CreateComputePipeline("kmeans-accumulate-pipeline", module, "main", layout)
	if err != nil {
		return err
	}
	r.bgAccum, err = r.ctx.CreateBindGroup("kmeans-accumulate-bg", bgl, []wgpu.BindGroupEntry{
		gpu.BufferEntry(0, r.reg.OtPositions),
		gpu.BufferEntry(1, r.reg.OtLabels),
		gpu.BufferEntry(2, r.reg.OtSumX),
		gpu.BufferEntry(3, r.reg.OtSumY),
		gpu.BufferEntry(4, r.reg.OtCounts),
	})
	return err
}

func (r *kmeansRunner) buildDivide(c gpu.Constants) error {
	module, err := r.ctx.CreateShaderModule("kmeans-divide", shaders.KMeansDivideWGSL, c)
	if err != nil {
		return err
	}
	bgl, err := r.ctx.CreateBindGroupLayout("kmeans-divide-bgl", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(3, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return err
	}
	layout, err := r.ctx.CreatePipelineLayout("kmeans-divide-layout", bgl)
	if err != nil {
		return err
	}
	r.dividePipeline, err = r.ctx.CreateComputePipeline("kmeans-divide-pipeline", module, "main", layout)
	if err != nil {
		return err
	}
	r.bgDivide, err = r.ctx.CreateBindGroup("kmeans-divide-bg", bgl, []wgpu.BindGroupEntry{
		gpu.BufferEntry(0, r.reg.OtSumX),
		gpu.BufferEntry(1, r.reg.OtSumY),
		gpu.BufferEntry(2, r.reg.OtCounts),
		gpu.BufferEntry(3, r.reg.OtCentroids),
	})
	return err
}

// run executes spec.md §4.5.1 against whatever cloud is currently written
// into reg.OtPositions: seed centroids, ITER assign/accumulate/divide
// rounds (accumulators cleared via host-queue writes between rounds,
// never an in-kernel store, per the design notes' ordering pitfall), then
// one final assign-only pass. Returns the converged centroids and labels.
func (r *kmeansRunner) run(ctx context.Context, points []mgl32.Vec2) ([]mgl32.Vec2, []uint32, error) {
	r.ctx.Queue.WriteBuffer(r.reg.OtPositions, 0, vec2SliceToBytes(points))
	r.ctx.Queue.WriteBuffer(r.reg.OtCentroids, 0, vec2SliceToBytes(seedCentroids(points, int(r.k))))

	for i := 0; i < r.iter; i++ {
		r.reg.ClearKMeansAccumulators()

		encoder, err := r.ctx.Device.CreateCommandEncoder(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("ot: kmeans iteration %d encoder: %w", i, err)
		}

		assign := encoder.BeginComputePass(nil)
		assign.SetPipeline(r.assignPipeline)
		assign.SetBindGroup(0, r.bgAssign, nil)
		assign.DispatchWorkgroups(gpu.Dispatch1D(r.n, 256), 1, 1)
		assign.End()

		accum := encoder.BeginComputePass(nil)
		accum.SetPipeline(r.accumPipeline)
		accum.SetBindGroup(0, r.bgAccum, nil)
		accum.DispatchWorkgroups(gpu.Dispatch1D(r.n, 256), 1, 1)
		accum.End()

		divide := encoder.BeginComputePass(nil)
		divide.SetPipeline(r.dividePipeline)
		divide.SetBindGroup(0, r.bgDivide, nil)
		divide.DispatchWorkgroups(gpu.Dispatch1D(r.k, 256), 1, 1)
		divide.End()

		cmd, err := encoder.Finish(nil)
		if err != nil {
			return nil, nil, fmt.Errorf("ot: kmeans iteration %d finish: %w", i, err)
		}
		r.ctx.Queue.Submit(cmd)
	}

	finalEncoder, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("ot: kmeans final assign encoder: %w", err)
	}
	finalAssign := finalEncoder.BeginComputePass(nil)
	finalAssign.SetPipeline(r.assignPipeline)
	finalAssign.SetBindGroup(0, r.bgAssign, nil)
	finalAssign.DispatchWorkgroups(gpu.Dispatch1D(r.n, 256), 1, 1)
	finalAssign.End()
	finalCmd, err := finalEncoder.Finish(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("ot: kmeans final assign finish: %w", err)
	}
	r.ctx.Queue.Submit(finalCmd)

	centroids, err := r.readCentroids(ctx)
	if err != nil {
		return nil, nil, err
	}
	labels, err := r.readLabels(ctx)
	if err != nil {
		return nil, nil, err
	}
	return centroids, labels, nil
}

func (r *kmeansRunner) readCentroids(ctx context.Context) ([]mgl32.Vec2, error) {
	size := uint64(r.k) * 8
	if err := r.copyToStaging(r.reg.OtCentroids, size); err != nil {
		return nil, err
	}
	raw, err := r.ctx.ReadBuffer(ctx, r.reg.Staging, size)
	if err != nil {
		return nil, fmt.Errorf("ot: centroid readback: %w", err)
	}
	floats := gpu.BytesToFloat32Slice(raw)
	out := make([]mgl32.Vec2, r.k)
	for i := range out {
		out[i] = mgl32.Vec2{floats[i*2], floats[i*2+1]}
	}
	return out, nil
}

func (r *kmeansRunner) readLabels(ctx context.Context) ([]uint32, error) {
	size := uint64(r.n) * 4
	if err := r.copyToStaging(r.reg.OtLabels, size); err != nil {
		return nil, err
	}
	raw, err := r.ctx.ReadBuffer(ctx, r.reg.Staging, size)
	if err != nil {
		return nil, fmt.Errorf("ot: label readback: %w", err)
	}
	return gpu.BytesToUint32Slice(raw), nil
}

func (r *kmeansRunner) copyToStaging(src *wgpu.Buffer, size uint64) error {
	encoder, err := r.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("ot: copy-to-staging encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(src, 0, r.reg.Staging, 0, size)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("ot: copy-to-staging finish: %w", err)
	}
	r.ctx.Queue.Submit(cmd)
	return nil
}

// seedCentroids picks K evenly-spaced positions from the input array, per
// spec.md §4.5.1's seed rule.
func seedCentroids(points []mgl32.Vec2, k int) []mgl32.Vec2 {
	out := make([]mgl32.Vec2, k)
	n := len(points)
	if n == 0 {
		return out
	}
	for i := 0; i < k; i++ {
		idx := i * n / k
		out[i] = points[idx]
	}
	return out
}

func vec2SliceToBytes(v []mgl32.Vec2) []byte {
	flat := make([]float32, len(v)*2)
	for i, p := range v {
		flat[i*2] = p.X()
		flat[i*2+1] = p.Y()
	}
	return gpu.Float32SliceToBytes(flat)
}
