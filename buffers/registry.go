// Package buffers is the Buffer Registry: it allocates and names every
// persistent GPU buffer and fixes the data layout contract every kernel
// consumes. Every size is derived from the five constants named in
// spec.md §4.1 (N, W_g/H_g, W_d/H_d, K). Grounded on
// voxelrt/rt/gpu/manager.go's GpuBufferManager (buffer ownership,
// headroom constants, ensureBuffer) and gpu_operations.go's buffer
// creation helpers.
package buffers

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/atomfield/gpu"
)

// Sizes captures the five size-determining constants from spec.md §4.1.
// Changing any of these requires fresh shaders and buffers; Registry is
// built once at startup from a fixed Sizes value.
type Sizes struct {
	N          uint32
	Wd, Hd     uint32
	Wg, Hg     uint32
	K          uint32
	NcaChannels uint32 // 16 for MLP, 1 for RDS
}

// Registry owns every persistent buffer for the process lifetime, per
// spec.md §3's ownership rule. Atom and NCA state buffers are
// ping-ponged; Registry stores both slots and the caller selects by
// frame/step parity. Source and target are single buffers.
type Registry struct {
	ctx   *gpu.Context
	sizes Sizes

	// Atom ping-pong (N Atom structs: pos.xy, vel.xy = 16 bytes each).
	Atoms [2]*wgpu.Buffer

	// Source/target CPU-mirrored position arrays (N * vec2<f32>).
	Source *wgpu.Buffer
	Target *wgpu.Buffer

	// Sim parameters uniform (dt, time_seconds, has_targets, morph_t).
	SimParams *wgpu.Buffer

	// Bloom pass uniform (horizontal, threshold, padding) and render pass
	// uniform (tref, bloom_enabled, padding), rewritten by the host once
	// per frame via queue writes.
	BloomParams  *wgpu.Buffer
	RenderParams *wgpu.Buffer

	// Display accumulators.
	DensityBuf *wgpu.Buffer // atomic u32, Wd*Hd
	VelBuf     *wgpu.Buffer // atomic u32, Wd*Hd
	TrailBuf   *wgpu.Buffer // f32, Wd*Hd, never cleared
	BloomScratch *wgpu.Buffer
	BloomBuf   *wgpu.Buffer

	// NCA state, ping-ponged; goal and alpha are single-buffered.
	NcaState [2]*wgpu.Buffer // Wg*Hg*NcaChannels f32
	NcaGoal  *wgpu.Buffer    // Wg*Hg f32
	// NcaAlpha reserves the §4.1 registry slot for the NCA's channel-0
	// output; no kernel binds it because nca.Engine.Run extracts alpha
	// straight from the Staging readback of NcaState into a CPU Grid
	// (nca.go's Run), so this buffer is never written or read on the GPU.
	NcaAlpha *wgpu.Buffer // Wg*Hg f32
	NcaW1    *wgpu.Buffer
	NcaB1    *wgpu.Buffer
	NcaW2    *wgpu.Buffer
	NcaB2    *wgpu.Buffer

	// OT intermediates.
	OtPositions *wgpu.Buffer // N * vec2<f32>, source or target cloud
	OtCentroids *wgpu.Buffer // K * vec2<f32>
	OtLabels    *wgpu.Buffer // N * u32
	OtSumX      *wgpu.Buffer // K * i32
	OtSumY      *wgpu.Buffer // K * i32
	OtCounts    *wgpu.Buffer // K * u32
	// OtMatch reserves the §4.1 registry slot for the centroid-to-centroid
	// match array; ot.go's matchCentroids computes and consumes it
	// entirely host-side (it drives pairIntraCluster directly), so no
	// kernel binds this buffer either.
	OtMatch *wgpu.Buffer // K * u32, centroid-to-centroid match

	// Staging buffers for CPU readback (NCA alpha, OT centroids/labels).
	Staging *wgpu.Buffer
}

const clearZeroChunk = 1 << 20 // 1 MiB of zeros reused for clear writes

// New allocates every persistent buffer once. Atom, source, and target
// buffers start zeroed; callers populate them via WriteBuffer before the
// first frame.
func New(ctx *gpu.Context, sizes Sizes) (*Registry, error) {
	r := &Registry{ctx: ctx, sizes: sizes}

	atomBytes := uint64(sizes.N) * 16
	posBytes := uint64(sizes.N) * 8
	displayBytes := uint64(sizes.Wd) * uint64(sizes.Hd) * 4
	gridBytes := uint64(sizes.Wg) * uint64(sizes.Hg) * 4
	stateBytes := gridBytes * uint64(sizes.NcaChannels)
	kBytes := uint64(sizes.K) * 4
	kPosBytes := uint64(sizes.K) * 8

	var err error
	alloc := func(label string, size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
		if err != nil {
			return nil
		}
		var buf *wgpu.Buffer
		buf, err = ctx.CreateBufferEmpty(label, size, usage)
		return buf
	}

	storage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	uniform := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst

	r.Atoms[0] = alloc("atoms-0", atomBytes, storage)
	r.Atoms[1] = alloc("atoms-1", atomBytes, storage)
	r.Source = alloc("source-pos", posBytes, storage)
	r.Target = alloc("target-pos", posBytes, storage)
	r.SimParams = alloc("sim-params", 16, uniform)
	r.BloomParams = alloc("bloom-params", 16, uniform)
	r.RenderParams = alloc("render-params", 16, uniform)

	r.DensityBuf = alloc("density-buf", displayBytes, storage)
	r.VelBuf = alloc("vel-buf", displayBytes, storage)
	r.TrailBuf = alloc("trail-buf", displayBytes, storage)
	r.BloomScratch = alloc("bloom-scratch", displayBytes, storage)
	r.BloomBuf = alloc("bloom-buf", displayBytes, storage)

	r.NcaState[0] = alloc("nca-state-0", stateBytes, storage)
	r.NcaState[1] = alloc("nca-state-1", stateBytes, storage)
	r.NcaGoal = alloc("nca-goal", gridBytes, storage)
	r.NcaAlpha = alloc("nca-alpha", gridBytes, storage)
	r.NcaW1 = alloc("nca-w1", 64*56*4, storage)
	r.NcaB1 = alloc("nca-b1", 64*4, storage)
	r.NcaW2 = alloc("nca-w2", 16*64*4, storage)
	r.NcaB2 = alloc("nca-b2", 16*4, storage)

	r.OtPositions = alloc("ot-positions", posBytes, storage)
	r.OtCentroids = alloc("ot-centroids", kPosBytes, storage)
	r.OtLabels = alloc("ot-labels", uint64(sizes.N)*4, storage)
	r.OtSumX = alloc("ot-sum-x", kBytes, storage)
	r.OtSumY = alloc("ot-sum-y", kBytes, storage)
	r.OtCounts = alloc("ot-counts", kBytes, storage)
	r.OtMatch = alloc("ot-match", kBytes, storage)

	// Staging must be large enough for every readback that reuses it:
	// atom snapshots, NCA state (W_g*H_g*NcaChannels), and OT centroids
	// (K*vec2) all share this one buffer, never allocated per-call.
	stagingSize := atomBytes
	for _, s := range []uint64{posBytes, stateBytes, kPosBytes} {
		if s > stagingSize {
			stagingSize = s
		}
	}
	r.Staging = alloc("staging", stagingSize, wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst)

	if err != nil {
		return nil, fmt.Errorf("buffers: allocate registry: %w", err)
	}
	return r, nil
}

// ClearDisplay zeroes density_buf and vel_buf (per-frame clear, before
// splat); trail_buf is intentionally never cleared here.
func (r *Registry) ClearDisplay() {
	size := uint64(r.sizes.Wd) * uint64(r.sizes.Hd) * 4
	zero := make([]byte, min64(size, clearZeroChunk))
	writeZeroed(r.ctx, r.DensityBuf, size, zero)
	writeZeroed(r.ctx, r.VelBuf, size, zero)
}

// ClearKMeansAccumulators zeroes the fixed-point k-means accumulators via
// host-queue writes between submissions, per the design notes' ordering
// pitfall: never as an in-kernel atomic store.
func (r *Registry) ClearKMeansAccumulators() {
	size := uint64(r.sizes.K) * 4
	zero := make([]byte, size)
	r.ctx.Queue.WriteBuffer(r.OtSumX, 0, zero)
	r.ctx.Queue.WriteBuffer(r.OtSumY, 0, zero)
	r.ctx.Queue.WriteBuffer(r.OtCounts, 0, zero)
}

func writeZeroed(ctx *gpu.Context, buf *wgpu.Buffer, total uint64, chunk []byte) {
	var off uint64
	for off < total {
		n := uint64(len(chunk))
		if off+n > total {
			n = total - off
		}
		ctx.Queue.WriteBuffer(buf, off, chunk[:n])
		off += n
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (r *Registry) Sizes() Sizes { return r.sizes }
