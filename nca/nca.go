// Package nca is the NCA Engine (spec.md §4.3): it runs a fixed number of
// compute steps on a multi-channel state grid to grow an organic density
// field from a parametric goal, via one of two back-ends selected once
// at startup and fixed for the process lifetime. Modeled as a tagged
// variant, grounded on schedule.go's "tagged variant, not inheritance"
// idiom already used for stateful systems, and on ca_ecs.go's
// per-CellularType ping-pong dispatch.
package nca

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/gpu"
	"github.com/gekko3d/atomfield/logging"
	"github.com/gekko3d/atomfield/shaders"
)

// Engine runs NCA inference. Exactly one of mlp/rds is active.
type Engine struct {
	ctx   *gpu.Context
	reg   *buffers.Registry
	wg    uint32
	hg    uint32
	steps int
	isMLP bool

	pipeline *wgpu.ComputePipeline
	bgl0     *wgpu.BindGroupLayout

	// MLP-only.
	bgl1      *wgpu.BindGroupLayout
	bgWeights *wgpu.BindGroup
	stepUB    [2]*wgpu.Buffer // one uniform buffer per parity, pre-written with step

	// bg[parity] has state_in = reg.NcaState[parity], state_out =
	// reg.NcaState[parity^1]; re-created is never needed since the goal
	// buffer never changes identity across a run.
	bg [2]*wgpu.BindGroup

	log logging.Logger
}

// New selects the MLP back-end when weights is non-nil, otherwise RDS,
// and builds that back-end's pipeline and bind groups once.
func New(ctx *gpu.Context, reg *buffers.Registry, wg, hg uint32, steps int, fireRate float32, weights *Weights, log logging.Logger) (*Engine, error) {
	e := &Engine{ctx: ctx, reg: reg, wg: wg, hg: hg, steps: steps, log: log}

	if weights != nil {
		if err := e.buildMLP(*weights, fireRate); err != nil {
			return nil, fmt.Errorf("nca: build mlp backend: %w", err)
		}
		e.isMLP = true
		log.Infof("nca: using MLP backend (%d steps)", steps)
		return e, nil
	}

	if err := e.buildRDS(); err != nil {
		return nil, fmt.Errorf("nca: build rds backend: %w", err)
	}
	log.Infof("nca: using reaction-diffusion fallback backend (%d steps)", steps)
	return e, nil
}

func (e *Engine) buildRDS() error {
	constants := gpu.Constants{ShapeW: e.wg, ShapeH: e.hg}
	module, err := e.ctx.CreateShaderModule("nca-rds", shaders.NcaRdsWGSL, constants)
	if err != nil {
		return err
	}

	e.bgl0, err = e.ctx.CreateBindGroupLayout("nca-rds-bgl0", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return err
	}

	layout, err := e.ctx.CreatePipelineLayout("nca-rds-layout", e.bgl0)
	if err != nil {
		return err
	}
	e.pipeline, err = e.ctx.CreateComputePipeline("nca-rds-pipeline", module, "main", layout)
	if err != nil {
		return err
	}

	for parity := 0; parity < 2; parity++ {
		in, out := e.reg.NcaState[parity], e.reg.NcaState[parity^1]
		e.bg[parity], err = e.ctx.CreateBindGroup(fmt.Sprintf("nca-rds-bg-%d", parity), e.bgl0, []wgpu.BindGroupEntry{
			gpu.BufferEntry(0, e.reg.NcaGoal),
			gpu.BufferEntry(1, in),
			gpu.BufferEntry(2, out),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) buildMLP(w Weights, fireRate float32) error {
	constants := gpu.Constants{ShapeW: e.wg, ShapeH: e.hg, FireRate: fireRate}
	module, err := e.ctx.CreateShaderModule("nca-mlp", shaders.NcaMlpWGSL, constants)
	if err != nil {
		return err
	}

	e.bgl0, err = e.ctx.CreateBindGroupLayout("nca-mlp-bgl0", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeUniform),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(3, wgpu.BufferBindingTypeStorage),
	})
	if err != nil {
		return err
	}
	e.bgl1, err = e.ctx.CreateBindGroupLayout("nca-mlp-bgl1", []wgpu.BindGroupLayoutEntry{
		gpu.ComputeBufferLayoutEntry(0, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(1, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(2, wgpu.BufferBindingTypeReadOnlyStorage),
		gpu.ComputeBufferLayoutEntry(3, wgpu.BufferBindingTypeReadOnlyStorage),
	})
	if err != nil {
		return err
	}

	layout, err := e.ctx.CreatePipelineLayout("nca-mlp-layout", e.bgl0, e.bgl1)
	if err != nil {
		return err
	}
	e.pipeline, err = e.ctx.CreateComputePipeline("nca-mlp-pipeline", module, "main", layout)
	if err != nil {
		return err
	}

	e.ctx.Queue.WriteBuffer(e.reg.NcaW1, 0, gpu.Float32SliceToBytes(w.W1))
	e.ctx.Queue.WriteBuffer(e.reg.NcaB1, 0, gpu.Float32SliceToBytes(w.B1))
	e.ctx.Queue.WriteBuffer(e.reg.NcaW2, 0, gpu.Float32SliceToBytes(w.W2))
	e.ctx.Queue.WriteBuffer(e.reg.NcaB2, 0, gpu.Float32SliceToBytes(w.B2))

	e.bgWeights, err = e.ctx.CreateBindGroup("nca-mlp-weights", e.bgl1, []wgpu.BindGroupEntry{
		gpu.BufferEntry(0, e.reg.NcaW1),
		gpu.BufferEntry(1, e.reg.NcaB1),
		gpu.BufferEntry(2, e.reg.NcaW2),
		gpu.BufferEntry(3, e.reg.NcaB2),
	})
	if err != nil {
		return err
	}

	for parity := 0; parity < 2; parity++ {
		in, out := e.reg.NcaState[parity], e.reg.NcaState[parity^1]
		e.stepUB[parity], err = e.ctx.CreateBufferEmpty(fmt.Sprintf("nca-step-params-%d", parity), 16, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		e.bg[parity], err = e.ctx.CreateBindGroup(fmt.Sprintf("nca-mlp-bg-%d", parity), e.bgl0, []wgpu.BindGroupEntry{
			gpu.BufferEntry(0, e.stepUB[parity]),
			gpu.BufferEntry(1, e.reg.NcaGoal),
			gpu.BufferEntry(2, in),
			gpu.BufferEntry(3, out),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Run executes the full spec.md §4.3.3 protocol: seed state (zeros for
// MLP, goal+noise for RDS), write the goal grid, dispatch STEPS
// ping-ponged compute passes, then read back the final state and extract
// channel 0 (clamped to [0,1]) into a W_g x H_g alpha grid.
func (e *Engine) Run(ctx context.Context, goal *buffers.Grid) (*buffers.Grid, error) {
	e.ctx.Queue.WriteBuffer(e.reg.NcaGoal, 0, gpu.Float32SliceToBytes(goal.Data))

	if e.isMLP {
		e.seedZero()
	} else {
		e.seedNoisy(goal)
	}

	for step := 0; step < e.steps; step++ {
		parity := step & 1
		if e.isMLP {
			e.ctx.Queue.WriteBuffer(e.stepUB[parity], 0, gpu.Uint32SliceToBytes([]uint32{uint32(step), 0, 0, 0}))
		}

		encoder, err := e.ctx.Device.CreateCommandEncoder(nil)
		if err != nil {
			return nil, fmt.Errorf("nca: command encoder: %w", err)
		}
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(e.pipeline)
		pass.SetBindGroup(0, e.bg[parity], nil)
		if e.isMLP {
			pass.SetBindGroup(1, e.bgWeights, nil)
		}
		pass.DispatchWorkgroups(gpu.Dispatch2D(e.wg, e.hg))
		pass.End()

		cmd, err := encoder.Finish(nil)
		if err != nil {
			return nil, fmt.Errorf("nca: finish step %d: %w", step, err)
		}
		e.ctx.Queue.Submit(cmd)
	}

	finalSlot := e.steps & 1
	finalState := e.reg.NcaState[finalSlot]

	channels := uint32(Channels)
	if !e.isMLP {
		channels = 1
	}
	cellCount := e.wg * e.hg
	stateBytes := uint64(cellCount) * uint64(channels) * 4

	copyEncoder, err := e.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("nca: readback copy encoder: %w", err)
	}
	copyEncoder.CopyBufferToBuffer(finalState, 0, e.reg.Staging, 0, stateBytes)
	copyCmd, err := copyEncoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("nca: readback copy finish: %w", err)
	}
	e.ctx.Queue.Submit(copyCmd)

	raw, err := e.ctx.ReadBuffer(ctx, e.reg.Staging, stateBytes)
	if err != nil {
		return nil, fmt.Errorf("nca: alpha readback: %w", err)
	}
	state := gpu.BytesToFloat32Slice(raw)

	alpha := buffers.NewGrid(e.wg, e.hg)
	for i := uint32(0); i < cellCount; i++ {
		v := state[i*channels]
		alpha.Data[i] = clamp01(v)
	}
	return alpha, nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// seedZero zeroes both NCA state buffers (MLP backend's seed per
// spec.md §4.3.1).
func (e *Engine) seedZero() {
	size := uint64(e.wg) * uint64(e.hg) * uint64(Channels) * 4
	zero := make([]byte, size)
	e.ctx.Queue.WriteBuffer(e.reg.NcaState[0], 0, zero)
	e.ctx.Queue.WriteBuffer(e.reg.NcaState[1], 0, zero)
}

// seedNoisy seeds state[0] as clamp(goal+noise, 0, 1), noise amplitude
// ~=0.08, per spec.md §4.3.2 (RDS backend).
func (e *Engine) seedNoisy(goal *buffers.Grid) {
	const amplitude = 0.08
	seeded := make([]float32, len(goal.Data))
	for i, g := range goal.Data {
		n := (detHash(uint32(i))*2 - 1) * amplitude
		seeded[i] = clamp01(g + n)
	}
	e.ctx.Queue.WriteBuffer(e.reg.NcaState[0], 0, gpu.Float32SliceToBytes(seeded))
	e.ctx.Queue.WriteBuffer(e.reg.NcaState[1], 0, gpu.Float32SliceToBytes(seeded))
}

// detHash returns a deterministic value in [0,1] for cell index i (the
// float32 division rounds to exactly 1 for 128 of the 2^32 hash values),
// matching the shader's hash-based stochasticity so the CPU-side seed
// noise needs no external RNG buffer either.
func detHash(i uint32) float32 {
	h := i*374761393 + 12345
	h = (h ^ (h >> 13)) * 1274126177
	h = h ^ (h >> 16)
	return float32(h) / 4294967295.0
}
