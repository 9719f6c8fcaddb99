// Package orchestrator owns the control state machine (spec.md §4.9): it
// coordinates every GPU submission across a frame and exposes the
// user-facing operations (submit/clear/tick). Wander/Morph/Hold are
// modeled as schedule.State values driven through a schedule.App the
// same way the teacher drives its ECS Module/Stage/State machine,
// trimmed to this domain's single homogeneous atom population — there
// is no entity/component storage here, only the resource (*Orchestrator
// itself) that the per-state systems read and mutate. The reentrancy
// guard and GotoShape's multi-stage GPU pipeline run as a single method,
// not a scheduled system, since spec.md requires it to run to completion
// (suspension points aside) rather than be interleaved with the
// per-frame tick.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/config"
	"github.com/gekko3d/atomfield/gpu"
	"github.com/gekko3d/atomfield/logging"
	"github.com/gekko3d/atomfield/nca"
	"github.com/gekko3d/atomfield/ot"
	"github.com/gekko3d/atomfield/physics"
	"github.com/gekko3d/atomfield/render"
	"github.com/gekko3d/atomfield/sampler"
	"github.com/gekko3d/atomfield/schedule"
	"github.com/gekko3d/atomfield/shapes"
	"github.com/gekko3d/atomfield/splat"
)

// State aliases schedule.State so the orchestrator's three phases plug
// directly into the stage/state scheduler without a conversion at every
// call site.
type State = schedule.State

const (
	Wander State = iota
	Morph
	Hold
)

// Phase mirrors spec.md §6's HUD phase vocabulary for whatever the
// orchestrator is doing right now, independent of State (a transition
// runs the nca/ot phases before morph ever starts, while State is still
// whatever it was before the transition began).
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseGrowing  Phase = "nca · growing"
	PhaseKMeans   Phase = "ot · k-means"
	PhaseMorphing Phase = "morph"
	PhaseHold     Phase = "hold"
)

// HUD is the set of text outputs the core emits toward the external side
// panel, per spec.md §6. Populated by the Orchestrator; read by the host
// from a second (UI) goroutine in a typical deployment, hence the mutex.
type HUD struct {
	mu     sync.RWMutex
	Status string
	Phase  Phase
	FPS    float64
}

func (h *HUD) set(status string, phase Phase) {
	h.mu.Lock()
	h.Status, h.Phase = status, phase
	h.mu.Unlock()
}

func (h *HUD) setPhase(phase Phase) {
	h.mu.Lock()
	h.Phase = phase
	h.mu.Unlock()
}

func (h *HUD) setFPS(fps float64) {
	h.mu.Lock()
	h.FPS = fps
	h.mu.Unlock()
}

// Snapshot returns the current HUD text, safe to call from any goroutine.
func (h *HUD) Snapshot() (status string, phase Phase, fps float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Status, h.Phase, h.FPS
}

// Orchestrator drives the per-frame GPU pipeline and the shape-transition
// pipeline, per spec.md §4.9. Exactly one goroutine (the host's frame
// loop) ever calls Tick/Submit/Clear; the HUD is the only field read
// concurrently by a second goroutine.
type Orchestrator struct {
	ctx *gpu.Context
	reg *buffers.Registry
	cfg config.Config
	log logging.Logger
	app *schedule.App

	ncaEngine *nca.Engine
	sampler   *sampler.Sampler
	otEngine  *ot.Engine
	physics   *physics.Engine
	splat     *splat.Engine
	render    *render.Engine

	HUD *HUD

	dt             float32
	morphT         float32
	hold           float32
	userControlled bool
	transitioning  bool // reentrancy guard, per spec.md §4.9

	frame uint64
	time  float32

	// CPU mirrors of source/target, kept so GotoShape never needs a GPU
	// readback of its own output and so the invariant in spec.md §3
	// ("source[i] is atom i's position at morph_t=0") is checkable
	// host-side without a round trip. Pre-allocated once, per spec.md
	// §9's zero-frame-allocation rule (these are rewritten only during a
	// transition, never in Tick).
	source []mgl32.Vec2
	target []mgl32.Vec2
}

// New wires every GPU engine against a shared Registry, selects the NCA
// back-end once (MLP if weights load successfully, else RDS per spec.md
// §4.3.3/§7), and builds the Wander/Morph/Hold state scheduler.
func New(ctx *gpu.Context, reg *buffers.Registry, cfg config.Config, log logging.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		ctx: ctx,
		reg: reg,
		cfg: cfg,
		log: log,
		HUD: &HUD{Status: shapes.Default, Phase: PhaseIdle},
	}

	var weights *nca.Weights
	if w, err := nca.LoadWeights(cfg.WeightsPath); err != nil {
		log.Warnf("nca: weights unavailable (%v), using reaction-diffusion fallback", err)
	} else {
		weights = &w
	}

	ncaEngine, err := nca.New(ctx, reg, uint32(cfg.Wg), uint32(cfg.Hg), cfg.Steps, cfg.FireRate, weights, log)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build nca engine: %w", err)
	}
	o.ncaEngine = ncaEngine
	o.sampler = sampler.New(uint32(cfg.Wg), uint32(cfg.Hg), 1)

	scale := config.KMeansScale(cfg.N)
	otEngine, err := ot.New(ctx, reg, uint32(cfg.N), uint32(cfg.K), cfg.Iter, scale)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build ot engine: %w", err)
	}
	o.otEngine = otEngine

	physicsEngine, err := physics.New(ctx, reg, uint32(cfg.N), cfg.MaxVel, cfg.Bound)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build physics engine: %w", err)
	}
	o.physics = physicsEngine

	splatEngine, err := splat.New(ctx, reg, uint32(cfg.N), uint32(cfg.Wd), uint32(cfg.Hd), cfg.MaxVel)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build splat engine: %w", err)
	}
	o.splat = splatEngine

	renderEngine, err := render.New(ctx, reg, uint32(cfg.Wd), uint32(cfg.Hd), cfg.Decay)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build render engine: %w", err)
	}
	o.render = renderEngine

	o.source = make([]mgl32.Vec2, cfg.N)
	o.target = make([]mgl32.Vec2, cfg.N)

	o.buildSchedule()
	return o, nil
}

// buildSchedule registers the Orchestrator as the scheduler's one
// resource and installs the per-state systems that advance morph_t and
// the hold timer, grounded on schedule.go's OnEnter/OnExecute/Always
// builders.
func (o *Orchestrator) buildSchedule() {
	o.app = schedule.NewApp().UseStates(Wander, Hold)
	// AddResources/ChangeState are only reachable through a *Commands
	// bound to this app; UseModules is the teacher's wiring idiom for
	// that binding.
	o.app.UseModules(resourceModule{o: o})

	o.app.UseSystem(schedule.NewSystem(advanceMorphSystem).InStage(schedule.Update).InState(schedule.OnExecute(Morph)))
	o.app.UseSystem(schedule.NewSystem(enterHoldSystem).InStage(schedule.Update).InState(schedule.OnEnter(Hold)))
	o.app.UseSystem(schedule.NewSystem(advanceHoldSystem).InStage(schedule.Update).InState(schedule.OnExecute(Hold)))
}

// resourceModule is the minimal schedule.Module that registers the
// Orchestrator itself as a resource, grounded on app_builder.go's
// Module.Install wiring idiom.
type resourceModule struct{ o *Orchestrator }

func (m resourceModule) Install(app *schedule.App, cmd *schedule.Commands) {
	cmd.AddResources(m.o)
}

// advanceMorphSystem runs every frame while State==Morph: advance
// morph_t by dt/MORPH_DURATION; once it reaches 1, move to Hold.
func advanceMorphSystem(o *Orchestrator, cmd *schedule.Commands) {
	o.morphT += o.dt / o.cfg.MorphDuration
	if o.morphT >= 1 {
		o.morphT = 1
		cmd.ChangeState(Hold)
	}
}

// enterHoldSystem runs once on entering Hold: reset the hold counter and
// update the HUD phase text.
func enterHoldSystem(o *Orchestrator, cmd *schedule.Commands) {
	o.hold = 0
	o.HUD.setPhase(PhaseHold)
}

// advanceHoldSystem runs every frame while State==Hold: accumulate the
// hold counter; once HOLD_DURATION has elapsed, and no user control and
// no transition is in flight, auto-advance to the next shape in the
// cycle, per spec.md §4.9.
func advanceHoldSystem(o *Orchestrator, cmd *schedule.Commands) {
	o.hold += o.dt
	if o.userControlled || o.transitioning || o.hold < o.cfg.HoldDuration {
		return
	}
	if err := o.advanceCycle(context.Background()); err != nil {
		o.log.Errorf("orchestrator: auto-cycle advance failed: %v", err)
	}
}

// Submit implements the control interface's submit(text): initiates
// goto_shape(text), sets the user-controlled flag on success, and
// reports the resolved canonical name to the HUD.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	canonical := shapes.Resolve(text)
	if err := o.GotoShape(ctx, canonical); err != nil {
		return err
	}
	o.userControlled = true
	return nil
}

// Clear implements the control interface's clear(): unsets the
// user-controlled flag and immediately triggers an auto-cycle advance.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.userControlled = false
	return o.advanceCycle(ctx)
}

// advanceCycle picks the next canonical shape in a fixed rotation and
// transitions to it; used by both the hold-timeout auto-advance and
// Clear's immediate re-trigger.
func (o *Orchestrator) advanceCycle(ctx context.Context) error {
	return o.GotoShape(ctx, nextInCycle(o.HUD.Status))
}

// GotoShape runs the full transition procedure from spec.md §4.9:
// resolve -> generate -> NCA -> sample -> OT -> write source/target ->
// reset morph state. Rejected silently (not queued) if a transition is
// already in flight, per the single reentrancy rule.
func (o *Orchestrator) GotoShape(ctx context.Context, name string) error {
	if o.transitioning {
		o.log.Debugf("orchestrator: goto_shape(%q) rejected, transition in flight", name)
		return nil
	}
	o.transitioning = true
	defer func() { o.transitioning = false }()

	txID := uuid.NewString()
	canonical := shapes.Resolve(name)
	o.log.Infof("orchestrator: transition %s -> %s [%s]", o.HUD.Status, canonical, txID)

	o.HUD.set(canonical, PhaseGrowing)
	goal := shapes.Generate(canonical, uint32(o.cfg.Wg), uint32(o.cfg.Hg))

	alpha, err := o.ncaEngine.Run(ctx, goal)
	if err != nil {
		return fmt.Errorf("orchestrator: nca run [%s]: %w", txID, err)
	}

	rawTargets := o.sampler.Sample(alpha, o.cfg.N)
	targetCloud := make([]mgl32.Vec2, len(rawTargets))
	for i, p := range rawTargets {
		targetCloud[i] = mgl32.Vec2{p.X, p.Y}
	}

	o.HUD.setPhase(PhaseKMeans)
	sourceCloud := o.currentCloud()

	assigned, err := o.otEngine.Assign(ctx, sourceCloud, targetCloud)
	if err != nil {
		return fmt.Errorf("orchestrator: ot assign [%s]: %w", txID, err)
	}

	// Per spec.md §3: source[i] is atom i's position at morph_t=0 (the
	// cloud it is leaving); target[i] is its assigned destination.
	copy(o.source, sourceCloud)
	copy(o.target, assigned)
	o.ctx.Queue.WriteBuffer(o.reg.Source, 0, gpu.Float32SliceToBytes(flattenVec2(o.source)))
	o.ctx.Queue.WriteBuffer(o.reg.Target, 0, gpu.Float32SliceToBytes(flattenVec2(o.target)))

	o.morphT = 0
	o.app.ChangeState(Morph)
	o.HUD.set(canonical, PhaseMorphing)
	return nil
}

// currentCloud returns the host's best knowledge of where every atom is
// right now. Once any transition has ever completed, o.target is that
// knowledge (the cloud is at-rest-at-target in Hold, or mid-morph, both
// of which are "close enough" seeds for the next k-means run — OT
// re-clusters from scratch every transition regardless). Before the
// first-ever transition (pure Wander, nothing mirrored host-side yet),
// the sampler's own uniform fallback stands in, per spec.md §4.5.4's
// degenerate-density policy ("random targets" are a valid OT input).
func (o *Orchestrator) currentCloud() []mgl32.Vec2 {
	if !hasEverTransitioned(o.target) {
		empty := buffers.NewGrid(uint32(o.cfg.Wg), uint32(o.cfg.Hg))
		box := o.sampler.Sample(empty, o.cfg.N)
		out := make([]mgl32.Vec2, len(box))
		for i, p := range box {
			out[i] = mgl32.Vec2{p.X, p.Y}
		}
		return out
	}
	return o.target
}

func hasEverTransitioned(target []mgl32.Vec2) bool {
	for _, p := range target {
		if p != (mgl32.Vec2{}) {
			return true
		}
	}
	return false
}

func flattenVec2(v []mgl32.Vec2) []float32 {
	out := make([]float32, len(v)*2)
	for i, p := range v {
		out[i*2] = p.X()
		out[i*2+1] = p.Y()
	}
	return out
}

// Tick implements the frame-tick interface: tick(now_ms) (dt is computed
// by the caller; Tick clamps it to at most 1/30 s before using it, per
// spec.md §4.9's frame procedure step 1). It advances morph/hold state, writes the
// sim-parameters uniform, clears the per-frame accumulators, and submits
// one frame of GPU work: physics -> splat -> decay -> [bloom] -> render
// against the given swapchain view.
func (o *Orchestrator) Tick(dt float32, view *wgpu.TextureView) error {
	if o.ctx.Lost() {
		return gpu.ErrDeviceLost
	}

	const maxDt = 1.0 / 30.0
	if dt > maxDt {
		dt = maxDt
	}
	o.dt = dt
	o.time += dt
	o.app.RunFrame()

	hasTargets := float32(0)
	if o.app.State() != Wander {
		hasTargets = 1
	}
	o.ctx.Queue.WriteBuffer(o.reg.SimParams, 0, gpu.Float32SliceToBytes(
		[]float32{dt, o.time, hasTargets, o.morphT},
	))

	o.reg.ClearDisplay()

	parity := int(o.frame & 1)
	writtenParity := parity ^ 1 // slot physics writes this frame

	encoder, err := o.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("orchestrator: frame encoder: %w", err)
	}

	o.physics.Dispatch(encoder, parity)
	o.splat.Dispatch(encoder, writtenParity)
	o.render.DispatchDecay(encoder)

	// The horizontal and vertical bloom passes share one BloomParams
	// uniform, so the second WriteBuffer must not land before the first
	// pass has been submitted: per spec.md §5, the queue only orders a
	// host write strictly between two submissions, not between two
	// passes recorded into the same submission. The horizontal pass is
	// recorded and submitted on its own; the vertical params are written
	// (and that pass recorded/submitted) only afterward.
	if o.cfg.BloomEnabled {
		o.render.WriteBloomParams(true, o.cfg.BloomThreshold)
		o.render.DispatchBloomPass(encoder)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("orchestrator: frame encoder finish: %w", err)
	}
	o.ctx.Queue.Submit(cmd)

	if o.cfg.BloomEnabled {
		o.render.WriteBloomParams(false, o.cfg.BloomThreshold)

		bloomEncoder, err := o.ctx.Device.CreateCommandEncoder(nil)
		if err != nil {
			return fmt.Errorf("orchestrator: bloom vertical encoder: %w", err)
		}
		o.render.DispatchBloomPass(bloomEncoder)
		bloomCmd, err := bloomEncoder.Finish(nil)
		if err != nil {
			return fmt.Errorf("orchestrator: bloom vertical encoder finish: %w", err)
		}
		o.ctx.Queue.Submit(bloomCmd)
	}
	o.render.WriteRenderParams(o.cfg.TrailRef, o.cfg.BloomEnabled)

	renderEncoder, err := o.ctx.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("orchestrator: render encoder: %w", err)
	}
	if err := o.render.DispatchComposite(renderEncoder, view); err != nil {
		return fmt.Errorf("orchestrator: composite pass: %w", err)
	}
	renderCmd, err := renderEncoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("orchestrator: render encoder finish: %w", err)
	}
	o.ctx.Queue.Submit(renderCmd)

	o.frame++
	return nil
}

// TickFPS implements the control interface's tick_fps(now_ms): a simple
// once-per-call accumulation the host drives at its own cadence
// (typically once per animation frame, passing the instantaneous 1/dt);
// HUD.FPS holds the most recent sample, not a smoothed average, matching
// the "internal HUD counter update" scope note in spec.md §6.
func (o *Orchestrator) TickFPS(instantaneous float64) {
	o.HUD.setFPS(instantaneous)
}

// nextInCycle returns the canonical shape that follows current in a
// fixed, deterministic rotation through the full canonical set (sorted
// for determinism, since Go map iteration order is not stable).
func nextInCycle(current string) string {
	names := sortedCanonical()
	if len(names) == 0 {
		return shapes.Default
	}
	for i, n := range names {
		if n == current {
			return names[(i+1)%len(names)]
		}
	}
	return names[0]
}

func sortedCanonical() []string {
	out := make([]string, 0, len(shapes.Canonical))
	for name := range shapes.Canonical {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
