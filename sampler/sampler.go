// Package sampler is the Sampler (spec.md §4.4): it importance-samples N
// 2D NDC positions from a density grid via an inverse-CDF lookup. This
// runs host-side on the CPU-resident grid produced by the NCA alpha
// readback, off the per-frame hot path, grounded on the teacher's plain
// allocation-conscious host-loop style (ca_ecs.go's stepSmoke).
package sampler

import (
	"math/rand"
	"sort"

	"github.com/gekko3d/atomfield/buffers"
)

// Position is a single sampled NDC point.
type Position struct {
	X, Y float32
}

// Sampler owns the reusable CDF scratch buffer so repeated transitions
// never allocate it fresh, per spec.md §9's "zero transient allocations"
// design note (scoped here to "per Sampler instance" since sampling only
// happens during a transition, not the frame loop itself).
type Sampler struct {
	cdf []float64
	rng *rand.Rand
}

// New returns a Sampler with scratch space pre-sized for a Wg*Hg grid.
func New(wg, hg uint32, seed int64) *Sampler {
	return &Sampler{
		cdf: make([]float64, 0, wg*hg),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Sample draws n positions from density, per spec.md §4.4:
//  1. sum all grid values; if zero, return n uniform points in the safe
//     interior box.
//  2. build the cumulative distribution over flattened cells.
//  3. for each sample, binary-search the CDF, recover (row, col), jitter
//     within the cell, and map to NDC (row 0 -> y=-1).
func (s *Sampler) Sample(density *buffers.Grid, n int) []Position {
	total := 0.0
	for _, v := range density.Data {
		total += float64(v)
	}
	if total <= 0 {
		return s.uniformFallback(n)
	}

	s.cdf = s.cdf[:0]
	running := 0.0
	for _, v := range density.Data {
		running += float64(v)
		s.cdf = append(s.cdf, running)
	}
	// Guard against floating point drift so the final bucket is reachable.
	s.cdf[len(s.cdf)-1] = total

	out := make([]Position, n)
	w, h := density.W, density.H
	for i := 0; i < n; i++ {
		u := s.rng.Float64() * total
		idx := sort.Search(len(s.cdf), func(j int) bool { return s.cdf[j] >= u })
		if idx >= len(s.cdf) {
			idx = len(s.cdf) - 1
		}
		row := uint32(idx) / w
		col := uint32(idx) % w

		jx := s.rng.Float32()
		jy := s.rng.Float32()
		px := (float32(col)+jx)/float32(w)*2 - 1
		py := (float32(row)+jy)/float32(h)*2 - 1
		out[i] = Position{X: px, Y: py}
	}
	return out
}

// uniformFallback returns n uniform random positions in a safe interior
// box, per spec.md §4.4's degenerate-density policy.
func (s *Sampler) uniformFallback(n int) []Position {
	const bound = 0.85
	out := make([]Position, n)
	for i := range out {
		out[i] = Position{
			X: (s.rng.Float32()*2 - 1) * bound,
			Y: (s.rng.Float32()*2 - 1) * bound,
		}
	}
	return out
}
