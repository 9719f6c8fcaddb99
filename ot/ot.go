package ot

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/gpu"
)

// Engine is the OT Engine entry point (spec.md §4.5): Assign takes the
// current source-atom cloud and a raw sampled target cloud and returns
// one target position per source atom.
type Engine struct {
	runner *kmeansRunner
	k      int
}

// New builds the k-means pipelines once; both the source and target
// cloud runs reuse them and the registry's OT scratch buffers.
func New(ctx *gpu.Context, reg *buffers.Registry, n, k uint32, iter int, scale int32) (*Engine, error) {
	runner, err := newKMeansRunner(ctx, reg, n, k, iter, scale)
	if err != nil {
		return nil, fmt.Errorf("ot: build kmeans runner: %w", err)
	}
	return &Engine{runner: runner, k: int(k)}, nil
}

// Assign implements the full §4.5 pipeline: k-means on both clouds,
// centroid-level matching, and intra-cluster round-robin pairing.
func (e *Engine) Assign(ctx context.Context, source, target []mgl32.Vec2) ([]mgl32.Vec2, error) {
	srcCentroids, srcLabels, err := e.runner.run(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("ot: source kmeans: %w", err)
	}
	tgtCentroids, tgtLabels, err := e.runner.run(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("ot: target kmeans: %w", err)
	}

	match := matchCentroids(srcCentroids, tgtCentroids)
	return pairIntraCluster(source, srcLabels, target, tgtLabels, tgtCentroids, match, e.k), nil
}

// matchCentroids implements spec.md §4.5.2: compute each cloud's
// centroid-of-centroids, sort by polar angle around it, pair by rank.
// The result is an injective (here, bijective: both slices have length
// K) map from source-centroid index to target-centroid index.
func matchCentroids(src, tgt []mgl32.Vec2) []int {
	srcOrder := sortByPolarAngle(src)
	tgtOrder := sortByPolarAngle(tgt)

	match := make([]int, len(src))
	for rank, si := range srcOrder {
		match[si] = tgtOrder[rank]
	}
	return match
}

func sortByPolarAngle(points []mgl32.Vec2) []int {
	center := centroidOf(points)
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	angle := func(i int) float64 {
		p := points[i].Sub(center)
		return math.Atan2(float64(p.Y()), float64(p.X()))
	}
	sort.Slice(order, func(a, b int) bool { return angle(order[a]) < angle(order[b]) })
	return order
}

func centroidOf(points []mgl32.Vec2) mgl32.Vec2 {
	if len(points) == 0 {
		return mgl32.Vec2{}
	}
	var sum mgl32.Vec2
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float32(len(points)))
}

// pairIntraCluster implements spec.md §4.5.3: every source atom i looks
// up its source-centroid label, follows match[] to a target centroid,
// and takes the next unused member of that target cluster, round-robin.
// An empty target cluster falls back to the centroid's own position.
func pairIntraCluster(source []mgl32.Vec2, srcLabels []uint32, target []mgl32.Vec2, tgtLabels []uint32, tgtCentroids []mgl32.Vec2, match []int, k int) []mgl32.Vec2 {
	pools := make([][]mgl32.Vec2, k)
	for i, p := range target {
		t := int(tgtLabels[i])
		pools[t] = append(pools[t], p)
	}
	cursors := make([]int, k)

	out := make([]mgl32.Vec2, len(source))
	for i := range source {
		s := int(srcLabels[i])
		t := match[s]
		pool := pools[t]
		if len(pool) == 0 {
			out[i] = tgtCentroids[t]
			continue
		}
		out[i] = pool[cursors[t]%len(pool)]
		cursors[t]++
	}
	return out
}
