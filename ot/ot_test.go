package ot

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchCentroidsIsBijection(t *testing.T) {
	src := []mgl32.Vec2{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}
	tgt := []mgl32.Vec2{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

	match := matchCentroids(src, tgt)
	require.Len(t, match, len(src))

	seen := make(map[int]bool)
	for _, m := range match {
		assert.False(t, seen[m], "target index %d matched more than once", m)
		seen[m] = true
	}
	assert.Len(t, seen, len(tgt))
}

func TestPairIntraClusterEveryAtomGetsATarget(t *testing.T) {
	source := []mgl32.Vec2{{0, 0}, {0.1, 0}, {1, 1}, {1.1, 1}}
	srcLabels := []uint32{0, 0, 1, 1}
	target := []mgl32.Vec2{{5, 5}, {6, 6}}
	tgtLabels := []uint32{0, 1}
	tgtCentroids := []mgl32.Vec2{{5, 5}, {6, 6}}
	match := []int{0, 1}

	out := pairIntraCluster(source, srcLabels, target, tgtLabels, tgtCentroids, match, 2)
	require.Len(t, out, len(source))
	for _, p := range out {
		assert.NotEqual(t, mgl32.Vec2{}, p)
	}
}

func TestPairIntraClusterRoundRobinsWithinCluster(t *testing.T) {
	source := make([]mgl32.Vec2, 6)
	srcLabels := make([]uint32, 6)
	target := []mgl32.Vec2{{1, 1}, {2, 2}, {3, 3}}
	tgtLabels := []uint32{0, 0, 0}
	tgtCentroids := []mgl32.Vec2{{0, 0}}
	match := []int{0}

	out := pairIntraCluster(source, srcLabels, target, tgtLabels, tgtCentroids, match, 1)
	require.Len(t, out, 6)
	// Round robin over a 3-element pool visited by 6 atoms should hit
	// each target position exactly twice.
	counts := map[mgl32.Vec2]int{}
	for _, p := range out {
		counts[p]++
	}
	for _, p := range target {
		assert.Equal(t, 2, counts[p])
	}
}

func TestPairIntraClusterEmptyClusterFallsBackToCentroid(t *testing.T) {
	source := []mgl32.Vec2{{0, 0}}
	srcLabels := []uint32{0}
	target := []mgl32.Vec2{}
	tgtLabels := []uint32{}
	tgtCentroids := []mgl32.Vec2{{9, 9}}
	match := []int{0}

	out := pairIntraCluster(source, srcLabels, target, tgtLabels, tgtCentroids, match, 1)
	require.Len(t, out, 1)
	assert.Equal(t, mgl32.Vec2{9, 9}, out[0])
}

func TestSeedCentroidsEvenlySpaced(t *testing.T) {
	points := make([]mgl32.Vec2, 100)
	for i := range points {
		points[i] = mgl32.Vec2{float32(i), 0}
	}
	seeded := seedCentroids(points, 4)
	require.Len(t, seeded, 4)
	assert.Equal(t, mgl32.Vec2{0, 0}, seeded[0])
	assert.Equal(t, mgl32.Vec2{25, 0}, seeded[1])
}
