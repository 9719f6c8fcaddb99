package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/atomfield/buffers"
)

func TestSampleSingleCellStaysWithinCellFootprint(t *testing.T) {
	grid := buffers.NewGrid(8, 8)
	grid.Set(3, 5, 1)

	s := New(8, 8, 1)
	positions := s.Sample(grid, 500)
	require.Len(t, positions, 500)

	loX := (float32(3))/8*2 - 1
	hiX := (float32(4))/8*2 - 1
	loY := (float32(5))/8*2 - 1
	hiY := (float32(6))/8*2 - 1

	for _, p := range positions {
		assert.GreaterOrEqual(t, p.X, loX)
		assert.LessOrEqual(t, p.X, hiX)
		assert.GreaterOrEqual(t, p.Y, loY)
		assert.LessOrEqual(t, p.Y, hiY)
	}
}

func TestSampleAllZerosReturnsUniformSafeBox(t *testing.T) {
	grid := buffers.NewGrid(16, 16)
	s := New(16, 16, 2)
	positions := s.Sample(grid, 1000)
	require.Len(t, positions, 1000)
	for _, p := range positions {
		assert.GreaterOrEqual(t, p.X, float32(-0.85))
		assert.LessOrEqual(t, p.X, float32(0.85))
		assert.GreaterOrEqual(t, p.Y, float32(-0.85))
		assert.LessOrEqual(t, p.Y, float32(0.85))
	}
}

func TestSampleApproximatesDensityHistogram(t *testing.T) {
	grid := buffers.NewGrid(4, 4)
	// Put all weight on the left half, none on the right.
	for y := uint32(0); y < 4; y++ {
		grid.Set(0, y, 1)
		grid.Set(1, y, 1)
	}

	s := New(4, 4, 3)
	positions := s.Sample(grid, 20000)
	leftCount := 0
	for _, p := range positions {
		if p.X < 0 {
			leftCount++
		}
	}
	frac := float64(leftCount) / float64(len(positions))
	assert.InDelta(t, 1.0, frac, 0.02)
}
