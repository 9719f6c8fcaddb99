package shapes

import (
	"math"

	"github.com/gekko3d/atomfield/buffers"
)

// blurSeparable applies an in-place separable Gaussian blur (sigma in
// grid cells), per spec.md §4.2's smoothness requirement so the Sampler
// always sees continuous gradients. Kernel radius is 3*sigma, matching
// the teacher's 3x3/5x5 separable-kernel idiom generalized to an
// arbitrary radius.
func blurSeparable(g *buffers.Grid, sigma float32) {
	radius := int(math.Ceil(float64(sigma) * 3))
	kernel := gaussianKernel1D(sigma, radius)

	tmp := make([]float32, len(g.Data))
	for y := uint32(0); y < g.H; y++ {
		for x := uint32(0); x < g.W; x++ {
			var sum float32
			for k := -radius; k <= radius; k++ {
				sx := clampInt(int(x)+k, 0, int(g.W)-1)
				sum += g.At(uint32(sx), y) * kernel[k+radius]
			}
			tmp[y*g.W+x] = sum
		}
	}
	for y := uint32(0); y < g.H; y++ {
		for x := uint32(0); x < g.W; x++ {
			var sum float32
			for k := -radius; k <= radius; k++ {
				sy := clampInt(int(y)+k, 0, int(g.H)-1)
				sum += tmp[uint32(sy)*g.W+x] * kernel[k+radius]
			}
			g.Set(x, y, sum)
		}
	}
}

func gaussianKernel1D(sigma float32, radius int) []float32 {
	k := make([]float32, 2*radius+1)
	var total float32
	for i := -radius; i <= radius; i++ {
		v := float32(math.Exp(-float64(i*i) / (2 * float64(sigma) * float64(sigma))))
		k[i+radius] = v
		total += v
	}
	for i := range k {
		k[i] /= total
	}
	return k
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
