package shapes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExactAndAlias(t *testing.T) {
	assert.Equal(t, "dna", Resolve("DNA"))
	assert.Equal(t, "dna", Resolve("dna"))
	assert.Equal(t, "dna", Resolve(" DNA "))
	assert.Equal(t, "dna", Resolve("helix"))
}

func TestResolveFallsBackToDefault(t *testing.T) {
	assert.Equal(t, Default, Resolve("gibberish"))
}

func TestResolveIsIdempotent(t *testing.T) {
	for _, in := range []string{"DNA", "helix", "gibberish", "circle", "star5"} {
		once := Resolve(in)
		twice := Resolve(Resolve(in))
		assert.Equal(t, once, twice)
		assert.True(t, Canonical[once])
	}
}

func TestResolvePrefixMatch(t *testing.T) {
	assert.Equal(t, "circle", Resolve("circles"))
}

func TestNoAliasCycles(t *testing.T) {
	for _, canon := range Aliases {
		assert.True(t, Canonical[canon], "alias target %q must be canonical", canon)
	}
}

func TestGenerateProducesValidGrid(t *testing.T) {
	for name := range Canonical {
		grid := Generate(name, 32, 32)
		require.Equal(t, uint32(32), grid.W)
		require.Equal(t, uint32(32), grid.H)
		for _, v := range grid.Data {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.LessOrEqual(t, v, float32(1))
		}
	}
}

func TestGenerateIsCachedAndReturnsCopies(t *testing.T) {
	a := Generate("circle", 16, 16)
	b := Generate("circle", 16, 16)
	a.Set(0, 0, 0.123)
	assert.NotEqual(t, a.At(0, 0), b.At(0, 0))
}

func TestGenerateBlursSharpEdges(t *testing.T) {
	grid := Generate("square", 64, 64)
	// A blurred square should have some intermediate (non 0/1) values near
	// its border rather than a hard step.
	found := false
	for _, v := range grid.Data {
		if v > 0.05 && v < 0.95 {
			found = true
			break
		}
	}
	assert.True(t, found, "expected blurred gradient values, grid looks unblurred")
}
