package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 3.25, 1e10, -1e-5}
	out := BytesToFloat32Slice(Float32SliceToBytes(in))
	assert.Equal(t, in, out)
}

func TestUint32RoundTrip(t *testing.T) {
	in := []uint32{0, 1, 4294967295, 123456}
	out := BytesToUint32Slice(Uint32SliceToBytes(in))
	assert.Equal(t, in, out)
}

func TestInt32RoundTrip(t *testing.T) {
	in := []int32{0, -1, 2147483647, -2147483648, 42}
	out := BytesToInt32Slice(Int32SliceToBytes(in))
	assert.Equal(t, in, out)
}

func TestConstantsInject(t *testing.T) {
	c := Constants{N: 1500000, DensityW: 2560, Decay: 0.9, Scale: -16384}
	src := "const N: u32 = %%N%%; const W: u32 = %%DENSITY_W%%; const DECAY: f32 = %%DECAY%%; const SCALE: i32 = %%SCALE%%;"
	got := c.Inject(src)
	assert.Equal(t, "const N: u32 = 1500000u; const W: u32 = 2560u; const DECAY: f32 = 0.9; const SCALE: i32 = -16384;", got)
}

func TestDispatch1D(t *testing.T) {
	assert.Equal(t, uint32(1), Dispatch1D(1, 256))
	assert.Equal(t, uint32(1), Dispatch1D(256, 256))
	assert.Equal(t, uint32(2), Dispatch1D(257, 256))
}
