package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGridAtSetRowMajor(t *testing.T) {
	g := NewGrid(4, 3)
	g.Set(1, 2, 0.5)
	assert.Equal(t, float32(0.5), g.At(1, 2))
	assert.Equal(t, float32(0.5), g.Data[2*4+1])
}

func TestGridClone(t *testing.T) {
	g := NewGrid(2, 2)
	g.Set(0, 0, 1)
	clone := g.Clone()
	clone.Set(0, 0, 2)
	assert.Equal(t, float32(1), g.At(0, 0))
	assert.Equal(t, float32(2), clone.At(0, 0))
}
