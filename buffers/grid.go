package buffers

// Grid is a W x H array of scalars in row-major order, row 0 = NDC
// y=-1 (bottom), column 0 = NDC x=-1 (left). Used as the CPU-side
// representation of density/goal/alpha grids shared by the Shape
// Library, NCA Engine, and Sampler.
type Grid struct {
	W, H uint32
	Data []float32
}

func NewGrid(w, h uint32) *Grid {
	return &Grid{W: w, H: h, Data: make([]float32, w*h)}
}

func (g *Grid) At(x, y uint32) float32 { return g.Data[y*g.W+x] }
func (g *Grid) Set(x, y uint32, v float32) { g.Data[y*g.W+x] = v }

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{W: g.W, H: g.H, Data: make([]float32, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}
