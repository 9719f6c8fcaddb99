package shapes

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/atomfield/buffers"
)

// generators maps every canonical name to the pure function that
// produces its raw (pre-blur) density grid. Generate() applies the
// shared Gaussian blur after calling into this table, so individual
// generators need only paint a sharp field.
var generators = map[string]func(w, h uint32) *buffers.Grid{
	"circle":     genCircle,
	"square":     genSquare,
	"triangle":   genTriangle,
	"ring":       genRing,
	"star":       genStar,
	"cross":      genCross,
	"heart":      genHeart,
	"spiral":     genSpiral,
	"lissajous":  genLissajous,
	"lorenz":     genLorenz,
	"mandelbrot": genMandelbrot,
	"julia":      genJulia,
	"sierpinski": genSierpinski,
	"dna":        genDNA,
	"benzene":    genBenzene,
	"lattice":    genLattice,
	"nacl":       genNaCl,
}

// ndc maps a grid cell to normalized device coordinates; row 0 is NDC
// y=-1 (bottom), column 0 is x=-1 (left), per spec.md's grid convention.
func ndc(x, y int, w, h uint32) (float32, float32) {
	nx := (float32(x)+0.5)/float32(w)*2 - 1
	ny := (float32(y)+0.5)/float32(h)*2 - 1
	return nx, ny
}

// stampDisc sets cells within the grid whose NDC distance from center is
// under radius, using a soft falloff band so generators don't need their
// own anti-aliasing (the shared blur smooths the rest).
func stampDisc(g *buffers.Grid, cx, cy, radius, band float32) {
	for y := uint32(0); y < g.H; y++ {
		for x := uint32(0); x < g.W; x++ {
			px, py := ndc(int(x), int(y), g.W, g.H)
			d := float32(math.Hypot(float64(px-cx), float64(py-cy)))
			v := 1 - smooth(radius-band, radius, d)
			if v > g.At(x, y) {
				g.Set(x, y, v)
			}
		}
	}
}

func smooth(edge0, edge1, v float32) float32 {
	if edge1 <= edge0 {
		if v < edge0 {
			return 0
		}
		return 1
	}
	t := clamp01((v - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stampSegment paints a thick line segment between two NDC points.
func stampSegment(g *buffers.Grid, ax, ay, bx, by, thickness float32) {
	a := mgl32.Vec2{ax, ay}
	b := mgl32.Vec2{bx, by}
	ab := b.Sub(a)
	lenSq := ab.Dot(ab)
	for y := uint32(0); y < g.H; y++ {
		for x := uint32(0); x < g.W; x++ {
			px, py := ndc(int(x), int(y), g.W, g.H)
			p := mgl32.Vec2{px, py}
			t := float32(0)
			if lenSq > 1e-12 {
				t = clamp01(p.Sub(a).Dot(ab) / lenSq)
			}
			closest := a.Add(ab.Mul(t))
			d := p.Sub(closest).Len()
			v := 1 - smooth(thickness*0.5, thickness, d)
			if v > g.At(x, y) {
				g.Set(x, y, v)
			}
		}
	}
}

func genCircle(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	stampDisc(g, 0, 0, 0.7, 0.12)
	return g
}

func genSquare(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const half = 0.6
	const band = 0.08
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			px, py := ndc(int(x), int(y), w, h)
			d := float32(math.Max(math.Abs(float64(px)), math.Abs(float64(py)))) - half
			g.Set(x, y, 1-smooth(0, band, d))
		}
	}
	return g
}

func genTriangle(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	p0 := mgl32.Vec2{0, 0.75}
	p1 := mgl32.Vec2{-0.7, -0.55}
	p2 := mgl32.Vec2{0.7, -0.55}
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			px, py := ndc(int(x), int(y), w, h)
			p := mgl32.Vec2{px, py}
			d := triangleSDF(p, p0, p1, p2)
			g.Set(x, y, 1-smooth(0, 0.1, d))
		}
	}
	return g
}

// triangleSDF returns a signed-ish distance (negative inside) using the
// max of three edge half-plane distances; good enough for a density stamp.
func triangleSDF(p, a, b, c mgl32.Vec2) float32 {
	edge := func(p, a, b mgl32.Vec2) float32 {
		e := b.Sub(a)
		n := mgl32.Vec2{-e.Y(), e.X()}.Normalize()
		return p.Sub(a).Dot(n)
	}
	d0 := edge(p, a, b)
	d1 := edge(p, b, c)
	d2 := edge(p, c, a)
	return float32(math.Max(float64(d0), math.Max(float64(d1), float64(d2))))
}

func genRing(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const outer = 0.75
	const inner = 0.5
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			px, py := ndc(int(x), int(y), w, h)
			r := float32(math.Hypot(float64(px), float64(py)))
			outside := smooth(outer-0.08, outer, r)
			insideHole := 1 - smooth(inner-0.08, inner, r)
			g.Set(x, y, (1-outside)*(1-insideHole))
		}
	}
	return g
}

func genStar(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const points = 5
	const outerR = 0.75
	const innerR = 0.32
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			px, py := ndc(int(x), int(y), w, h)
			r := float32(math.Hypot(float64(px), float64(py)))
			theta := float32(math.Atan2(float64(py), float64(px)))
			seg := math.Pi / points
			a := math.Mod(float64(theta)+math.Pi/2+seg, 2*seg)
			if a < 0 {
				a += 2 * seg
			}
			frac := math.Abs(a/seg - 1)
			edgeR := innerR + (outerR-innerR)*float32(1-frac)
			g.Set(x, y, 1-smooth(edgeR-0.05, edgeR+0.02, r))
		}
	}
	return g
}

func genCross(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	stampSegment(g, -0.75, 0, 0.75, 0, 0.28)
	stampSegment(g, 0, -0.75, 0, 0.75, 0.28)
	return g
}

func genHeart(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			px, py := ndc(int(x), int(y), w, h)
			ux, uy := float64(px)/0.85, (float64(py)+0.2)/0.85
			val := math.Pow(ux*ux+uy*uy-1, 3) - ux*ux*uy*uy*uy
			g.Set(x, y, 1-smooth(0, 0.12, float32(val)))
		}
	}
	return g
}

func genSpiral(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const turns = 3.0
	const steps = 2000
	const thickness = 0.045
	for i := 0; i < steps; i++ {
		t := float64(i) / steps
		theta := t * turns * 2 * math.Pi
		r := float32(0.05 + 0.75*t)
		p := mgl32.Vec2{r * float32(math.Cos(theta)), r * float32(math.Sin(theta))}
		stampDisc(g, p.X(), p.Y(), thickness, thickness*0.6)
	}
	return g
}

func genLissajous(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const a, b = 3.0, 2.0
	const delta = math.Pi / 2
	const steps = 3000
	const thickness = 0.04
	for i := 0; i < steps; i++ {
		t := float64(i) / steps * 2 * math.Pi
		p := mgl32.Vec2{
			0.8 * float32(math.Sin(a*t+delta)),
			0.8 * float32(math.Sin(b*t)),
		}
		stampDisc(g, p.X(), p.Y(), thickness, thickness*0.6)
	}
	return g
}

func genLorenz(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const sigma, rho, beta = 10.0, 28.0, 8.0 / 3.0
	const dt = 0.008
	const steps = 6000
	x, y, z := 0.1, 0.0, 0.0
	minX, maxX, minY, maxY := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	pts := make([][2]float64, 0, steps)
	for i := 0; i < steps; i++ {
		dx := sigma * (y - x)
		dy := x*(rho-z) - y
		dz := x*y - beta*z
		x += dx * dt
		y += dy * dt
		z += dz * dt
		pts = append(pts, [2]float64{x, z})
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, z), math.Max(maxY, z)
	}
	spanX := math.Max(maxX-minX, 1e-6)
	spanY := math.Max(maxY-minY, 1e-6)
	for _, p := range pts {
		nx := float32((p[0]-minX)/spanX*1.7 - 0.85)
		ny := float32((p[1]-minY)/spanY*1.7 - 0.85)
		stampDisc(g, nx, ny, 0.035, 0.02)
	}
	return g
}

func genMandelbrot(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const iterations = 60
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			px, py := ndc(int(x), int(y), w, h)
			cr, ci := float64(px)*1.4-0.4, float64(py)*1.4
			zr, zi := 0.0, 0.0
			n := 0
			for ; n < iterations; n++ {
				zr2, zi2 := zr*zr, zi*zi
				if zr2+zi2 > 4 {
					break
				}
				zi = 2*zr*zi + ci
				zr = zr2 - zi2 + cr
			}
			v := float32(0)
			if n == iterations {
				v = 1
			} else {
				v = clamp01(float32(n) / (iterations * 0.35))
			}
			g.Set(x, y, v)
		}
	}
	return g
}

func genJulia(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const iterations = 60
	const cr, ci = -0.70176, -0.3842
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			px, py := ndc(int(x), int(y), w, h)
			zr, zi := float64(px)*1.3, float64(py)*1.3
			n := 0
			for ; n < iterations; n++ {
				zr2, zi2 := zr*zr, zi*zi
				if zr2+zi2 > 4 {
					break
				}
				zi = 2*zr*zi + ci
				zr = zr2 - zi2 + cr
			}
			v := float32(0)
			if n == iterations {
				v = 1
			} else {
				v = clamp01(float32(n) / (iterations * 0.35))
			}
			g.Set(x, y, v)
		}
	}
	return g
}

func genSierpinski(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	p0 := mgl32.Vec2{0, 0.8}
	p1 := mgl32.Vec2{-0.75, -0.6}
	p2 := mgl32.Vec2{0.75, -0.6}
	verts := [3]mgl32.Vec2{p0, p1, p2}

	x, y := float32(0), float32(0)
	const steps = 40000
	const skip = 10
	for i := 0; i < steps; i++ {
		v := verts[chaosPick(i)]
		x = (x + v.X()) * 0.5
		y = (y + v.Y()) * 0.5
		if i > skip {
			stampDisc(g, x, y, 0.02, 0.012)
		}
	}
	return g
}

// chaosPick deterministically picks one of three vertices per iteration,
// avoiding an external RNG so shape generation stays reproducible.
func chaosPick(i int) int {
	h := uint32(i)*2654435761 + 1
	h ^= h >> 15
	return int(h % 3)
}

func genDNA(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const turns = 2.5
	const steps = 400
	const amp = 0.55
	for i := 0; i <= steps; i++ {
		t := float64(i) / steps
		theta := t * turns * 2 * math.Pi
		py := float32(t*1.6 - 0.8)
		x1 := amp * float32(math.Cos(theta))
		x2 := amp * float32(math.Cos(theta+math.Pi))
		stampDisc(g, x1, py, 0.05, 0.03)
		stampDisc(g, x2, py, 0.05, 0.03)
		if i%14 == 0 {
			stampSegment(g, x1, py, x2, py, 0.025)
		}
	}
	return g
}

func genBenzene(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const r = 0.55
	verts := make([]mgl32.Vec2, 6)
	for i := range verts {
		a := float64(i) / 6 * 2 * math.Pi
		verts[i] = mgl32.Vec2{r * float32(math.Cos(a)), r * float32(math.Sin(a))}
	}
	for i := range verts {
		stampSegment(g, verts[i].X(), verts[i].Y(), verts[(i+1)%6].X(), verts[(i+1)%6].Y(), 0.05)
		stampDisc(g, verts[i].X(), verts[i].Y(), 0.045, 0.03)
	}
	return g
}

func genLattice(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const cell = 0.28
	const radius = 0.07
	for gy := -3; gy <= 3; gy++ {
		for gx := -3; gx <= 3; gx++ {
			cx, cy := float32(gx)*cell, float32(gy)*cell
			if cx < -0.95 || cx > 0.95 || cy < -0.95 || cy > 0.95 {
				continue
			}
			stampDisc(g, cx, cy, radius, radius*0.5)
		}
	}
	return g
}

func genNaCl(w, h uint32) *buffers.Grid {
	g := buffers.NewGrid(w, h)
	const cell = 0.26
	for gy := -3; gy <= 3; gy++ {
		for gx := -3; gx <= 3; gx++ {
			cx, cy := float32(gx)*cell, float32(gy)*cell
			if cx < -0.95 || cx > 0.95 || cy < -0.95 || cy > 0.95 {
				continue
			}
			radius := float32(0.05)
			if (gx+gy)%2 != 0 {
				radius = 0.085
			}
			stampDisc(g, cx, cy, radius, radius*0.5)
		}
	}
	return g
}
