// Package shapes is the Shape Library: pure functions mapping a free-text
// name to a canonical shape name, and a canonical name to a density
// grid. Grounded on mod_presets.go's JSON-registry-by-identifier idiom
// and asset_procedural.go's "pure function producing geometry data,
// cached by name" shape.
package shapes

import (
	"strings"
	"sync"

	"github.com/gekko3d/atomfield/buffers"
)

// Default is the fallback canonical name used when resolve cannot match
// the input to anything else.
const Default = "circle"

// Canonical is the full registered shape set, grouped by tier (the
// grouping is documentation only; resolve/generate treat it as one flat
// set).
var Canonical = map[string]bool{
	// geometric primitives
	"circle": true, "square": true, "triangle": true, "ring": true,
	"star": true, "cross": true, "heart": true,
	// mathematical curves/attractors/fractals
	"spiral": true, "lissajous": true, "lorenz": true, "mandelbrot": true,
	"julia": true, "sierpinski": true,
	// molecular/lattice
	"dna": true, "benzene": true, "lattice": true, "nacl": true,
}

// Aliases maps a non-canonical word to exactly one canonical name. No
// alias may point to another alias (no cycles, enforced by construction
// since every value here is itself a key in Canonical).
var Aliases = map[string]string{
	"helix":   "dna",
	"hexagon": "benzene",
	"salt":    "nacl",
	"spiral2": "spiral",
	"star5":   "star",
}

// Resolve performs: exact canonical match -> alias match -> longest
// canonical prefix match -> Default. Idempotent: Resolve(Resolve(x)) ==
// Resolve(x), since every returned value is itself a Canonical key.
func Resolve(text string) string {
	needle := strings.ToLower(strings.TrimSpace(text))
	if Canonical[needle] {
		return needle
	}
	if canon, ok := Aliases[needle]; ok {
		return canon
	}

	best := ""
	for name := range Canonical {
		if strings.HasPrefix(needle, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return best
	}
	return Default
}

var cache sync.Map // canonical name -> *buffers.Grid

// Generate produces (and caches) the W x H density grid for a canonical
// name. Callers must pass an already-resolved name; Generate does not
// call Resolve itself so the cache key is always canonical.
func Generate(canonical string, w, h uint32) *buffers.Grid {
	key := cacheKey(canonical, w, h)
	if cached, ok := cache.Load(key); ok {
		return cached.(*buffers.Grid).Clone()
	}

	gen, ok := generators[canonical]
	if !ok {
		gen = generators[Default]
	}
	grid := gen(w, h)
	blurSeparable(grid, 1.5)

	cache.Store(key, grid.Clone())
	return grid
}

func cacheKey(name string, w, h uint32) string {
	return name + ":" + itoa(w) + "x" + itoa(h)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
