// Command gridsnapshot is a debug tool: it turns a raw density/trail
// grid dump (little-endian float32, row-major, written by a debugging
// build of atomfield) into a viewable PNG, upscaled with a bilinear
// filter so a 128x128 NCA grid or a low-res trail buffer is legible at
// a useful size. Re-homes golang.org/x/image/draw, which the teacher
// pulls in for font rasterization (HUD text, out of scope here) onto
// this standalone inspection path instead.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/gpu"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gridsnapshot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	in := flag.String("in", "", "path to a raw float32 grid dump")
	out := flag.String("out", "grid.png", "output PNG path")
	w := flag.Uint("w", 128, "grid width")
	h := flag.Uint("h", 128, "grid height")
	scale := flag.Uint("scale", 4, "integer upscale factor")
	flag.Parse()

	if *in == "" {
		return fmt.Errorf("missing -in")
	}

	grid, err := readGrid(*in, uint32(*w), uint32(*h))
	if err != nil {
		return err
	}

	src := grayscaleFromGrid(grid)

	dstW, dstH := int(*w)*int(*scale), int(*h)*int(*scale)
	dst := image.NewGray(image.Rect(0, 0, dstW, dstH))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	if err := png.Encode(f, dst); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// readGrid loads a raw float32 dump into a buffers.Grid, failing if the
// file isn't exactly w*h*4 bytes (the format carries no header; w/h are
// supplied on the command line to match how the dump was produced).
func readGrid(path string, w, h uint32) (*buffers.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	want := int(w) * int(h) * 4
	if len(data) != want {
		return nil, fmt.Errorf("%s: %d bytes, want %d for a %dx%d grid", path, len(data), want, w, h)
	}
	grid := buffers.NewGrid(w, h)
	copy(grid.Data, gpu.BytesToFloat32Slice(data))
	return grid, nil
}

// grayscaleFromGrid normalizes grid values to [0, 255] by the
// brightest cell so a sparse density field (mostly zero, a few hot
// cells) is still visible instead of clipping to black.
func grayscaleFromGrid(grid *buffers.Grid) *image.Gray {
	peak := float32(0)
	for _, v := range grid.Data {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		peak = 1
	}

	img := image.NewGray(image.Rect(0, 0, int(grid.W), int(grid.H)))
	for y := uint32(0); y < grid.H; y++ {
		for x := uint32(0); x < grid.W; x++ {
			// Grid row 0 is NDC bottom; image row 0 is top, so flip.
			v := grid.At(x, grid.H-1-y)
			level := uint8(math.Min(255, math.Max(0, float64(v/peak*255))))
			img.SetGray(int(x), int(y), color.Gray{Y: level})
		}
	}
	return img
}
