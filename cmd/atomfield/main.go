// Command atomfield is the process entrypoint: it owns the window, the
// GPU bootstrap, and the frame loop, and wires keyboard input to the
// orchestrator's submit/clear control surface. Grounded on
// voxelrt/rt_main.go's glfw.Init -> CreateWindow -> callback-wiring ->
// for-!ShouldClose loop shape.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/atomfield/buffers"
	"github.com/gekko3d/atomfield/config"
	"github.com/gekko3d/atomfield/gpu"
	"github.com/gekko3d/atomfield/logging"
	"github.com/gekko3d/atomfield/nca"
	"github.com/gekko3d/atomfield/orchestrator"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "atomfield: config: %v\n", err)
		os.Exit(2)
	}

	log := logging.NewDefault("atomfield", cfg.Debug)

	if err := run(cfg, log); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log logging.Logger) error {
	ctx, window, err := gpu.NewContext(cfg.Wd/2, cfg.Hd/2, "atomfield")
	if err != nil {
		switch {
		case errors.Is(err, gpu.ErrNoAdapter):
			return fmt.Errorf("no compatible GPU adapter found: %w", err)
		case errors.Is(err, gpu.ErrNoCompute):
			return fmt.Errorf("adapter lacks compute support: %w", err)
		default:
			return fmt.Errorf("gpu bootstrap: %w", err)
		}
	}
	defer glfw.Terminate()
	defer window.Destroy()

	// The atom-state and NCA-state buffer widths are fixed at allocation
	// time; NcaChannels depends on whether a weights file is present, so
	// the same probe orchestrator.New performs is repeated here, once,
	// before the registry is sized. Loading is cheap and only happens at
	// startup.
	ncaChannels := uint32(1)
	if _, werr := nca.LoadWeights(cfg.WeightsPath); werr == nil {
		ncaChannels = nca.Channels
	}

	reg, err := buffers.New(ctx, buffers.Sizes{
		N:           uint32(cfg.N),
		Wd:          uint32(cfg.Wd),
		Hd:          uint32(cfg.Hd),
		Wg:          uint32(cfg.Wg),
		Hg:          uint32(cfg.Hg),
		K:           uint32(cfg.K),
		NcaChannels: ncaChannels,
	})
	if err != nil {
		return fmt.Errorf("buffer registry: %w", err)
	}

	orch, err := orchestrator.New(ctx, reg, cfg, log)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	input := newInputBuffer(orch, log)

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		ctx.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyEnter, glfw.KeyKPEnter:
			input.submit()
		case glfw.KeyBackspace:
			input.backspace()
		case glfw.KeyDelete:
			input.clear()
		}
	})
	window.SetCharCallback(func(w *glfw.Window, char rune) {
		input.append(char)
	})

	lastFrame := glfw.GetTime()
	for !window.ShouldClose() {
		glfw.PollEvents()

		now := glfw.GetTime()
		dt := float32(now - lastFrame)
		lastFrame = now
		if dt > 0 {
			orch.TickFPS(1.0 / float64(dt))
		}

		texture, err := ctx.Surface.GetCurrentTexture()
		if err != nil {
			log.Errorf("get current texture: %v", err)
			continue
		}
		view, err := texture.CreateView(nil)
		if err != nil {
			texture.Release()
			log.Errorf("create texture view: %v", err)
			continue
		}

		if err := orch.Tick(dt, view); err != nil {
			view.Release()
			texture.Release()
			if errors.Is(err, gpu.ErrDeviceLost) {
				return fmt.Errorf("device lost: %w", err)
			}
			log.Errorf("tick: %v", err)
			continue
		}

		ctx.Surface.Present()
		view.Release()
		texture.Release()
		ctx.Device.Poll(false, nil)
	}
	return nil
}

// inputBuffer stands in for the external DOM side panel's text field:
// it accumulates typed characters and turns Enter into submit(text),
// Delete into clear(). There is no on-screen echo of the buffer
// contents (that is the side panel's job, out of scope here); the
// resolved canonical name is visible via the HUD status text instead.
type inputBuffer struct {
	orch *orchestrator.Orchestrator
	log  logging.Logger
	buf  strings.Builder
}

func newInputBuffer(orch *orchestrator.Orchestrator, log logging.Logger) *inputBuffer {
	return &inputBuffer{orch: orch, log: log}
}

func (b *inputBuffer) append(r rune) {
	b.buf.WriteRune(r)
}

func (b *inputBuffer) backspace() {
	s := b.buf.String()
	if s == "" {
		return
	}
	b.buf.Reset()
	b.buf.WriteString(s[:len(s)-1])
}

func (b *inputBuffer) submit() {
	text := b.buf.String()
	b.buf.Reset()
	if text == "" {
		return
	}
	if err := b.orch.Submit(context.Background(), text); err != nil {
		b.log.Errorf("submit(%q): %v", text, err)
	}
}

func (b *inputBuffer) clear() {
	b.buf.Reset()
	if err := b.orch.Clear(context.Background()); err != nil {
		b.log.Errorf("clear(): %v", err)
	}
}
