// Package gpu owns the WebGPU device/queue/surface bootstrap and the
// small set of buffer/pipeline helpers every compute/render component in
// atomfield builds on. The bootstrap sequence (instance -> surface ->
// adapter -> device -> queue -> surface configuration) and the
// helper shapes are grounded on the teacher's gpu_operations.go and
// voxelrt/rt/app/app.go.
package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Initialization failure categories, matched with errors.Is at the
// single call site (cmd/atomfield/main.go) that decides fatal-vs-log.
var (
	ErrNoAdapter     = errors.New("gpu: no compatible adapter")
	ErrNoCompute     = errors.New("gpu: adapter lacks compute+atomics support")
	ErrShaderCompile = errors.New("gpu: shader module compile failed")
	ErrPipelineBuild = errors.New("gpu: pipeline build failed")
	ErrDeviceLost    = errors.New("gpu: device lost")
)

// Context holds the device-level WebGPU handles every other package
// depends on to build buffers, pipelines, and bind groups.
type Context struct {
	Instance *wgpu.Instance
	Surface  *wgpu.Surface
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	SurfaceConfig wgpu.SurfaceConfiguration
	Width, Height int

	lost bool
}

// NewContext performs the full bootstrap: window -> surface -> adapter ->
// device -> queue -> surface configuration. The window is created with
// ClientAPI=NoAPI, matching the teacher's glfw+wgpu pairing.
func NewContext(width, height int, title string) (*Context, *glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("gpu: glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("gpu: create window: %w", err)
	}

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "atomfield device",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoCompute, err)
	}
	queue := device.GetQueue()

	caps := surface.GetCapabilities(adapter)
	cfg := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &cfg)

	ctx := &Context{
		Instance:      instance,
		Surface:       surface,
		Adapter:       adapter,
		Device:        device,
		Queue:         queue,
		SurfaceConfig: cfg,
		Width:         width,
		Height:        height,
	}

	device.SetUncapturedErrorCallback(func(typ wgpu.ErrorType, message string) {
		if typ == wgpu.ErrorTypeDeviceLost {
			// nothing recoverable here; caller observes it via Lost().
			ctx.MarkLost()
		}
	})

	return ctx, window, nil
}

func (c *Context) Resize(width, height int) {
	c.Width, c.Height = width, height
	c.SurfaceConfig.Width = uint32(width)
	c.SurfaceConfig.Height = uint32(height)
	c.Surface.Configure(c.Adapter, c.Device, &c.SurfaceConfig)
}

// MarkLost records a device-lost event. Per the device-loss policy, the
// process does not attempt recovery in scope; the frame loop checks
// Lost() and stops submitting work.
func (c *Context) MarkLost() { c.lost = true }
func (c *Context) Lost() bool { return c.lost }
