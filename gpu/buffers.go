package gpu

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Headroom/growth constants, grounded on voxelrt/rt/gpu/manager.go's
// buffer-lifecycle constants.
const (
	HeadroomPayload     = 256
	SafeBufferSizeLimit = 1 << 31
)

// CreateBufferInit allocates a buffer pre-populated with data.
func (c *Context) CreateBufferInit(label string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := c.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %s: %w", label, err)
	}
	return buf, nil
}

// CreateBufferEmpty allocates a zeroed buffer of the given byte size.
func (c *Context) CreateBufferEmpty(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %s: %w", label, err)
	}
	return buf, nil
}

// EnsureBuffer grows *buf geometrically (x1.5) to hold at least
// len(data)+headroom bytes, preserving existing content via a device-side
// copy when data is nil (a resize-in-place), or overwriting with data
// when data is non-nil. This is the Buffer Registry's one resizing
// primitive, grounded verbatim on voxelrt/rt/gpu/manager.go's
// ensureBuffer. In normal atomfield operation every buffer is sized once
// from the fixed config constants and never regrows — this exists so the
// Buffer Registry has a single, already-correct path if that constraint
// is ever relaxed, rather than a second bespoke allocator.
func (c *Context) EnsureBuffer(label string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) (bool, error) {
	needed := uint64(len(data) + headroom)
	if needed%4 != 0 {
		needed += 4 - (needed % 4)
	}

	usage |= wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	current := *buf

	if current != nil && current.GetSize() >= needed {
		if data != nil {
			c.Queue.WriteBuffer(current, 0, data)
		}
		return false, nil
	}

	newSize := needed
	if current != nil {
		grown := uint64(float64(current.GetSize()) * 1.5)
		if grown > newSize {
			newSize = grown
		}
	}
	if newSize > SafeBufferSizeLimit {
		return false, fmt.Errorf("gpu: buffer %s requested size %d exceeds safety limit", label, newSize)
	}

	newBuf, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  newSize,
		Usage: usage,
	})
	if err != nil {
		return false, fmt.Errorf("gpu: grow buffer %s: %w", label, err)
	}

	if current != nil && data == nil {
		encoder, err := c.Device.CreateCommandEncoder(nil)
		if err != nil {
			return false, fmt.Errorf("gpu: copy-preserve buffer %s: %w", label, err)
		}
		encoder.CopyBufferToBuffer(current, 0, newBuf, 0, current.GetSize())
		cmd, err := encoder.Finish(nil)
		if err != nil {
			return false, fmt.Errorf("gpu: finish copy-preserve buffer %s: %w", label, err)
		}
		c.Queue.Submit(cmd)
	}
	if current != nil {
		current.Release()
	}

	*buf = newBuf
	if data != nil {
		c.Queue.WriteBuffer(newBuf, 0, data)
	}
	return true, nil
}

// ReadBuffer synchronously maps buf for read and returns its contents,
// per the suspension-point model: MapAsync + Device.Poll + copy-out +
// Unmap, resolved on the calling goroutine rather than overlapped with
// the frame loop.
func (c *Context) ReadBuffer(ctx context.Context, buf *wgpu.Buffer, size uint64) ([]byte, error) {
	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case status := <-done:
			if status != wgpu.BufferMapAsyncStatusSuccess {
				return nil, fmt.Errorf("gpu: buffer map failed: %v", status)
			}
			mapped := buf.GetMappedRange(0, uint(size))
			out := make([]byte, len(mapped))
			copy(out, mapped)
			buf.Unmap()
			return out, nil
		default:
			c.Device.Poll(false, nil)
		}
	}
}

// BufferEntry builds a whole-buffer bind group entry; it is used by every
// component's bind group construction, grounded on gpu_operations.go's
// createBufferGroupedBindings.
func BufferEntry(binding uint32, buf *wgpu.Buffer) wgpu.BindGroupEntry {
	return wgpu.BindGroupEntry{Binding: binding, Buffer: buf, Size: wgpu.WholeSize}
}

func (c *Context) CreateBindGroup(label string, layout *wgpu.BindGroupLayout, entries []wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
	bg, err := c.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: bind group %s: %w", label, err)
	}
	return bg, nil
}

func ComputeBufferLayoutEntry(binding uint32, bufType wgpu.BufferBindingType) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageCompute,
		Buffer: wgpu.BufferBindingLayout{
			Type: bufType,
		},
	}
}

func (c *Context) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (*wgpu.BindGroupLayout, error) {
	bgl, err := c.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: bind group layout %s: %w", label, err)
	}
	return bgl, nil
}

func (c *Context) CreatePipelineLayout(label string, layouts ...*wgpu.BindGroupLayout) (*wgpu.PipelineLayout, error) {
	pl, err := c.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: pipeline layout %s: %w", label, err)
	}
	return pl, nil
}

// Dispatch1D computes the workgroup count for a 1D kernel of the given
// element count and workgroup size (256 throughout this module, per
// spec.md's physics/splat kernel declarations).
func Dispatch1D(count, workgroupSize uint32) uint32 {
	return (count + workgroupSize - 1) / workgroupSize
}

// Dispatch2D computes the workgroup count for a 2D kernel (8x8 groups,
// matching the teacher's G-Buffer/Lighting dispatch pattern).
func Dispatch2D(w, h uint32) (uint32, uint32) {
	return (w + 7) / 8, (h + 7) / 8
}
