package gpu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Constants is the set of shader-constant placeholders every WGSL source
// file in this module may reference, substituted before compilation (see
// spec.md's "Shader-constant injection"). Every buffer-size-affecting
// config field is baked in here rather than passed as a uniform, since
// changing any of them requires fresh shader modules and pipelines.
type Constants struct {
	N         uint32
	DensityW  uint32
	DensityH  uint32
	ShapeW    uint32
	ShapeH    uint32
	K         uint32
	Scale     int32
	Decay     float32
	MaxVel    float32
	Bound     float32
	FireRate  float32
}

// Inject substitutes every %%NAME%% placeholder in src with its typed
// literal: unsigned constants get a trailing "u", floats are emitted
// bare, matching spec.md §6's injection rule.
func (c Constants) Inject(src string) string {
	repl := strings.NewReplacer(
		"%%N%%", u32(c.N),
		"%%DENSITY_W%%", u32(c.DensityW),
		"%%DENSITY_H%%", u32(c.DensityH),
		"%%SHAPE_W%%", u32(c.ShapeW),
		"%%SHAPE_H%%", u32(c.ShapeH),
		"%%K%%", u32(c.K),
		"%%SCALE%%", i32(c.Scale),
		"%%DECAY%%", f32(c.Decay),
		"%%MAX_VEL%%", f32(c.MaxVel),
		"%%BOUND%%", f32(c.Bound),
		"%%FIRE_RATE%%", f32(c.FireRate),
	)
	return repl.Replace(src)
}

func u32(v uint32) string { return strconv.FormatUint(uint64(v), 10) + "u" }
func i32(v int32) string  { return strconv.FormatInt(int64(v), 10) }
func f32(v float32) string {
	s := strconv.FormatFloat(float64(v), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// CreateShaderModule compiles WGSL source after constant injection,
// wrapping failures as ErrShaderCompile per the error taxonomy.
func (c *Context) CreateShaderModule(label, wgsl string, constants Constants) (*wgpu.ShaderModule, error) {
	code := constants.Inject(wgsl)
	mod, err := c.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrShaderCompile, label, err)
	}
	return mod, nil
}

// CreateComputePipeline builds a single-entry-point compute pipeline,
// wrapping failures as ErrPipelineBuild.
func (c *Context) CreateComputePipeline(label string, module *wgpu.ShaderModule, entryPoint string, layout *wgpu.PipelineLayout) (*wgpu.ComputePipeline, error) {
	pipeline, err := c.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: entryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPipelineBuild, label, err)
	}
	return pipeline, nil
}
