// Package shaders embeds every WGSL kernel used by the GPU pipeline, one
// constant per file, grounded on voxelrt/rt/shaders/shaders.go's
// go:embed-per-file idiom.
package shaders

import _ "embed"

//go:embed physics.wgsl
var PhysicsWGSL string

//go:embed splat.wgsl
var SplatWGSL string

//go:embed decay.wgsl
var DecayWGSL string

//go:embed bloom.wgsl
var BloomWGSL string

//go:embed render.wgsl
var RenderWGSL string

//go:embed nca_mlp.wgsl
var NcaMlpWGSL string

//go:embed nca_rds.wgsl
var NcaRdsWGSL string

//go:embed kmeans_assign.wgsl
var KMeansAssignWGSL string

//go:embed kmeans_accumulate.wgsl
var KMeansAccumulateWGSL string

//go:embed kmeans_divide.wgsl
var KMeansDivideWGSL string
