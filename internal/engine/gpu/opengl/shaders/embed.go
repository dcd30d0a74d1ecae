// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// MeshVertexShader transforms lit mesh geometry.
//
//go:embed mesh.vert
var MeshVertexShader string

// MeshFragmentShader shades meshes with material color, textures, lights and fog.
//
//go:embed mesh.frag
var MeshFragmentShader string

// LineVertexShader is the vertex shader for debug lines.
//
//go:embed line.vert
var LineVertexShader string

// LineFragmentShader outputs flat per-segment color.
//
//go:embed line.frag
var LineFragmentShader string

// FullscreenVertexShader emits a screen-covering triangle from gl_VertexID.
//
//go:embed fullscreen.vert
var FullscreenVertexShader string

//go:embed copy.frag
var CopyFragmentShader string

//go:embed tonemap.frag
var ToneMapFragmentShader string

//go:embed bloom_extract.frag
var BloomExtractFragmentShader string

//go:embed blur_h.frag
var BlurHorizontalFragmentShader string

//go:embed blur_v.frag
var BlurVerticalFragmentShader string

//go:embed bloom_combine.frag
var BloomCombineFragmentShader string

//go:embed gaussian_blur.frag
var GaussianBlurFragmentShader string

//go:embed monochrome.frag
var MonochromeFragmentShader string

//go:embed sepia.frag
var SepiaFragmentShader string
