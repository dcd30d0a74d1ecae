package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/engine/gpu/opengl/shaders"
)

// Uniform block binding points. Pixel stage slots are offset so vertex and
// pixel constant buffers of the same slot never collide.
const pixelBindingOffset = 4

var blockBindings = map[string]uint32{
	"PerFrameVS":  gpu.SlotPerFrame,
	"PerObjectVS": gpu.SlotPerObject,
	"PerFramePS":  pixelBindingOffset + gpu.SlotPerFrame,
	"PerObjectPS": pixelBindingOffset + gpu.SlotPerObject,
	"EffectPS":    pixelBindingOffset + gpu.SlotEffect,
}

func bindingPoint(stage gpu.Stage, slot int) uint32 {
	if stage == gpu.PixelStage {
		return uint32(pixelBindingOffset + slot)
	}
	return uint32(slot)
}

type programSource struct {
	vertex, fragment string
}

func programSources() [gpu.ProgramCount]programSource {
	fs := shaders.FullscreenVertexShader
	return [gpu.ProgramCount]programSource{
		gpu.ProgramMesh:           {shaders.MeshVertexShader, shaders.MeshFragmentShader},
		gpu.ProgramLine:           {shaders.LineVertexShader, shaders.LineFragmentShader},
		gpu.ProgramCopy:           {fs, shaders.CopyFragmentShader},
		gpu.ProgramToneMap:        {fs, shaders.ToneMapFragmentShader},
		gpu.ProgramBloomExtract:   {fs, shaders.BloomExtractFragmentShader},
		gpu.ProgramBlurHorizontal: {fs, shaders.BlurHorizontalFragmentShader},
		gpu.ProgramBlurVertical:   {fs, shaders.BlurVerticalFragmentShader},
		gpu.ProgramBloomCombine:   {fs, shaders.BloomCombineFragmentShader},
		gpu.ProgramGaussianBlur:   {fs, shaders.GaussianBlurFragmentShader},
		gpu.ProgramMonochrome:     {fs, shaders.MonochromeFragmentShader},
		gpu.ProgramSepia:          {fs, shaders.SepiaFragmentShader},
	}
}

// compilePrograms builds every built-in program and wires its uniform
// blocks and samplers to the fixed binding points.
func compilePrograms() ([gpu.ProgramCount]uint32, error) {
	var out [gpu.ProgramCount]uint32
	for i, src := range programSources() {
		prog, err := compileProgram(src.vertex, src.fragment)
		if err != nil {
			for _, p := range out[:i] {
				gl.DeleteProgram(p)
			}
			return out, fmt.Errorf("program %s: %w", gpu.Program(i), err)
		}
		bindBlocks(prog)
		out[i] = prog
	}
	return out, nil
}

func bindBlocks(prog uint32) {
	for name, point := range blockBindings {
		idx := gl.GetUniformBlockIndex(prog, gl.Str(name+"\x00"))
		if idx != gl.INVALID_INDEX {
			gl.UniformBlockBinding(prog, idx, point)
		}
	}
	gl.UseProgram(prog)
	for slot := 0; slot < gpu.MaxTextureSlots; slot++ {
		loc := gl.GetUniformLocation(prog, gl.Str(fmt.Sprintf("uTex%d\x00", slot)))
		if loc >= 0 {
			gl.Uniform1i(loc, int32(slot))
		}
	}
	gl.UseProgram(0)
}

// compileProgram compiles vertex and fragment shaders and links them into a program.
func compileProgram(vertexSrc, fragmentSrc string) (uint32, error) {
	vertShader, err := compileShader(vertexSrc, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertShader)

	fragShader, err := compileShader(fragmentSrc, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertShader)
	gl.AttachShader(program, fragShader)
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetProgramInfoLog(program, logLen, nil, &log[0])
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("link: %s", string(log))
	}

	return program, nil
}

func compileShader(source string, shaderType uint32, name string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := make([]byte, logLen+1)
		gl.GetShaderInfoLog(shader, logLen, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("%s shader: %s", name, string(log))
	}

	return shader, nil
}
