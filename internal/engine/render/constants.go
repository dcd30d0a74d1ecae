package render

import "github.com/go-gl/mathgl/mgl32"

// MaxLights is the size of the light array in PerFramePS.
const MaxLights = 4

// Constant buffer layouts. Field order and padding follow std140 and must
// match the uniform blocks in the mesh and line shaders.

// PerFrameVS is bound to the vertex stage once per frame.
type PerFrameVS struct {
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Fog        [4]float32 // x start, y end
}

// PerObjectVS is bound to the vertex stage before each renderable draws.
type PerObjectVS struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat4
}

type lightBlock struct {
	Ambient       [4]float32
	Diffuse       [4]float32
	PositionRange [4]float32
	Params        [4]float32 // intensity, constant, linear, quadratic
}

// PerFramePS is bound to the pixel stage once per frame.
type PerFramePS struct {
	Lights     [MaxLights]lightBlock
	FogColor   [4]float32
	LightCount [4]int32
}

// PerObjectPS carries the bound material.
type PerObjectPS struct {
	Color    [4]float32
	Specular [4]float32 // x intensity, y power
}

// Light is a point light.
type Light struct {
	Position  mgl32.Vec3
	Range     float32
	Ambient   mgl32.Vec3
	Diffuse   mgl32.Vec3
	Intensity float32
	// Attenuation is the constant, linear and quadratic factor.
	Attenuation mgl32.Vec3
}

// DefaultLight returns a white light with mild falloff.
func DefaultLight(pos mgl32.Vec3) Light {
	return Light{
		Position:    pos,
		Range:       100,
		Ambient:     mgl32.Vec3{0.1, 0.1, 0.1},
		Diffuse:     mgl32.Vec3{1, 1, 1},
		Intensity:   1,
		Attenuation: mgl32.Vec3{1, 0.01, 0.001},
	}
}

func (l Light) block() lightBlock {
	return lightBlock{
		Ambient:       [4]float32{l.Ambient[0], l.Ambient[1], l.Ambient[2], 1},
		Diffuse:       [4]float32{l.Diffuse[0], l.Diffuse[1], l.Diffuse[2], 1},
		PositionRange: [4]float32{l.Position[0], l.Position[1], l.Position[2], l.Range},
		Params:        [4]float32{l.Intensity, l.Attenuation[0], l.Attenuation[1], l.Attenuation[2]},
	}
}

// Fog is linear distance fog.
type Fog struct {
	Start, End float32
	Color      [4]float32
}
