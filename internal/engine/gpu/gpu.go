// Package gpu defines the graphics device contract used by the render core
// and typed wrappers for vertex, index and constant buffers.
package gpu

import (
	"errors"
	"image"
)

// Handles are opaque device object IDs. Zero is never a valid buffer or texture.
type (
	BufferID  uint32
	TextureID uint32
	TargetID  uint32
)

// BackBuffer is the render target presented to the window.
const BackBuffer TargetID = 0

// BufferKind selects the binding point of a buffer.
type BufferKind uint8

const (
	KindVertex BufferKind = iota
	KindIndex
	KindConstant
)

// Usage controls whether a buffer can be rewritten after creation.
type Usage uint8

const (
	Immutable Usage = iota
	Dynamic
)

// Stage selects the shader stage a constant buffer is bound to.
type Stage uint8

const (
	VertexStage Stage = iota
	PixelStage
)

// Topology is the primitive type of a draw call.
type Topology uint8

const (
	Triangles Topology = iota
	Lines
)

// Layout describes the vertex format of a bound vertex buffer.
type Layout uint8

const (
	// LayoutMesh is position, normal, texcoord, tangent.
	LayoutMesh Layout = iota
	// LayoutLine is position, color.
	LayoutLine
)

// Program selects one of the device's built-in shader programs.
type Program uint8

const (
	ProgramMesh Program = iota
	ProgramLine
	ProgramCopy
	ProgramToneMap
	ProgramBloomExtract
	ProgramBlurHorizontal
	ProgramBlurVertical
	ProgramBloomCombine
	ProgramGaussianBlur
	ProgramMonochrome
	ProgramSepia
	programCount
)

// ProgramCount is the number of built-in programs.
const ProgramCount = int(programCount)

var programNames = [...]string{
	"mesh", "line", "copy", "tonemap", "bloom_extract", "blur_h", "blur_v",
	"bloom_combine", "gaussian_blur", "monochrome", "sepia",
}

func (p Program) String() string {
	if int(p) < len(programNames) {
		return programNames[p]
	}
	return "unknown"
}

// RasterState selects fill and cull mode.
type RasterState uint8

const (
	RasterDefault RasterState = iota
	RasterWireframe
	RasterNoCull
)

// BlendState selects the output merger blend mode.
type BlendState uint8

const (
	BlendOpaque BlendState = iota
	BlendAlpha
)

// Constant buffer slots shared between the render core and shaders.
const (
	SlotPerFrame  = 0
	SlotPerObject = 1
	SlotEffect    = 2
)

// Texture slots. Material textures occupy 0-3, effects sample 0 and 1.
const MaxTextureSlots = 4

var (
	// ErrImmutable is returned when updating an immutable buffer.
	ErrImmutable = errors.New("gpu: buffer is immutable")
	// ErrEmptyBuffer is returned when creating an immutable buffer without data.
	ErrEmptyBuffer = errors.New("gpu: empty immutable buffer")
	// ErrReleased is returned when using a released buffer.
	ErrReleased = errors.New("gpu: buffer released")
)

// Device is a graphics device. All calls must come from the thread that
// owns the graphics context. Upload calls are synchronous.
type Device interface {
	CreateBuffer(kind BufferKind, usage Usage, data []byte) (BufferID, error)
	UpdateBuffer(id BufferID, data []byte) error
	DeleteBuffer(id BufferID)
	BindVertexBuffer(id BufferID, layout Layout)
	BindIndexBuffer(id BufferID)
	BindConstantBuffer(stage Stage, slot int, id BufferID)

	CreateTexture(img *image.RGBA) (TextureID, error)
	DeleteTexture(id TextureID)
	BindTexture(slot int, id TextureID)

	CreateRenderTarget(width, height int) (TargetID, error)
	DeleteRenderTarget(id TargetID)
	TargetTexture(id TargetID) TextureID
	SetRenderTarget(id TargetID)
	Clear(color [4]float32)
	// BlitDepth copies the depth attachment of src into the bound target.
	BlitDepth(src TargetID)

	SetProgram(p Program)
	SetRasterState(s RasterState)
	SetBlendState(s BlendState)
	SetDepthTest(enabled bool)

	// DrawIndexed draws count indices starting at first from the bound index buffer.
	DrawIndexed(t Topology, count, first int)
	// DrawFullscreen draws a screen-covering triangle with the bound program.
	DrawFullscreen()

	Size() (width, height int)

	// Lost reports whether the device was lost since the last Reset.
	Lost() bool
	// Reset re-creates the device context after a loss. All handles
	// created before the loss are invalid afterwards.
	Reset() error
}
