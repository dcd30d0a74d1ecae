// Package opengl implements gpu.Device on OpenGL 4.1 core.
package opengl

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/logger"
)

type buffer struct {
	target uint32
	usage  gpu.Usage
	size   int
}

// Device is an OpenGL graphics device. It must be created and used on the
// thread that owns the GL context.
type Device struct {
	width, height int

	programs [gpu.ProgramCount]uint32
	vaos     [2]uint32
	emptyVAO uint32

	buffers  map[gpu.BufferID]*buffer
	textures map[gpu.TextureID]struct{}
	targets  map[gpu.TargetID]*renderTarget

	layout gpu.Layout
	lost   bool
}

// New initializes OpenGL and compiles the built-in programs.
// Must be called AFTER the OpenGL context is created.
func New(width, height int) (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	d := &Device{width: width, height: height}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	d.buffers = make(map[gpu.BufferID]*buffer)
	d.textures = make(map[gpu.TextureID]struct{})
	d.targets = make(map[gpu.TargetID]*renderTarget)

	programs, err := compilePrograms()
	if err != nil {
		return err
	}
	d.programs = programs

	gl.GenVertexArrays(int32(len(d.vaos)), &d.vaos[0])
	gl.GenVertexArrays(1, &d.emptyVAO)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)
	gl.Viewport(0, 0, int32(d.width), int32(d.height))

	logger.Debug("device objects created", zap.Int("programs", len(d.programs)))
	return nil
}

// Close releases every GL object owned by the device.
func (d *Device) Close() {
	logger.Info("closing graphics device")
	for id := range d.buffers {
		d.DeleteBuffer(id)
	}
	for id := range d.targets {
		d.DeleteRenderTarget(id)
	}
	for id := range d.textures {
		d.DeleteTexture(id)
	}
	for _, p := range d.programs {
		if p != 0 {
			gl.DeleteProgram(p)
		}
	}
	d.programs = [gpu.ProgramCount]uint32{}
	gl.DeleteVertexArrays(int32(len(d.vaos)), &d.vaos[0])
	gl.DeleteVertexArrays(1, &d.emptyVAO)
	d.vaos = [2]uint32{}
	d.emptyVAO = 0
}

// Resize updates the back buffer size after a window resize.
func (d *Device) Resize(width, height int) {
	d.width, d.height = width, height
	logger.Debug("device resized", zap.Int("width", width), zap.Int("height", height))
}

func (d *Device) Size() (int, int) { return d.width, d.height }

// ReadPixels returns the back buffer as bottom-up RGBA rows.
func (d *Device) ReadPixels() []byte {
	pixels := make([]byte, d.width*d.height*4)
	if len(pixels) == 0 {
		return nil
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.ReadPixels(0, 0, int32(d.width), int32(d.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	d.checkError("ReadPixels")
	return pixels
}

func (d *Device) checkError(op string) {
	if code := gl.GetError(); code != gl.NO_ERROR {
		logger.Warn("gl error", zap.String("op", op), zap.Uint32("code", code))
		if code == gl.OUT_OF_MEMORY {
			d.lost = true
		}
	}
}

func glTarget(kind gpu.BufferKind) uint32 {
	switch kind {
	case gpu.KindIndex:
		return gl.ELEMENT_ARRAY_BUFFER
	case gpu.KindConstant:
		return gl.UNIFORM_BUFFER
	default:
		return gl.ARRAY_BUFFER
	}
}

func glUsage(u gpu.Usage) uint32 {
	if u == gpu.Dynamic {
		return gl.DYNAMIC_DRAW
	}
	return gl.STATIC_DRAW
}

func ptr(data []byte) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Pointer(&data[0])
}

func (d *Device) CreateBuffer(kind gpu.BufferKind, usage gpu.Usage, data []byte) (gpu.BufferID, error) {
	if usage == gpu.Immutable && len(data) == 0 {
		return 0, gpu.ErrEmptyBuffer
	}
	b := &buffer{target: glTarget(kind), usage: usage, size: len(data)}
	var name uint32
	gl.GenBuffers(1, &name)
	if kind == gpu.KindIndex {
		// Element array bindings are VAO state; keep them off the layout VAOs.
		gl.BindVertexArray(d.emptyVAO)
	}
	gl.BindBuffer(b.target, name)
	gl.BufferData(b.target, len(data), ptr(data), glUsage(usage))
	gl.BindBuffer(b.target, 0)
	d.checkError("create buffer")
	if d.lost {
		gl.DeleteBuffers(1, &name)
		return 0, fmt.Errorf("create buffer: device lost")
	}
	d.buffers[gpu.BufferID(name)] = b
	return gpu.BufferID(name), nil
}

func (d *Device) UpdateBuffer(id gpu.BufferID, data []byte) error {
	b, ok := d.buffers[id]
	if !ok {
		return gpu.ErrReleased
	}
	if b.usage == gpu.Immutable {
		return gpu.ErrImmutable
	}
	if b.target == gl.ELEMENT_ARRAY_BUFFER {
		gl.BindVertexArray(d.emptyVAO)
	}
	gl.BindBuffer(b.target, uint32(id))
	if len(data) > b.size {
		gl.BufferData(b.target, len(data), ptr(data), gl.DYNAMIC_DRAW)
		b.size = len(data)
	} else if len(data) > 0 {
		gl.BufferSubData(b.target, 0, len(data), ptr(data))
	}
	gl.BindBuffer(b.target, 0)
	d.checkError("update buffer")
	return nil
}

func (d *Device) DeleteBuffer(id gpu.BufferID) {
	if _, ok := d.buffers[id]; !ok {
		return
	}
	name := uint32(id)
	gl.DeleteBuffers(1, &name)
	delete(d.buffers, id)
}

func (d *Device) BindVertexBuffer(id gpu.BufferID, layout gpu.Layout) {
	d.layout = layout
	gl.BindVertexArray(d.vaos[layout])
	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(id))

	switch layout {
	case gpu.LayoutLine:
		stride := int32(unsafe.Sizeof(gpu.LineVertex{}))
		gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
		gl.EnableVertexAttribArray(0)
		gl.VertexAttribPointerWithOffset(1, 4, gl.FLOAT, false, stride, 3*4)
		gl.EnableVertexAttribArray(1)
	default:
		stride := int32(unsafe.Sizeof(gpu.MeshVertex{}))
		gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
		gl.EnableVertexAttribArray(0)
		gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
		gl.EnableVertexAttribArray(1)
		gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 6*4)
		gl.EnableVertexAttribArray(2)
		gl.VertexAttribPointerWithOffset(3, 3, gl.FLOAT, false, stride, 8*4)
		gl.EnableVertexAttribArray(3)
	}
}

func (d *Device) BindIndexBuffer(id gpu.BufferID) {
	gl.BindVertexArray(d.vaos[d.layout])
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(id))
}

func (d *Device) BindConstantBuffer(stage gpu.Stage, slot int, id gpu.BufferID) {
	gl.BindBufferBase(gl.UNIFORM_BUFFER, bindingPoint(stage, slot), uint32(id))
}

func (d *Device) CreateTexture(img *image.RGBA) (gpu.TextureID, error) {
	if img == nil {
		return 0, fmt.Errorf("create texture: nil image")
	}
	b := img.Bounds()
	var name uint32
	gl.GenTextures(1, &name)
	gl.BindTexture(gl.TEXTURE_2D, name)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	d.checkError("create texture")
	if d.lost {
		gl.DeleteTextures(1, &name)
		return 0, fmt.Errorf("create texture: device lost")
	}
	d.textures[gpu.TextureID(name)] = struct{}{}
	return gpu.TextureID(name), nil
}

func (d *Device) DeleteTexture(id gpu.TextureID) {
	if _, ok := d.textures[id]; !ok {
		return
	}
	name := uint32(id)
	gl.DeleteTextures(1, &name)
	delete(d.textures, id)
}

func (d *Device) BindTexture(slot int, id gpu.TextureID) {
	if slot < 0 || slot >= gpu.MaxTextureSlots {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0 + uint32(slot))
	gl.BindTexture(gl.TEXTURE_2D, uint32(id))
}

func (d *Device) CreateRenderTarget(width, height int) (gpu.TargetID, error) {
	rt, err := newRenderTarget(int32(width), int32(height))
	if err != nil {
		return 0, err
	}
	id := gpu.TargetID(rt.fbo)
	d.targets[id] = rt
	return id, nil
}

func (d *Device) DeleteRenderTarget(id gpu.TargetID) {
	if rt, ok := d.targets[id]; ok {
		rt.destroy()
		delete(d.targets, id)
	}
}

func (d *Device) TargetTexture(id gpu.TargetID) gpu.TextureID {
	if rt, ok := d.targets[id]; ok {
		return gpu.TextureID(rt.colorTexture)
	}
	return 0
}

func (d *Device) SetRenderTarget(id gpu.TargetID) {
	if rt, ok := d.targets[id]; ok {
		rt.bind()
		return
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(d.width), int32(d.height))
}

func (d *Device) Clear(c [4]float32) {
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// BlitDepth clears the depth of the bound framebuffer and copies the depth
// of src into it. Mismatched depth formats leave the cleared depth.
func (d *Device) BlitDepth(src gpu.TargetID) {
	gl.Clear(gl.DEPTH_BUFFER_BIT)
	rt, ok := d.targets[src]
	if !ok {
		return
	}
	var bound int32
	gl.GetIntegerv(gl.DRAW_FRAMEBUFFER_BINDING, &bound)
	dstW, dstH := int32(d.width), int32(d.height)
	if dst, ok := d.targets[gpu.TargetID(bound)]; ok {
		dstW, dstH = dst.width, dst.height
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, rt.fbo)
	gl.BlitFramebuffer(0, 0, rt.width, rt.height, 0, 0, dstW, dstH, gl.DEPTH_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(bound))
	d.checkError("blit depth")
}

func (d *Device) SetProgram(p gpu.Program) {
	gl.UseProgram(d.programs[p])
}

func (d *Device) SetRasterState(s gpu.RasterState) {
	switch s {
	case gpu.RasterWireframe:
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
		gl.Enable(gl.CULL_FACE)
	case gpu.RasterNoCull:
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
		gl.Disable(gl.CULL_FACE)
	default:
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
		gl.Enable(gl.CULL_FACE)
	}
}

func (d *Device) SetBlendState(s gpu.BlendState) {
	if s == gpu.BlendAlpha {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
		return
	}
	gl.Disable(gl.BLEND)
}

func (d *Device) SetDepthTest(enabled bool) {
	if enabled {
		gl.Enable(gl.DEPTH_TEST)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
}

func (d *Device) DrawIndexed(t gpu.Topology, count, first int) {
	mode := uint32(gl.TRIANGLES)
	if t == gpu.Lines {
		mode = gl.LINES
	}
	gl.DrawElementsWithOffset(mode, int32(count), gl.UNSIGNED_INT, uintptr(first*4))
}

func (d *Device) DrawFullscreen() {
	gl.BindVertexArray(d.emptyVAO)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
}

func (d *Device) Lost() bool { return d.lost }

// Reset drops every GL object and rebuilds the programs and vertex arrays.
// Handles created before the call are invalid afterwards.
func (d *Device) Reset() error {
	logger.Warn("resetting graphics device",
		zap.Int("buffers", len(d.buffers)),
		zap.Int("textures", len(d.textures)),
		zap.Int("targets", len(d.targets)),
	)
	d.Close()
	for gl.GetError() != gl.NO_ERROR {
	}
	if err := d.init(); err != nil {
		return fmt.Errorf("reset device: %w", err)
	}
	d.lost = false
	return nil
}

var _ gpu.Device = (*Device)(nil)
