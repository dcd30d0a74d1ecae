// Package render drives frame rendering: scene traversal over a transform
// stack, per-pass draw submission, constant buffer binding, debug lines and
// the post-process chain.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/engine/camera"
	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/engine/material"
	"github.com/Faultbox/lodestone/internal/engine/postprocess"
	"github.com/Faultbox/lodestone/internal/engine/transform"
	"github.com/Faultbox/lodestone/internal/logger"
)

// ErrDeviceLost is returned by Update when the frame was dropped because
// the device is lost. Call RecoverLostDevice before the next frame.
var ErrDeviceLost = errors.New("render: device lost")

// Restorer re-creates device objects after a device reset.
type Restorer interface {
	Restore() error
}

// RestoreFunc adapts a function to Restorer.
type RestoreFunc func() error

func (f RestoreFunc) Restore() error { return f() }

// Options configures a System.
type Options struct {
	EditorPass   bool
	LineCapacity int
	LineColor    mgl32.Vec4
	ClearColor   [4]float32
	Fog          Fog
	PostProcess  postprocess.Settings
	// Camera is used when no camera is set. Nil selects a camera at
	// (0, 0, 10) looking at the origin.
	Camera camera.Camera
	// White is bound to texture slots a material leaves empty.
	White *material.Texture
}

// DefaultOptions returns options for an editor-less renderer.
func DefaultOptions() Options {
	return Options{
		LineCapacity: DefaultLineCapacity,
		LineColor:    mgl32.Vec4{0.2, 1, 0.2, 1},
		ClearColor:   [4]float32{0.1, 0.1, 0.15, 1},
		Fog:          Fog{Start: 100, End: 900, Color: [4]float32{0.5, 0.5, 0.55, 1}},
		PostProcess:  postprocess.DefaultSettings(),
	}
}

// System renders frames. It is not safe for concurrent use; every call
// must come from the thread that owns the device.
type System struct {
	dev  gpu.Device
	opts Options

	stack *transform.Stack
	lines *LineBatch
	post  *postprocess.Chain
	scene gpu.TargetID
	white *material.Texture

	frameVS  *gpu.ConstantBuffer[PerFrameVS]
	objectVS *gpu.ConstantBuffer[PerObjectVS]
	framePS  *gpu.ConstantBuffer[PerFramePS]
	objectPS *gpu.ConstantBuffer[PerObjectPS]

	root   Node
	camera camera.Camera
	saved  camera.Camera
	lights []Light
	raster gpu.RasterState

	state   State
	pass    Pass
	elapsed time.Duration

	restorers []Restorer
}

// New creates the system's device objects.
func New(dev gpu.Device, opts Options) (*System, error) {
	s := &System{
		dev:   dev,
		opts:  opts,
		stack: transform.NewStack(32),
		lines: NewLineBatch(dev, opts.LineCapacity),
		white: opts.White,
	}
	if s.white == nil {
		s.white = material.SolidTexture("white", color.RGBA{255, 255, 255, 255})
	}
	if s.opts.Camera == nil {
		w, h := dev.Size()
		s.opts.Camera = camera.NewFixed(
			camera.Lens{FOV: mgl32.DegToRad(45), Near: 0.5, Far: 1000, Width: w, Height: h},
			mgl32.Vec3{0, 0, 10}, mgl32.Vec3{},
		)
	}
	if err := s.createDeviceObjects(); err != nil {
		s.Release()
		return nil, err
	}
	var err error
	if s.post, err = postprocess.New(dev, opts.PostProcess); err != nil {
		s.Release()
		return nil, err
	}
	logger.Info("render system ready",
		zap.Bool("editor_pass", opts.EditorPass),
		zap.Int("line_capacity", s.lines.Capacity()),
	)
	return s, nil
}

func (s *System) createDeviceObjects() error {
	var err error
	if s.frameVS, err = gpu.NewConstantBuffer(s.dev, PerFrameVS{}); err != nil {
		return fmt.Errorf("per-frame vertex constants: %w", err)
	}
	if s.objectVS, err = gpu.NewConstantBuffer(s.dev, PerObjectVS{}); err != nil {
		return fmt.Errorf("per-object vertex constants: %w", err)
	}
	if s.framePS, err = gpu.NewConstantBuffer(s.dev, PerFramePS{}); err != nil {
		return fmt.Errorf("per-frame pixel constants: %w", err)
	}
	if s.objectPS, err = gpu.NewConstantBuffer(s.dev, PerObjectPS{}); err != nil {
		return fmt.Errorf("per-object pixel constants: %w", err)
	}
	return s.createSceneTarget(s.dev.Size())
}

func (s *System) createSceneTarget(width, height int) error {
	id, err := s.dev.CreateRenderTarget(width, height)
	if err != nil {
		return fmt.Errorf("scene target: %w", err)
	}
	s.scene = id
	return nil
}

// Release frees every device object owned by the system.
func (s *System) Release() {
	if s.frameVS != nil {
		s.frameVS.Release()
	}
	if s.objectVS != nil {
		s.objectVS.Release()
	}
	if s.framePS != nil {
		s.framePS.Release()
	}
	if s.objectPS != nil {
		s.objectPS.Release()
	}
	s.lines.Release()
	if s.post != nil {
		s.post.Release()
	}
	if s.scene != 0 {
		s.dev.DeleteRenderTarget(s.scene)
		s.scene = 0
	}
	s.white.Release()
}

// Device returns the graphics device.
func (s *System) Device() gpu.Device { return s.dev }

// Stack returns the transform stack.
func (s *System) Stack() *transform.Stack { return s.stack }

// Lines returns the debug line batch.
func (s *System) Lines() *LineBatch { return s.lines }

// PostProcess returns the post-process chain.
func (s *System) PostProcess() *postprocess.Chain { return s.post }

// State returns the pass state.
func (s *System) State() State { return s.state }

// CurrentPass returns the pass being rendered, or zero between passes.
func (s *System) CurrentPass() Pass { return s.pass }

// Elapsed returns the sum of all frame deltas.
func (s *System) Elapsed() time.Duration { return s.elapsed }

// SetScene sets the root of the traversed hierarchy. Nil renders nothing.
func (s *System) SetScene(root Node) { s.root = root }

// SetEditorPass enables or disables the editor pass.
func (s *System) SetEditorPass(enabled bool) { s.opts.EditorPass = enabled }

// EditorPass reports whether the editor pass runs.
func (s *System) EditorPass() bool { return s.opts.EditorPass }

// SetFog sets the fog used from the next frame.
func (s *System) SetFog(f Fog) { s.opts.Fog = f }

// AddLight adds a light. Lights beyond MaxLights are dropped with a warning.
func (s *System) AddLight(l Light) bool {
	if len(s.lights) >= MaxLights {
		logger.Warn("light limit reached, ignoring light", zap.Int("max", MaxLights))
		return false
	}
	s.lights = append(s.lights, l)
	return true
}

// ClearLights removes all lights.
func (s *System) ClearLights() { s.lights = s.lights[:0] }

// Lights returns the active lights.
func (s *System) Lights() []Light { return s.lights }

// SetCamera activates c and remembers the previous camera in a single
// slot. A second SetCamera before RestoreCamera overwrites that slot.
func (s *System) SetCamera(c camera.Camera) {
	s.saved = s.camera
	s.camera = c
}

// RestoreCamera re-activates the saved camera. With none saved the
// default camera becomes active.
func (s *System) RestoreCamera() {
	s.camera = s.saved
	s.saved = nil
}

// Camera returns the active camera.
func (s *System) Camera() camera.Camera {
	if s.camera == nil {
		return s.opts.Camera
	}
	return s.camera
}

// Register adds an object restored by RecoverLostDevice.
func (s *System) Register(r Restorer) {
	s.restorers = append(s.restorers, r)
}

// Resize re-creates the size dependent targets.
func (s *System) Resize(width, height int) error {
	if s.scene != 0 {
		s.dev.DeleteRenderTarget(s.scene)
		s.scene = 0
	}
	if err := s.createSceneTarget(width, height); err != nil {
		return err
	}
	return s.post.Resize(width, height)
}

// Update renders one frame: main, editor and alpha passes into the scene
// target, the post-process chain into the back buffer and then the debug
// lines. Renderable failures are logged and never returned.
func (s *System) Update(dt time.Duration) error {
	if s.dev.Lost() {
		s.lines.Clear()
		return ErrDeviceLost
	}
	s.elapsed += dt

	if err := s.bindFrame(); err != nil {
		return s.frameError(err)
	}

	s.dev.SetRenderTarget(s.scene)
	s.dev.Clear(s.opts.ClearColor)

	s.renderPass(PassMain)
	if s.opts.EditorPass {
		s.renderPass(PassEditor)
	}
	s.renderPass(PassAlpha)

	if err := s.post.Run(s.dev.TargetTexture(s.scene)); err != nil {
		return s.frameError(fmt.Errorf("post-process: %w", err))
	}
	s.dev.SetRasterState(s.raster)
	s.dev.BlitDepth(s.scene)
	if err := s.flushLines(); err != nil {
		return s.frameError(err)
	}
	if s.dev.Lost() {
		return ErrDeviceLost
	}
	return nil
}

func (s *System) frameError(err error) error {
	s.lines.Clear()
	if s.dev.Lost() {
		return ErrDeviceLost
	}
	return err
}

// bindFrame rebuilds and binds the per-frame constants.
func (s *System) bindFrame() error {
	cam := s.Camera()
	vs := PerFrameVS{
		View:       cam.View(),
		Projection: cam.Projection(),
		Fog:        [4]float32{s.opts.Fog.Start, s.opts.Fog.End},
	}
	if err := s.frameVS.Update(vs); err != nil {
		return fmt.Errorf("per-frame vertex constants: %w", err)
	}

	ps := PerFramePS{FogColor: s.opts.Fog.Color}
	for i, l := range s.lights {
		ps.Lights[i] = l.block()
	}
	ps.LightCount[0] = int32(len(s.lights))
	if err := s.framePS.Update(ps); err != nil {
		return fmt.Errorf("per-frame pixel constants: %w", err)
	}

	s.frameVS.Bind(gpu.VertexStage, gpu.SlotPerFrame)
	s.framePS.Bind(gpu.PixelStage, gpu.SlotPerFrame)
	s.objectVS.Bind(gpu.VertexStage, gpu.SlotPerObject)
	s.objectPS.Bind(gpu.PixelStage, gpu.SlotPerObject)
	return nil
}

func (s *System) renderPass(p Pass) {
	s.state = PreRender
	s.pass = p
	depth := s.stack.Depth()

	s.dev.SetProgram(gpu.ProgramMesh)
	s.dev.SetDepthTest(true)
	s.dev.SetRasterState(s.raster)
	if p == PassAlpha {
		s.dev.SetBlendState(gpu.BlendAlpha)
	}

	s.state = Rendering
	if s.root != nil {
		s.visit(s.root, p)
	}

	s.state = PostRender
	if got := s.stack.Depth(); got != depth {
		panic(fmt.Sprintf("render: transform stack unbalanced after %s pass: depth %d, want %d", p, got, depth))
	}
	s.dev.SetRasterState(s.raster)
	s.dev.SetBlendState(gpu.BlendOpaque)

	s.pass = 0
	s.state = NotRendering
}

func (s *System) visit(n Node, p Pass) {
	s.stack.Push(n.Transform())
	for _, r := range n.Renderables() {
		if r.Pass()&p == 0 || !r.IsVisible() {
			continue
		}
		s.render(r)
	}
	for _, c := range n.Children() {
		s.visit(c, p)
	}
	s.stack.Pop()
}

func (s *System) render(r Renderable) {
	if err := r.PreRender(s); err != nil {
		if errors.Is(err, errNoMeshes) {
			logger.Debug("nothing to render, skipping renderable", zap.Error(err))
		} else {
			logger.Warn("pre-render failed, skipping renderable", zap.Stringer("pass", s.pass), zap.Error(err))
		}
		return
	}
	if err := s.BindObject(); err != nil {
		logger.Warn("could not bind object constants", zap.Error(err))
	} else if err := r.Render(s); err != nil {
		logger.Warn("renderable failed", zap.Stringer("pass", s.pass), zap.Error(err))
	}
	r.PostRender(s)
}

// BindObject uploads the top of the transform stack as the model matrix.
func (s *System) BindObject() error {
	m := s.stack.Top()
	if err := s.objectVS.Update(PerObjectVS{Model: m, Normal: m.Mat3().Inv().Transpose().Mat4()}); err != nil {
		return err
	}
	s.objectVS.Bind(gpu.VertexStage, gpu.SlotPerObject)
	return nil
}

// BindMaterial uploads the material constants and binds its textures.
// Empty slots and a nil material use the white texture.
func (s *System) BindMaterial(m *material.Material) error {
	c := PerObjectPS{Color: [4]float32{1, 1, 1, 1}}
	var textures [material.SlotCount]*material.Texture
	if m != nil {
		c.Color = m.Color
		c.Specular = [4]float32{m.SpecularIntensity, m.SpecularPower}
		textures = m.Textures
	}
	if err := s.objectPS.Update(c); err != nil {
		return err
	}
	s.objectPS.Bind(gpu.PixelStage, gpu.SlotPerObject)

	for slot, tex := range textures {
		if tex == nil {
			tex = s.white
		}
		id, err := tex.Upload(s.dev)
		if err != nil {
			return fmt.Errorf("texture %s: %w", tex.Path, err)
		}
		s.dev.BindTexture(slot, id)
	}
	return nil
}

// EnableWireframe draws triangles as outlines until ResetRasterizer.
func (s *System) EnableWireframe() {
	s.raster = gpu.RasterWireframe
	s.dev.SetRasterState(s.raster)
}

// ResetRasterizer restores solid fill with back-face culling.
func (s *System) ResetRasterizer() {
	s.raster = gpu.RasterDefault
	s.dev.SetRasterState(s.raster)
}

// EnableLineMode selects the unshaded, depth-tested line state.
func (s *System) EnableLineMode() {
	s.dev.SetProgram(gpu.ProgramLine)
	s.dev.SetDepthTest(true)
	s.dev.SetBlendState(gpu.BlendOpaque)
	s.dev.SetRasterState(gpu.RasterNoCull)
}

// ResetLineMode returns to the mesh state.
func (s *System) ResetLineMode() {
	s.dev.SetProgram(gpu.ProgramMesh)
	s.dev.SetRasterState(s.raster)
}

func (s *System) flushLines() error {
	if s.lines.Len() == 0 {
		return nil
	}
	s.EnableLineMode()
	defer s.ResetLineMode()
	s.frameVS.Bind(gpu.VertexStage, gpu.SlotPerFrame)
	if err := s.lines.Flush(); err != nil {
		return fmt.Errorf("debug lines: %w", err)
	}
	return nil
}

// SubmitLine queues a segment in the default line color.
func (s *System) SubmitLine(from, to mgl32.Vec3) {
	s.lines.Add(from, to, s.opts.LineColor)
}

// SubmitColoredLine queues a segment.
func (s *System) SubmitColoredLine(from, to mgl32.Vec3, color mgl32.Vec4) {
	s.lines.Add(from, to, color)
}

// SubmitBox queues the 12 edges of the box lo..hi transformed by m.
func (s *System) SubmitBox(m mgl32.Mat4, lo, hi mgl32.Vec3, color mgl32.Vec4) {
	s.lines.AddBox(m, lo, hi, color)
}

// SubmitSphere queues three great circles of SphereSegments segments each.
func (s *System) SubmitSphere(center mgl32.Vec3, radius float32, color mgl32.Vec4) {
	s.lines.AddSphere(center, radius, color)
}

// SubmitCone queues a cone: ConeSegments base segments and four apex edges.
func (s *System) SubmitCone(m mgl32.Mat4, height, radius float32, color mgl32.Vec4) {
	s.lines.AddCone(m, height, radius, color)
}

// RecoverLostDevice resets the device and re-creates every device object
// owned by the system and its registered restorers. Nothing is reimported.
func (s *System) RecoverLostDevice() error {
	if err := s.dev.Reset(); err != nil {
		return fmt.Errorf("reset device: %w", err)
	}
	s.lines.Clear()
	s.stack.Reset()
	s.state, s.pass = NotRendering, 0

	for _, cb := range []Restorer{s.frameVS, s.objectVS, s.framePS, s.objectPS, s.lines} {
		if err := cb.Restore(); err != nil {
			return err
		}
	}
	if err := s.createSceneTarget(s.dev.Size()); err != nil {
		return err
	}
	if err := s.post.Recreate(); err != nil {
		return err
	}
	s.white.Invalidate()
	for _, r := range s.restorers {
		if err := r.Restore(); err != nil {
			return err
		}
	}
	s.dev.SetRasterState(s.raster)
	logger.Info("recovered lost device", zap.Int("restored", len(s.restorers)))
	return nil
}
