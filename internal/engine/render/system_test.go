package render_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lodestone/internal/engine/camera"
	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/engine/gpu/gputest"
	"github.com/Faultbox/lodestone/internal/engine/render"
	"github.com/Faultbox/lodestone/internal/logger/logtest"
)

type node struct {
	transform   mgl32.Mat4
	renderables []render.Renderable
	children    []render.Node
}

func (n *node) Transform() mgl32.Mat4            { return n.transform }
func (n *node) Renderables() []render.Renderable { return n.renderables }
func (n *node) Children() []render.Node          { return n.children }

func leaf(rs ...render.Renderable) *node {
	return &node{transform: mgl32.Ident4(), renderables: rs}
}

func newSystem(t *testing.T) (*render.System, *gputest.Device) {
	t.Helper()
	dev := gputest.New(320, 240)
	s, err := render.New(dev, render.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s, dev
}

// float reads the i-th float32 of a constant buffer.
func float(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func TestLineBatchScenarioB(t *testing.T) {
	s, dev := newSystem(t)

	s.SubmitLine(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
	s.SubmitLine(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	s.SubmitLine(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1})
	assert.Equal(t, 3, s.Lines().Len())
	assert.Equal(t, 6, s.Lines().Endpoints())

	require.NoError(t, s.Update(16*time.Millisecond))
	assert.Equal(t, 0, s.Lines().Len())
	assert.Equal(t, 0, s.Lines().Endpoints())

	draws := dev.DrawsWith(gpu.ProgramLine)
	require.Len(t, draws, 1)
	assert.Equal(t, gpu.Lines, draws[0].Topology)
	assert.Equal(t, 6, draws[0].Count)
	assert.True(t, draws[0].Depth)
	assert.Equal(t, gpu.BackBuffer, draws[0].Target)
}

func TestLinesDepthTestedAgainstScene(t *testing.T) {
	s, dev := newSystem(t)

	for frame := 0; frame < 2; frame++ {
		dev.ResetDraws()
		s.SubmitLine(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
		require.NoError(t, s.Update(16*time.Millisecond))

		require.Len(t, dev.Blits, 1, "frame %d", frame)
		blit := dev.Blits[0]
		assert.Equal(t, gpu.BackBuffer, blit.Dst)
		assert.NotEqual(t, gpu.BackBuffer, blit.Src)
		assert.Equal(t, [2]int{320, 240}, dev.Targets[blit.Src])

		line := -1
		for i, d := range dev.Draws {
			if d.Program == gpu.ProgramLine {
				line = i
			}
		}
		require.GreaterOrEqual(t, line, 0)
		assert.Equal(t, line, blit.Before, "depth copied right before the line draw")
	}
}

func TestLineBatchGrows(t *testing.T) {
	dev := gputest.New(8, 8)
	b := render.NewLineBatch(dev, 4)
	for i := 0; i < 10; i++ {
		b.Add(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, mgl32.Vec4{1, 1, 1, 1})
	}
	assert.Equal(t, 10, b.Len())
	assert.GreaterOrEqual(t, b.Capacity(), 20)
	require.NoError(t, b.Flush())
	assert.Equal(t, 0, b.Len())

	// Empty flush draws nothing.
	dev.ResetDraws()
	require.NoError(t, b.Flush())
	assert.Empty(t, dev.Draws)
}

func TestDebugPrimitives(t *testing.T) {
	tests := []struct {
		name   string
		submit func(s *render.System)
		want   int
	}{
		{"box", func(s *render.System) {
			s.SubmitBox(mgl32.Ident4(), mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}, mgl32.Vec4{1, 0, 0, 1})
		}, 12},
		{"sphere", func(s *render.System) {
			s.SubmitSphere(mgl32.Vec3{}, 2, mgl32.Vec4{1, 0, 0, 1})
		}, 3 * render.SphereSegments},
		{"cone", func(s *render.System) {
			s.SubmitCone(mgl32.Ident4(), 2, 1, mgl32.Vec4{1, 0, 0, 1})
		}, render.ConeSegments + 4},
		{"colored line", func(s *render.System) {
			s.SubmitColoredLine(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec4{0, 0, 1, 1})
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSystem(t)
			tt.submit(s)
			assert.Equal(t, tt.want, s.Lines().Len())
		})
	}
}

func TestBoxEdgesAreTransformed(t *testing.T) {
	dev := gputest.New(8, 8)
	b := render.NewLineBatch(dev, 0)
	b.AddBox(mgl32.Translate3D(10, 0, 0), mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}, mgl32.Vec4{1, 1, 1, 1})
	require.NoError(t, b.Flush())

	vb := dev.Buffers[1]
	require.NotNil(t, vb)
	// LineVertex is 7 floats; every x must be 10 or 11.
	for i := 0; i < 24; i++ {
		x := float(vb.Data, i*7)
		assert.True(t, x == 10 || x == 11, "x = %v", x)
	}
}

func TestPassOrderAndState(t *testing.T) {
	for _, editor := range []bool{false, true} {
		s, _ := newSystem(t)
		s.SetEditorPass(editor)

		var seen []render.Pass
		r := &render.Funcs{
			Passes: render.PassMain | render.PassEditor | render.PassAlpha,
			Draw: func(s *render.System) error {
				assert.Equal(t, render.Rendering, s.State())
				seen = append(seen, s.CurrentPass())
				return nil
			},
		}
		s.SetScene(leaf(r))
		require.NoError(t, s.Update(time.Millisecond))

		want := []render.Pass{render.PassMain, render.PassAlpha}
		if editor {
			want = []render.Pass{render.PassMain, render.PassEditor, render.PassAlpha}
		}
		assert.Equal(t, want, seen)
		assert.Equal(t, render.NotRendering, s.State())
		assert.Equal(t, 0, s.Stack().Depth())
	}
}

func TestRenderableFailures(t *testing.T) {
	logs := logtest.Warnings(t)
	s, _ := newSystem(t)

	var calls []string
	failPre := &render.Funcs{
		Passes: render.PassMain,
		Pre:    func(*render.System) error { return errors.New("not ready") },
		Draw:   func(*render.System) error { calls = append(calls, "pre-fail render"); return nil },
		Post:   func(*render.System) { calls = append(calls, "pre-fail post") },
	}
	failRender := &render.Funcs{
		Passes: render.PassMain,
		Draw:   func(*render.System) error { calls = append(calls, "render"); return errors.New("boom") },
		Post:   func(*render.System) { calls = append(calls, "post") },
	}
	hidden := &render.Funcs{
		Passes:  render.PassMain,
		Visible: func() bool { return false },
		Draw:    func(*render.System) error { calls = append(calls, "hidden"); return nil },
	}
	s.SetScene(leaf(failPre, failRender, hidden))

	require.NoError(t, s.Update(time.Millisecond))
	assert.Equal(t, []string{"render", "post"}, calls)
	assert.Equal(t, 1, logs.FilterMessage("renderable failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("pre-render failed, skipping renderable").Len())
}

func TestUnbalancedStackPanics(t *testing.T) {
	s, _ := newSystem(t)
	leaky := &render.Funcs{
		Passes: render.PassMain,
		Pre: func(s *render.System) error {
			s.Stack().Push(mgl32.Ident4())
			return nil
		},
	}
	s.SetScene(leaf(leaky))
	assert.Panics(t, func() { _ = s.Update(time.Millisecond) })
}

func TestTraversalAccumulatesTransforms(t *testing.T) {
	s, dev := newSystem(t)

	var tops []mgl32.Mat4
	watch := &render.Funcs{
		Passes: render.PassMain,
		Draw: func(s *render.System) error {
			tops = append(tops, s.Stack().Top())
			return nil
		},
	}
	child := &node{transform: mgl32.Translate3D(0, 2, 0), renderables: []render.Renderable{watch}}
	root := &node{transform: mgl32.Translate3D(1, 0, 0), renderables: []render.Renderable{watch}, children: []render.Node{child}}
	s.SetScene(root)
	require.NoError(t, s.Update(time.Millisecond))

	require.Len(t, tops, 2)
	assert.Equal(t, mgl32.Translate3D(1, 0, 0), tops[0])
	assert.Equal(t, mgl32.Translate3D(1, 2, 0), tops[1])

	// The last bound object is the child; model[12..14] is the translation.
	cb := dev.Constant(gpu.VertexStage, gpu.SlotPerObject)
	require.NotNil(t, cb)
	assert.Equal(t, float32(1), float(cb, 12))
	assert.Equal(t, float32(2), float(cb, 13))
}

func TestCameraSaveRestore(t *testing.T) {
	s, _ := newSystem(t)
	lens := camera.Lens{FOV: 1, Near: 0.1, Far: 10, Width: 4, Height: 3}
	def := s.Camera()
	a := camera.NewFixed(lens, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{})
	b := camera.NewFixed(lens, mgl32.Vec3{0, 0, 2}, mgl32.Vec3{})
	c := camera.NewFixed(lens, mgl32.Vec3{0, 0, 3}, mgl32.Vec3{})

	s.SetCamera(a)
	s.SetCamera(b)
	assert.Same(t, b, s.Camera())
	s.RestoreCamera()
	assert.Same(t, a, s.Camera())

	// Two sets in a row lose the first.
	s.SetCamera(b)
	s.SetCamera(c)
	s.RestoreCamera()
	assert.Same(t, b, s.Camera())
	s.RestoreCamera()
	assert.Same(t, def, s.Camera())
}

func TestPerFrameConstants(t *testing.T) {
	logs := logtest.Warnings(t)
	s, dev := newSystem(t)

	for i := 0; i < render.MaxLights; i++ {
		assert.True(t, s.AddLight(render.DefaultLight(mgl32.Vec3{float32(i), 0, 0})))
	}
	assert.False(t, s.AddLight(render.DefaultLight(mgl32.Vec3{})))
	assert.Equal(t, 1, logs.FilterMessage("light limit reached, ignoring light").Len())

	s.SetFog(render.Fog{Start: 5, End: 50, Color: [4]float32{1, 0, 0, 1}})
	require.NoError(t, s.Update(time.Millisecond))

	vs := dev.Constant(gpu.VertexStage, gpu.SlotPerFrame)
	require.Len(t, vs, 36*4)
	assert.Equal(t, float32(5), float(vs, 32))
	assert.Equal(t, float32(50), float(vs, 33))

	ps := dev.Constant(gpu.PixelStage, gpu.SlotPerFrame)
	// 4 lights of 16 floats, fog color, light count.
	require.Len(t, ps, (render.MaxLights*16+8)*4)
	assert.Equal(t, float32(1), float(ps, render.MaxLights*16))
	assert.Equal(t, uint32(render.MaxLights), binary.LittleEndian.Uint32(ps[(render.MaxLights*16+4)*4:]))
}

func TestWireframe(t *testing.T) {
	s, dev := newSystem(t)
	watch := &render.Funcs{
		Passes: render.PassMain,
		Draw: func(s *render.System) error {
			s.Device().DrawIndexed(gpu.Triangles, 3, 0)
			return nil
		},
	}
	s.SetScene(leaf(watch))

	s.EnableWireframe()
	require.NoError(t, s.Update(time.Millisecond))
	require.NoError(t, s.Update(time.Millisecond))
	mesh := dev.DrawsWith(gpu.ProgramMesh)
	require.Len(t, mesh, 2)
	assert.Equal(t, gpu.RasterWireframe, mesh[1].Raster)
	for _, d := range dev.DrawsWith(gpu.ProgramToneMap) {
		assert.NotEqual(t, gpu.RasterWireframe, d.Raster)
	}

	s.ResetRasterizer()
	assert.Equal(t, gpu.RasterDefault, dev.Raster())
}

func TestDeviceLoss(t *testing.T) {
	s, dev := newSystem(t)
	restored := 0
	s.Register(render.RestoreFunc(func() error { restored++; return nil }))

	dev.LoseDevice()
	s.SubmitLine(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	assert.ErrorIs(t, s.Update(time.Millisecond), render.ErrDeviceLost)
	assert.Empty(t, dev.Draws)

	require.NoError(t, s.RecoverLostDevice())
	assert.Equal(t, 1, dev.Resets)
	assert.Equal(t, 1, restored)

	s.SubmitLine(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	require.NoError(t, s.Update(time.Millisecond))
	assert.Len(t, dev.DrawsWith(gpu.ProgramLine), 1)
	assert.NotNil(t, dev.Constant(gpu.VertexStage, gpu.SlotPerFrame))
}
