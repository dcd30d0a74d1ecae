// Package gputest provides a recording gpu.Device for tests.
package gputest

import (
	"errors"
	"image"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
)

// ErrLost is returned by uploads while the device is lost.
var ErrLost = errors.New("gputest: device lost")

// Buffer is the recorded state of one device buffer.
type Buffer struct {
	Kind  gpu.BufferKind
	Usage gpu.Usage
	Data  []byte
}

// Draw is one recorded draw call.
type Draw struct {
	Topology gpu.Topology
	Count    int
	First    int
	Program  gpu.Program
	Target   gpu.TargetID
	Raster   gpu.RasterState
	Blend    gpu.BlendState
	Depth    bool
	// IndexBuffer is the index buffer bound at draw time. Zero for fullscreen draws.
	IndexBuffer gpu.BufferID
	// Textures are the textures bound to slots 0 and 1 at draw time.
	Textures [2]gpu.TextureID
}

// Blit is one recorded depth copy.
type Blit struct {
	Src, Dst gpu.TargetID
	// Before is the number of draws recorded before the copy.
	Before int
}

// Device records every call. It is not safe for concurrent use.
type Device struct {
	Width, Height int

	Buffers  map[gpu.BufferID]*Buffer
	Textures map[gpu.TextureID]*image.RGBA
	Targets  map[gpu.TargetID][2]int

	Draws   []Draw
	Blits   []Blit
	Clears  int
	Resets  int
	Deleted int

	// ConstantBinds maps stage and slot to the currently bound buffer.
	ConstantBinds map[[2]int]gpu.BufferID

	lost    bool
	nextID  uint32
	program gpu.Program
	target  gpu.TargetID
	raster  gpu.RasterState
	blend   gpu.BlendState
	depth   bool
	vb      gpu.BufferID
	ib      gpu.BufferID
	bound   [gpu.MaxTextureSlots]gpu.TextureID
	// targetTex maps render targets to their color textures.
	targetTex map[gpu.TargetID]gpu.TextureID
}

// New returns a device with the given back buffer size.
func New(width, height int) *Device {
	return &Device{
		Width:         width,
		Height:        height,
		Buffers:       make(map[gpu.BufferID]*Buffer),
		Textures:      make(map[gpu.TextureID]*image.RGBA),
		Targets:       make(map[gpu.TargetID][2]int),
		ConstantBinds: make(map[[2]int]gpu.BufferID),
		targetTex:     make(map[gpu.TargetID]gpu.TextureID),
		depth:         true,
	}
}

func (d *Device) id() uint32 {
	d.nextID++
	return d.nextID
}

// LoseDevice simulates a device loss.
func (d *Device) LoseDevice() { d.lost = true }

func (d *Device) CreateBuffer(kind gpu.BufferKind, usage gpu.Usage, data []byte) (gpu.BufferID, error) {
	if d.lost {
		return 0, ErrLost
	}
	id := gpu.BufferID(d.id())
	d.Buffers[id] = &Buffer{Kind: kind, Usage: usage, Data: append([]byte(nil), data...)}
	return id, nil
}

func (d *Device) UpdateBuffer(id gpu.BufferID, data []byte) error {
	if d.lost {
		return ErrLost
	}
	b, ok := d.Buffers[id]
	if !ok {
		return gpu.ErrReleased
	}
	if b.Usage == gpu.Immutable {
		return gpu.ErrImmutable
	}
	b.Data = append(b.Data[:0], data...)
	return nil
}

func (d *Device) DeleteBuffer(id gpu.BufferID) {
	delete(d.Buffers, id)
	d.Deleted++
}

func (d *Device) BindVertexBuffer(id gpu.BufferID, _ gpu.Layout) { d.vb = id }
func (d *Device) BindIndexBuffer(id gpu.BufferID)                { d.ib = id }

func (d *Device) BindConstantBuffer(stage gpu.Stage, slot int, id gpu.BufferID) {
	d.ConstantBinds[[2]int{int(stage), slot}] = id
}

// Constant returns the data of the buffer bound at stage and slot.
func (d *Device) Constant(stage gpu.Stage, slot int) []byte {
	b, ok := d.Buffers[d.ConstantBinds[[2]int{int(stage), slot}]]
	if !ok {
		return nil
	}
	return b.Data
}

func (d *Device) CreateTexture(img *image.RGBA) (gpu.TextureID, error) {
	if d.lost {
		return 0, ErrLost
	}
	id := gpu.TextureID(d.id())
	d.Textures[id] = img
	return id, nil
}

func (d *Device) DeleteTexture(id gpu.TextureID) {
	delete(d.Textures, id)
	d.Deleted++
}

func (d *Device) BindTexture(slot int, id gpu.TextureID) {
	if slot >= 0 && slot < len(d.bound) {
		d.bound[slot] = id
	}
}

func (d *Device) CreateRenderTarget(width, height int) (gpu.TargetID, error) {
	if d.lost {
		return 0, ErrLost
	}
	id := gpu.TargetID(d.id())
	d.Targets[id] = [2]int{width, height}
	d.targetTex[id] = gpu.TextureID(d.id())
	return id, nil
}

func (d *Device) DeleteRenderTarget(id gpu.TargetID) {
	delete(d.Targets, id)
	delete(d.targetTex, id)
	d.Deleted++
}

func (d *Device) TargetTexture(id gpu.TargetID) gpu.TextureID { return d.targetTex[id] }
func (d *Device) SetRenderTarget(id gpu.TargetID)             { d.target = id }
func (d *Device) Clear([4]float32)                            { d.Clears++ }
func (d *Device) SetProgram(p gpu.Program)                    { d.program = p }

func (d *Device) BlitDepth(src gpu.TargetID) {
	d.Blits = append(d.Blits, Blit{Src: src, Dst: d.target, Before: len(d.Draws)})
}

func (d *Device) SetRasterState(s gpu.RasterState)            { d.raster = s }
func (d *Device) SetBlendState(s gpu.BlendState)              { d.blend = s }
func (d *Device) SetDepthTest(enabled bool)                   { d.depth = enabled }

// Raster returns the current raster state.
func (d *Device) Raster() gpu.RasterState { return d.raster }

// Blend returns the current blend state.
func (d *Device) Blend() gpu.BlendState { return d.blend }

// Target returns the current render target.
func (d *Device) Target() gpu.TargetID { return d.target }

func (d *Device) DrawIndexed(t gpu.Topology, count, first int) {
	d.record(t, count, first, d.ib)
}

func (d *Device) DrawFullscreen() {
	d.record(gpu.Triangles, 3, 0, 0)
}

func (d *Device) record(t gpu.Topology, count, first int, ib gpu.BufferID) {
	d.Draws = append(d.Draws, Draw{
		Topology:    t,
		Count:       count,
		First:       first,
		Program:     d.program,
		Target:      d.target,
		Raster:      d.raster,
		Blend:       d.blend,
		Depth:       d.depth,
		IndexBuffer: ib,
		Textures:    [2]gpu.TextureID{d.bound[0], d.bound[1]},
	})
}

// DrawsWith returns the draws made with program p.
func (d *Device) DrawsWith(p gpu.Program) []Draw {
	var out []Draw
	for _, dr := range d.Draws {
		if dr.Program == p {
			out = append(out, dr)
		}
	}
	return out
}

// ResetDraws forgets recorded draws and depth copies.
func (d *Device) ResetDraws() {
	d.Draws = d.Draws[:0]
	d.Blits = d.Blits[:0]
}

func (d *Device) Size() (int, int) { return d.Width, d.Height }
func (d *Device) Lost() bool        { return d.lost }

// Reset clears the lost flag and invalidates every object, as a real
// context re-creation would.
func (d *Device) Reset() error {
	d.lost = false
	d.Resets++
	d.Buffers = make(map[gpu.BufferID]*Buffer)
	d.Textures = make(map[gpu.TextureID]*image.RGBA)
	d.Targets = make(map[gpu.TargetID][2]int)
	d.targetTex = make(map[gpu.TargetID]gpu.TextureID)
	d.ConstantBinds = make(map[[2]int]gpu.BufferID)
	return nil
}

var _ gpu.Device = (*Device)(nil)
