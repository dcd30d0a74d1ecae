package gpu

import (
	"fmt"
	"unsafe"
)

// Bytes reinterprets a slice of plain-old-data values as raw bytes.
// T must not contain pointers.
func Bytes[T any](v []T) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(unsafe.Sizeof(v[0])))
}

// VertexBuffer is a device vertex buffer of count vertices with a fixed stride.
type VertexBuffer struct {
	dev    Device
	id     BufferID
	layout Layout
	usage  Usage
	count  int
	stride int
	data   []byte
}

// NewVertexBuffer uploads vertices to the device.
func NewVertexBuffer[V any](dev Device, vertices []V, layout Layout, usage Usage) (*VertexBuffer, error) {
	if usage == Immutable && len(vertices) == 0 {
		return nil, ErrEmptyBuffer
	}
	var zero V
	data := append([]byte(nil), Bytes(vertices)...)
	id, err := dev.CreateBuffer(KindVertex, usage, data)
	if err != nil {
		return nil, fmt.Errorf("create vertex buffer: %w", err)
	}
	return &VertexBuffer{
		dev:    dev,
		id:     id,
		layout: layout,
		usage:  usage,
		count:  len(vertices),
		stride: int(unsafe.Sizeof(zero)),
		data:   data,
	}, nil
}

// UpdateVertexBuffer replaces the contents of a dynamic vertex buffer.
func UpdateVertexBuffer[V any](b *VertexBuffer, vertices []V) error {
	if b.id == 0 {
		return ErrReleased
	}
	if b.usage == Immutable {
		return ErrImmutable
	}
	data := Bytes(vertices)
	if err := b.dev.UpdateBuffer(b.id, data); err != nil {
		return err
	}
	b.count = len(vertices)
	b.data = append(b.data[:0], data...)
	return nil
}

// Restore re-creates the device buffer from the retained contents after a
// device reset. The old handle is not deleted; the reset already freed it.
func (b *VertexBuffer) Restore() error {
	id, err := b.dev.CreateBuffer(KindVertex, b.usage, b.data)
	if err != nil {
		return fmt.Errorf("restore vertex buffer: %w", err)
	}
	b.id = id
	return nil
}

// Bind binds the buffer as the current vertex source.
func (b *VertexBuffer) Bind() {
	b.dev.BindVertexBuffer(b.id, b.layout)
}

// ID returns the device handle.
func (b *VertexBuffer) ID() BufferID { return b.id }

// Count returns the number of vertices.
func (b *VertexBuffer) Count() int { return b.count }

// Stride returns the size of one vertex in bytes.
func (b *VertexBuffer) Stride() int { return b.stride }

// Release frees the device buffer. Safe to call twice.
func (b *VertexBuffer) Release() {
	if b.id != 0 {
		b.dev.DeleteBuffer(b.id)
		b.id = 0
	}
}

// IndexBuffer is a device buffer of 32-bit indices. It keeps a CPU copy
// of the indices for picking and LOD inspection.
type IndexBuffer struct {
	dev     Device
	id      BufferID
	usage   Usage
	indices []uint32
}

// NewIndexBuffer uploads indices to the device.
func NewIndexBuffer(dev Device, indices []uint32, usage Usage) (*IndexBuffer, error) {
	if usage == Immutable && len(indices) == 0 {
		return nil, ErrEmptyBuffer
	}
	id, err := dev.CreateBuffer(KindIndex, usage, Bytes(indices))
	if err != nil {
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	return &IndexBuffer{
		dev:     dev,
		id:      id,
		usage:   usage,
		indices: append([]uint32(nil), indices...),
	}, nil
}

// Update replaces the contents of a dynamic index buffer.
func (b *IndexBuffer) Update(indices []uint32) error {
	if b.id == 0 {
		return ErrReleased
	}
	if b.usage == Immutable {
		return ErrImmutable
	}
	if err := b.dev.UpdateBuffer(b.id, Bytes(indices)); err != nil {
		return err
	}
	b.indices = append(b.indices[:0], indices...)
	return nil
}

// Restore re-creates the device buffer from the retained indices after a
// device reset.
func (b *IndexBuffer) Restore() error {
	id, err := b.dev.CreateBuffer(KindIndex, b.usage, Bytes(b.indices))
	if err != nil {
		return fmt.Errorf("restore index buffer: %w", err)
	}
	b.id = id
	return nil
}

// Bind binds the buffer as the current index source.
func (b *IndexBuffer) Bind() {
	b.dev.BindIndexBuffer(b.id)
}

// ID returns the device handle.
func (b *IndexBuffer) ID() BufferID { return b.id }

// Count returns the number of indices.
func (b *IndexBuffer) Count() int { return len(b.indices) }

// Indices returns the CPU copy of the index data. Do not modify.
func (b *IndexBuffer) Indices() []uint32 { return b.indices }

// Release frees the device buffer. Safe to call twice.
func (b *IndexBuffer) Release() {
	if b.id != 0 {
		b.dev.DeleteBuffer(b.id)
		b.id = 0
	}
}

// ConstantBuffer holds one value of T on the device. T must be a
// pointer-free struct laid out to std140 rules.
type ConstantBuffer[T any] struct {
	dev   Device
	id    BufferID
	value T
}

// NewConstantBuffer creates a dynamic constant buffer initialized to v.
func NewConstantBuffer[T any](dev Device, v T) (*ConstantBuffer[T], error) {
	id, err := dev.CreateBuffer(KindConstant, Dynamic, Bytes([]T{v}))
	if err != nil {
		return nil, fmt.Errorf("create constant buffer: %w", err)
	}
	return &ConstantBuffer[T]{dev: dev, id: id, value: v}, nil
}

// Update uploads v.
func (c *ConstantBuffer[T]) Update(v T) error {
	if c.id == 0 {
		return ErrReleased
	}
	c.value = v
	return c.dev.UpdateBuffer(c.id, Bytes([]T{v}))
}

// Restore re-creates the device buffer with the last value after a device reset.
func (c *ConstantBuffer[T]) Restore() error {
	id, err := c.dev.CreateBuffer(KindConstant, Dynamic, Bytes([]T{c.value}))
	if err != nil {
		return fmt.Errorf("restore constant buffer: %w", err)
	}
	c.id = id
	return nil
}

// Bind binds the buffer to the given stage and slot.
func (c *ConstantBuffer[T]) Bind(stage Stage, slot int) {
	c.dev.BindConstantBuffer(stage, slot, c.id)
}

// Value returns the last uploaded value.
func (c *ConstantBuffer[T]) Value() T { return c.value }

// ID returns the device handle.
func (c *ConstantBuffer[T]) ID() BufferID { return c.id }

// Release frees the device buffer. Safe to call twice.
func (c *ConstantBuffer[T]) Release() {
	if c.id != 0 {
		c.dev.DeleteBuffer(c.id)
		c.id = 0
	}
}
