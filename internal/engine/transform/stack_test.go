package transform

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestPushComposes(t *testing.T) {
	s := NewStack(4)
	assert.Equal(t, mgl32.Ident4(), s.Top())

	a := mgl32.Translate3D(1, 0, 0)
	b := mgl32.Scale3D(2, 2, 2)
	s.Push(a)
	s.Push(b)

	assert.Equal(t, 2, s.Depth())
	assert.True(t, s.Top().ApproxEqual(a.Mul4(b)))

	p := s.Top().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 3, p.X(), 1e-6)

	s.Pop()
	assert.True(t, s.Top().ApproxEqual(a))
	s.Pop()
	assert.Equal(t, mgl32.Ident4(), s.Top())
}

func TestPushOverride(t *testing.T) {
	s := NewStack(4)
	s.Push(mgl32.Translate3D(5, 5, 5))

	abs := mgl32.Translate3D(0, 1, 0)
	s.PushOverride(abs)
	assert.Equal(t, abs, s.Top())

	// Children of an override compose against the override.
	s.Push(mgl32.Translate3D(1, 0, 0))
	assert.True(t, s.Top().ApproxEqual(mgl32.Translate3D(1, 1, 0)))

	s.Pop()
	s.Pop()
	assert.True(t, s.Top().ApproxEqual(mgl32.Translate3D(5, 5, 5)))
}

func TestPopEmptyPanics(t *testing.T) {
	s := NewStack(0)
	assert.Panics(t, func() { s.Pop() })

	s.Push(mgl32.Ident4())
	s.Reset()
	assert.Equal(t, 0, s.Depth())
	assert.Panics(t, func() { s.Pop() })
}
