// Package transform provides the hierarchical model matrix stack used
// during scene traversal.
package transform

import "github.com/go-gl/mathgl/mgl32"

// Stack is a stack of accumulated model matrices.
type Stack struct {
	m []mgl32.Mat4
}

// NewStack returns an empty stack with room for depth entries.
func NewStack(depth int) *Stack {
	return &Stack{m: make([]mgl32.Mat4, 0, depth)}
}

// Push appends top * local.
func (s *Stack) Push(local mgl32.Mat4) {
	s.m = append(s.m, s.Top().Mul4(local))
}

// PushOverride appends m as an absolute transform, ignoring the current top.
func (s *Stack) PushOverride(m mgl32.Mat4) {
	s.m = append(s.m, m)
}

// Pop removes the top entry. Popping an empty stack is a programming
// error and panics.
func (s *Stack) Pop() {
	if len(s.m) == 0 {
		panic("transform: pop on empty stack")
	}
	s.m = s.m[:len(s.m)-1]
}

// Top returns the current accumulated transform, or identity when empty.
func (s *Stack) Top() mgl32.Mat4 {
	if len(s.m) == 0 {
		return mgl32.Ident4()
	}
	return s.m[len(s.m)-1]
}

// Depth returns the number of entries.
func (s *Stack) Depth() int { return len(s.m) }

// Reset empties the stack.
func (s *Stack) Reset() { s.m = s.m[:0] }
