package render

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Pass is a bit set of render passes.
type Pass uint8

const (
	PassMain Pass = 1 << iota
	PassEditor
	PassAlpha
)

func (p Pass) String() string {
	var names []string
	if p&PassMain != 0 {
		names = append(names, "main")
	}
	if p&PassEditor != 0 {
		names = append(names, "editor")
	}
	if p&PassAlpha != 0 {
		names = append(names, "alpha")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// State is the pass state machine.
type State uint8

const (
	NotRendering State = iota
	PreRender
	Rendering
	PostRender
)

func (s State) String() string {
	switch s {
	case PreRender:
		return "pre-render"
	case Rendering:
		return "rendering"
	case PostRender:
		return "post-render"
	}
	return "not-rendering"
}

// Renderable is anything the system draws. For each pass in Pass() where
// IsVisible is true, the system calls PreRender, binds the per-object
// constants for the current transform and calls Render and PostRender.
// PostRender is skipped only when PreRender fails.
type Renderable interface {
	Pass() Pass
	IsVisible() bool
	PreRender(s *System) error
	Render(s *System) error
	PostRender(s *System)
}

// Node is one level of the scene hierarchy.
type Node interface {
	// Transform is the node's transform relative to its parent.
	Transform() mgl32.Mat4
	Renderables() []Renderable
	Children() []Node
}

// Funcs adapts a set of functions to Renderable. Nil functions are no-ops
// and a nil Visible means always visible.
type Funcs struct {
	Passes  Pass
	Visible func() bool
	Pre     func(s *System) error
	Draw    func(s *System) error
	Post    func(s *System)
}

func (f *Funcs) Pass() Pass { return f.Passes }

func (f *Funcs) IsVisible() bool {
	return f.Visible == nil || f.Visible()
}

func (f *Funcs) PreRender(s *System) error {
	if f.Pre == nil {
		return nil
	}
	return f.Pre(s)
}

func (f *Funcs) Render(s *System) error {
	if f.Draw == nil {
		return nil
	}
	return f.Draw(s)
}

func (f *Funcs) PostRender(s *System) {
	if f.Post != nil {
		f.Post(s)
	}
}
