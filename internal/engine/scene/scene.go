// Package scene provides a minimal node hierarchy that the render system
// traverses, plus the lights that go with it.
package scene

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/engine/render"
	"github.com/Faultbox/lodestone/internal/logger"
)

// Node is a transform with attached renderables and child nodes. The
// parent link is a back reference only; a node is owned by its parent's
// child list.
type Node struct {
	Name     string
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	parent      *Node
	children    []*Node
	nodes       []render.Node
	renderables []render.Renderable
}

// NewNode returns a node with the identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Transform returns translation * rotation * scale.
func (n *Node) Transform() mgl32.Mat4 {
	return mgl32.Translate3D(n.Position[0], n.Position[1], n.Position[2]).
		Mul4(n.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2]))
}

// World returns the accumulated transform from the root to n.
func (n *Node) World() mgl32.Mat4 {
	m := n.Transform()
	for p := n.parent; p != nil; p = p.parent {
		m = p.Transform().Mul4(m)
	}
	return m
}

// Parent returns the parent node or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Renderables implements render.Node.
func (n *Node) Renderables() []render.Renderable { return n.renderables }

// Children implements render.Node.
func (n *Node) Children() []render.Node { return n.nodes }

// Nodes returns the child nodes.
func (n *Node) Nodes() []*Node { return n.children }

// AddChild attaches c under n, detaching it from its previous parent.
// Attaching a node under itself or one of its descendants is ignored.
func (n *Node) AddChild(c *Node) {
	for p := n; p != nil; p = p.parent {
		if p == c {
			logger.Warn("refusing to create a cycle in the scene graph",
				zap.String("parent", n.Name),
				zap.String("child", c.Name),
			)
			return
		}
	}
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
	n.nodes = append(n.nodes, c)
}

// RemoveChild detaches c. It reports whether c was a child of n.
func (n *Node) RemoveChild(c *Node) bool {
	i := slices.Index(n.children, c)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	n.nodes = slices.Delete(n.nodes, i, i+1)
	c.parent = nil
	return true
}

// Attach adds a renderable to the node.
func (n *Node) Attach(r render.Renderable) {
	n.renderables = append(n.renderables, r)
}

// Detach removes a renderable. It reports whether r was attached.
func (n *Node) Detach(r render.Renderable) bool {
	i := slices.Index(n.renderables, r)
	if i < 0 {
		return false
	}
	n.renderables = slices.Delete(n.renderables, i, i+1)
	return true
}

// Walk visits n and its descendants depth first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the first node named name, or nil.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if c.Name == name {
			found = c
			return false
		}
		return true
	})
	return found
}

// Scene is a root node and its lights.
type Scene struct {
	Root   *Node
	Lights []render.Light
}

// New returns an empty scene.
func New() *Scene {
	return &Scene{Root: NewNode("root")}
}

// Apply makes the scene current in the render system.
func (s *Scene) Apply(sys *render.System) {
	sys.SetScene(s.Root)
	sys.ClearLights()
	for _, l := range s.Lights {
		sys.AddLight(l)
	}
}
