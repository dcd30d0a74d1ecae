// Package physics adapts a physics engine's debug-draw callbacks to the
// render system's debug lines.
package physics

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/logger"
)

// DebugMode selects what the physics engine draws.
type DebugMode uint32

// Debug mode bits, in the order physics engines conventionally number them.
const (
	DrawWireframe DebugMode = 1 << iota
	DrawAABB
	DrawFeaturesText
	DrawContactPoints
	NoDeactivation
	NoHelpText
	DrawText
	ProfileTimings
	EnableSatComparison
	DisableBulletLCP
	EnableCCD
	DrawConstraints
	DrawConstraintLimits
	FastWireframe
	DrawNormals
	DrawFrames
)

// DefaultDebugMode draws wireframes and contact points.
const DefaultDebugMode = DrawWireframe | DrawContactPoints

var modeNames = []string{
	"wireframe", "aabb", "features_text", "contact_points",
	"no_deactivation", "no_help_text", "text", "profile_timings",
	"sat_comparison", "disable_lcp", "ccd", "constraints",
	"constraint_limits", "fast_wireframe", "normals", "frames",
}

// Has reports whether every bit of f is set.
func (m DebugMode) Has(f DebugMode) bool { return m&f == f }

func (m DebugMode) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for i, name := range modeNames {
		if m&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// DebugDrawer is called by the physics engine during its debug-draw pass.
type DebugDrawer interface {
	DrawLine(from, to mgl32.Vec3, color mgl32.Vec4)
	DrawContactPoint(point, normal mgl32.Vec3, distance float32, lifetime int, color mgl32.Vec4)
	ReportErrorWarning(msg string)
	Draw3DText(location mgl32.Vec3, text string)
	SetDebugMode(m DebugMode)
	DebugMode() DebugMode
}

// LineSink receives debug primitives. *render.System implements it.
type LineSink interface {
	SubmitColoredLine(from, to mgl32.Vec3, color mgl32.Vec4)
	SubmitSphere(center mgl32.Vec3, radius float32, color mgl32.Vec4)
}

// Bridge forwards debug-draw calls to a LineSink.
type Bridge struct {
	sink LineSink
	mode DebugMode
}

var _ DebugDrawer = (*Bridge)(nil)

// NewBridge returns a bridge using DefaultDebugMode.
func NewBridge(sink LineSink) *Bridge {
	return &Bridge{sink: sink, mode: DefaultDebugMode}
}

func (b *Bridge) DrawLine(from, to mgl32.Vec3, color mgl32.Vec4) {
	b.sink.SubmitColoredLine(from, to, color)
}

// DrawContactPoint marks the point with a zero-radius sphere. Lifetime is
// ignored; contacts are redrawn every frame the engine reports them.
func (b *Bridge) DrawContactPoint(point, _ mgl32.Vec3, _ float32, _ int, color mgl32.Vec4) {
	b.sink.SubmitSphere(point, 0, color)
}

func (b *Bridge) ReportErrorWarning(msg string) {
	logger.Warn("physics warning", zap.String("message", strings.TrimSpace(msg)))
}

// Draw3DText is not supported.
func (b *Bridge) Draw3DText(mgl32.Vec3, string) {}

func (b *Bridge) SetDebugMode(m DebugMode) { b.mode = m }
func (b *Bridge) DebugMode() DebugMode     { return b.mode }
