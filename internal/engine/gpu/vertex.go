package gpu

// MeshVertex is the vertex format of LayoutMesh.
type MeshVertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Tangent  [3]float32
}

// LineVertex is the vertex format of LayoutLine.
type LineVertex struct {
	Position [3]float32
	Color    [4]float32
}
