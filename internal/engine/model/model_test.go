package model

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lodestone/internal/engine/gpu/gputest"
	"github.com/Faultbox/lodestone/internal/engine/material"
	"github.com/Faultbox/lodestone/internal/engine/tasks"
	"github.com/Faultbox/lodestone/internal/logger/logtest"
)

// grid returns an n x n quad grid on the XZ plane.
func grid(n int) ([][3]float32, [][3]uint32) {
	var pos [][3]float32
	for z := 0; z <= n; z++ {
		for x := 0; x <= n; x++ {
			pos = append(pos, [3]float32{float32(x), 0, float32(z)})
		}
	}
	var faces [][3]uint32
	row := uint32(n + 1)
	for z := uint32(0); z < uint32(n); z++ {
		for x := uint32(0); x < uint32(n); x++ {
			i := z*row + x
			faces = append(faces, [3]uint32{i, i + row, i + 1}, [3]uint32{i + 1, i + row, i + row + 1})
		}
	}
	return pos, faces
}

func flatten(faces [][3]uint32) []uint32 {
	out := make([]uint32, 0, len(faces)*3)
	for _, f := range faces {
		out = append(out, f[0], f[1], f[2])
	}
	return out
}

// canonical returns triangles rotated to start at their smallest index, sorted.
func canonical(indices []uint32) [][3]uint32 {
	var tris [][3]uint32
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		switch {
		case b < a && b < c:
			a, b, c = b, c, a
		case c < a && c < b:
			a, b, c = c, a, b
		}
		tris = append(tris, [3]uint32{a, b, c})
	}
	sort.Slice(tris, func(i, j int) bool {
		for k := 0; k < 3; k++ {
			if tris[i][k] != tris[j][k] {
				return tris[i][k] < tris[j][k]
			}
		}
		return false
	})
	return tris
}

func TestOptimizeVertexCachePreservesTriangles(t *testing.T) {
	pos, faces := grid(24)
	indices := flatten(faces)

	// Shuffle triangles so the optimizer has work to do.
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(faces), func(i, j int) { faces[i], faces[j] = faces[j], faces[i] })
	shuffled := flatten(faces)

	out := OptimizeVertexCache(shuffled, len(pos))
	require.Len(t, out, len(indices))
	assert.Equal(t, canonical(shuffled), canonical(out))
	assert.Less(t, ACMR(out, 16), ACMR(shuffled, 16))
}

func TestOptimizeVertexCacheEdges(t *testing.T) {
	assert.Empty(t, OptimizeVertexCache(nil, 0))

	// Out-of-range indices are returned as given.
	in := []uint32{0, 1, 9}
	assert.Equal(t, in, OptimizeVertexCache(in, 3))

	// Degenerate triangles and trailing indices survive.
	in = []uint32{0, 0, 1, 1, 2, 3, 2}
	out := OptimizeVertexCache(in, 4)
	assert.Equal(t, canonical(in[:6]), canonical(out[:6]))
	assert.Equal(t, uint32(2), out[6])
}

func TestSimplifySloppy(t *testing.T) {
	pos, faces := grid(32)
	indices := flatten(faces)

	for _, ratio := range []float64{0.8, 0.5, 0.3, 0.1, 0.01} {
		target := int(float64(len(indices)) * ratio)
		out := SimplifySloppy(indices, pos, target)
		assert.LessOrEqual(t, len(out), target, "ratio %v", ratio)
		assert.Zero(t, len(out)%3)
		for _, v := range out {
			assert.Less(t, int(v), len(pos))
		}
	}

	// A generous target should keep a useful amount of geometry.
	out := SimplifySloppy(indices, pos, len(indices)/2)
	assert.Greater(t, len(out), len(indices)/8)

	assert.Equal(t, indices, SimplifySloppy(indices, pos, len(indices)+5))
	assert.Empty(t, SimplifySloppy(indices, pos, 2))
}

func TestSimplifyKeepsWinding(t *testing.T) {
	pos, faces := grid(16)
	indices := flatten(faces)
	out := SimplifySloppy(indices, pos, len(indices)/4)
	require.NotEmpty(t, out)

	// All source triangles face -Y or +Y consistently; so must the output.
	for i := 0; i < len(out); i += 3 {
		a, b, c := mgl32.Vec3(pos[out[i]]), mgl32.Vec3(pos[out[i+1]]), mgl32.Vec3(pos[out[i+2]])
		n := b.Sub(a).Cross(c.Sub(a))
		assert.Greater(t, n.Y(), float32(0))
	}
}

func TestBoundingBox(t *testing.T) {
	box := NewBoundingBox(AABB{Min: mgl32.Vec3{-1, -2, -3}, Max: mgl32.Vec3{3, 2, 1}})
	assert.Equal(t, mgl32.Vec3{1, 0, -1}, box.Center)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, box.Extents)

	swapped := NewBoundingBox(AABB{Min: mgl32.Vec3{1, 1, 1}, Max: mgl32.Vec3{-1, -1, -1}})
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, swapped.Extents)

	u := box.Union(NewBoundingBox(AABB{Min: mgl32.Vec3{4, 4, 4}, Max: mgl32.Vec3{5, 5, 5}}))
	assert.Equal(t, mgl32.Vec3{-1, -2, -3}, u.Min())
	assert.Equal(t, mgl32.Vec3{5, 5, 5}, u.Max())

	assert.Equal(t, AABB{Min: mgl32.Vec3{0, -1, 0}, Max: mgl32.Vec3{2, 1, 0}},
		ComputeAABB([][3]float32{{0, 1, 0}, {2, -1, 0}}))
}

type resolverFunc func(string, *RawMaterial) (*material.Material, error)

func (f resolverFunc) Resolve(p string, raw *RawMaterial) (*material.Material, error) { return f(p, raw) }

// byName hands out one shared material per raw material name.
func byName() MaterialResolver {
	mats := map[string]*material.Material{}
	return resolverFunc(func(_ string, raw *RawMaterial) (*material.Material, error) {
		name := ""
		if raw != nil {
			name = raw.Name
		}
		if m, ok := mats[name]; ok {
			return m, nil
		}
		m := material.New(name)
		if raw != nil && raw.HasAlpha {
			m.Color[3] = raw.Alpha
		}
		mats[name] = m
		return m, nil
	})
}

func quad() RawMesh {
	return RawMesh{
		Name:      "quad",
		Positions: [][3]float32{{-1, 0, -2}, {1, 0, -2}, {1, 0, 2}, {-1, 0, 2}},
		Normals:   [][3]float32{{0, 1, 0}, {0, 1, 0}},
		Faces:     [][3]uint32{{0, 2, 1}, {0, 3, 2}},
		AABB:      AABB{Min: mgl32.Vec3{-1, 0, -2}, Max: mgl32.Vec3{1, 0, 2}},
	}
}

func TestBuildQuad(t *testing.T) {
	dev := gputest.New(64, 64)
	b := &Builder{Device: dev, Resolver: byName(), Thresholds: DefaultThresholds}

	scene := &Scene{Meshes: []RawMesh{quad()}, Materials: []RawMaterial{{Name: "Floor"}}}
	groups, err := b.Build(context.Background(), "models/quad.gltf", scene)
	require.NoError(t, err)

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Meshes, 1)
	mesh := groups[0].Meshes[0]

	assert.Equal(t, 4, mesh.Vertices.Count())
	require.NotEmpty(t, mesh.LODs)
	assert.LessOrEqual(t, len(mesh.LODs), 5)
	assert.Equal(t, float32(1), mesh.LODs[0].Threshold)
	assert.Equal(t, 6, mesh.LODs[0].Indices.Count())
	for _, lod := range mesh.LODs[1:] {
		assert.NotZero(t, lod.Indices.Count())
		assert.LessOrEqual(t, lod.Indices.Count(), 6)
	}

	assert.Equal(t, mgl32.Vec3{0, 0, 0}, mesh.Bounds.Center)
	assert.Equal(t, mgl32.Vec3{1, 0, 2}, mesh.Bounds.Extents)

	// Missing attributes read as zero.
	data := dev.Buffers[mesh.Vertices.ID()].Data
	assert.Len(t, data, 4*44)
}

func TestPrepareDropsOutOfRangeFaces(t *testing.T) {
	logs := logtest.Warnings(t)
	raw := &RawMesh{
		Name:      "tri",
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Faces:     [][3]uint32{{0, 1, 2}, {0, 2, 99}},
	}
	p := prepare(raw, nil)
	require.NotNil(t, p)
	require.Len(t, p.lods, 1)
	assert.ElementsMatch(t, []uint32{0, 1, 2}, p.lods[0])
	assert.Equal(t, 1, logs.FilterMessage("dropping faces with out of range indices").Len())

	raw.Faces = [][3]uint32{{3, 4, 5}}
	assert.Nil(t, prepare(raw, nil))
}

func TestBuildLODs(t *testing.T) {
	dev := gputest.New(64, 64)
	pos, faces := grid(20)
	raw := RawMesh{Name: "terrain", Positions: pos, Faces: faces, AABB: ComputeAABB(pos)}

	b := &Builder{Device: dev, Resolver: byName(), Pool: tasks.NewPool(2)}
	groups, err := b.Build(context.Background(), "terrain.gltf", &Scene{Meshes: []RawMesh{raw}})
	require.NoError(t, err)
	mesh := groups[0].Meshes[0]

	full := mesh.LODs[0].Indices.Count()
	assert.Equal(t, len(faces)*3, full)
	assert.Greater(t, len(mesh.LODs), 1)
	prev := float32(1)
	for _, lod := range mesh.LODs[1:] {
		assert.Less(t, lod.Threshold, prev)
		prev = lod.Threshold
		target := int(float32(full)*lod.Threshold + 0.5)
		assert.LessOrEqual(t, lod.Indices.Count(), target)
	}

	assert.Same(t, &mesh.LODs[0], SelectLOD(mesh, 1.5))
	assert.Same(t, &mesh.LODs[len(mesh.LODs)-1], SelectLOD(mesh, 0))
	assert.Equal(t, float32(1), SelectLOD(mesh, 0.9).Threshold)
}

func TestBuildMergesMaterials(t *testing.T) {
	logtest.Warnings(t)
	dev := gputest.New(64, 64)
	b := &Builder{Device: dev, Resolver: byName()}

	a, c := quad(), quad()
	other := quad()
	other.MaterialIndex = 1
	empty := RawMesh{Name: "empty"}
	scene := &Scene{
		Meshes:    []RawMesh{a, other, c, empty},
		Materials: []RawMaterial{{Name: "Stone"}, {Name: "Glass", Alpha: 0.5, HasAlpha: true}},
	}

	groups, err := b.Build(context.Background(), "m.gltf", scene)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Stone", groups[0].Material.Path)
	assert.Len(t, groups[0].Meshes, 2)
	assert.Equal(t, "Glass", groups[1].Material.Path)
	assert.Len(t, groups[1].Meshes, 1)
}

func TestBuildUploadFailureReleases(t *testing.T) {
	dev := gputest.New(64, 64)
	calls := 0
	resolver := resolverFunc(func(string, *RawMaterial) (*material.Material, error) {
		calls++
		if calls == 2 {
			dev.LoseDevice()
		}
		return material.New("m"), nil
	})
	b := &Builder{Device: dev, Resolver: resolver}

	_, err := b.Build(context.Background(), "m.gltf", &Scene{Meshes: []RawMesh{quad(), quad()}})
	require.Error(t, err)
	assert.Empty(t, dev.Buffers)
}

func TestBuildResolverErrorSkipsMesh(t *testing.T) {
	logs := logtest.Warnings(t)
	dev := gputest.New(64, 64)
	resolver := resolverFunc(func(_ string, raw *RawMaterial) (*material.Material, error) {
		if raw != nil && raw.Name == "bad" {
			return nil, errors.New("broken")
		}
		return material.New("ok"), nil
	})
	b := &Builder{Device: dev, Resolver: resolver}

	bad := quad()
	bad.MaterialIndex = 0
	good := quad()
	good.MaterialIndex = 5
	groups, err := b.Build(context.Background(), "m.gltf",
		&Scene{Meshes: []RawMesh{bad, good}, Materials: []RawMaterial{{Name: "bad"}}})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 1, logs.FilterMessage("could not resolve material, skipping mesh").Len())
}

type loaderFunc func(string) (*Scene, error)

func (f loaderFunc) Load(p string) (*Scene, error) { return f(p) }

func TestResourceReimport(t *testing.T) {
	dev := gputest.New(64, 64)
	fail := false
	loader := loaderFunc(func(string) (*Scene, error) {
		if fail {
			return nil, errors.New("corrupt file")
		}
		return &Scene{Meshes: []RawMesh{quad()}, Materials: []RawMaterial{{Name: "Glass", Alpha: 0.25, HasAlpha: true}}}, nil
	})
	res := NewResource("models/quad.gltf", loader, &Builder{Device: dev, Resolver: byName()})

	require.NoError(t, res.Reimport(context.Background()))
	first := res.Meshes()
	require.Len(t, first, 1)
	assert.True(t, res.IsTransparent())
	box, ok := res.Bounds()
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 0, 2}, box.Extents)
	buffers := len(dev.Buffers)

	fail = true
	err := res.Reimport(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt file")
	assert.Equal(t, first, res.Meshes())
	assert.Len(t, dev.Buffers, buffers)

	// A successful reimport swaps and frees the old buffers.
	fail = false
	require.NoError(t, res.Reimport(context.Background()))
	assert.Len(t, dev.Buffers, buffers)

	dev.LoseDevice()
	require.NoError(t, dev.Reset())
	require.NoError(t, res.Restore())
	assert.Len(t, dev.Buffers, buffers)

	res.Release()
	assert.Empty(t, dev.Buffers)
	assert.Empty(t, res.Meshes())
}
