// Package importer reads model files into model.Scene.
package importer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/assets"
	"github.com/Faultbox/lodestone/internal/engine/material"
	"github.com/Faultbox/lodestone/internal/engine/model"
	"github.com/Faultbox/lodestone/internal/logger"
)

// GLTF loads .gltf and .glb files. Node transforms are baked into the
// vertices, so every primitive becomes one model.RawMesh in world space.
type GLTF struct {
	Assets *assets.Manager
}

// Load implements model.SceneLoader.
func (g *GLTF) Load(path string) (*model.Scene, error) {
	doc, err := gltf.Open(g.Assets.Resolve(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read gltf %s", path)
	}
	return Convert(doc)
}

// Convert builds a scene from a decoded document.
func Convert(doc *gltf.Document) (*model.Scene, error) {
	scene := &model.Scene{Materials: make([]model.RawMaterial, len(doc.Materials))}
	for i, m := range doc.Materials {
		scene.Materials[i] = convertMaterial(doc, m)
	}

	if len(doc.Scenes) == 0 {
		for i := range doc.Meshes {
			if err := appendMesh(doc, scene, uint32(i), mgl32.Ident4()); err != nil {
				return nil, err
			}
		}
		return scene, nil
	}

	root := uint32(0)
	if doc.Scene != nil {
		root = *doc.Scene
	}
	if int(root) >= len(doc.Scenes) {
		return nil, fmt.Errorf("default scene %d out of range", root)
	}

	var walk func(id uint32, parent mgl32.Mat4, depth int) error
	walk = func(id uint32, parent mgl32.Mat4, depth int) error {
		if int(id) >= len(doc.Nodes) {
			return fmt.Errorf("node %d out of range", id)
		}
		if depth > len(doc.Nodes) {
			return fmt.Errorf("node hierarchy has a cycle at node %d", id)
		}
		node := doc.Nodes[id]
		world := parent.Mul4(localTransform(node))
		if node.Mesh != nil {
			if err := appendMesh(doc, scene, *node.Mesh, world); err != nil {
				return errors.Wrapf(err, "node %q", node.Name)
			}
		}
		for _, c := range node.Children {
			if err := walk(c, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range doc.Scenes[root].Nodes {
		if err := walk(id, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	return scene, nil
}

func localTransform(node *gltf.Node) mgl32.Mat4 {
	m := mgl32.Mat4(node.MatrixOrDefault())
	if m != mgl32.Ident4() {
		return m
	}
	t := node.TranslationOrDefault()
	r := node.RotationOrDefault()
	s := node.ScaleOrDefault()
	q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
	return mgl32.Translate3D(t[0], t[1], t[2]).
		Mul4(q.Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

func accessor(doc *gltf.Document, idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(doc.Accessors) {
		return nil, errors.Errorf("accessor %d out of range", idx)
	}
	return doc.Accessors[idx], nil
}

func appendMesh(doc *gltf.Document, scene *model.Scene, meshID uint32, world mgl32.Mat4) error {
	if int(meshID) >= len(doc.Meshes) {
		return fmt.Errorf("mesh %d out of range", meshID)
	}
	mesh := doc.Meshes[meshID]
	normalMat := world.Mat3().Inv().Transpose()
	tangentMat := world.Mat3()

	for pi, prim := range mesh.Primitives {
		name := mesh.Name
		if len(mesh.Primitives) > 1 {
			name = fmt.Sprintf("%s.%d", mesh.Name, pi)
		}
		if prim.Mode != gltf.PrimitiveTriangles {
			logger.Warn("skipping non-triangle primitive",
				zap.String("mesh", name),
				zap.Int("mode", int(prim.Mode)),
			)
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			logger.Warn("skipping primitive without positions", zap.String("mesh", name))
			continue
		}

		raw := model.RawMesh{Name: name, MaterialIndex: -1}
		if prim.Material != nil {
			raw.MaterialIndex = int(*prim.Material)
		}

		acr, err := accessor(doc, posIdx)
		if err != nil {
			return errors.Wrapf(err, "positions of %s", name)
		}
		positions, err := modeler.ReadPosition(doc, acr, nil)
		if err != nil {
			return errors.Wrapf(err, "failed to read positions of %s", name)
		}
		for i, p := range positions {
			positions[i] = world.Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1}).Vec3()
		}
		raw.Positions = positions

		if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
			acr, err := accessor(doc, idx)
			if err != nil {
				return errors.Wrapf(err, "normals of %s", name)
			}
			normals, err := modeler.ReadNormal(doc, acr, nil)
			if err != nil {
				return errors.Wrapf(err, "failed to read normals of %s", name)
			}
			for i, n := range normals {
				normals[i] = normalMat.Mul3x1(n).Normalize()
			}
			raw.Normals = normals
		}
		if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			acr, err := accessor(doc, idx)
			if err != nil {
				return errors.Wrapf(err, "texcoords of %s", name)
			}
			uvs, err := modeler.ReadTextureCoord(doc, acr, nil)
			if err != nil {
				return errors.Wrapf(err, "failed to read texcoords of %s", name)
			}
			raw.TexCoords = uvs
		}
		if idx, ok := prim.Attributes[gltf.TANGENT]; ok {
			acr, err := accessor(doc, idx)
			if err != nil {
				return errors.Wrapf(err, "tangents of %s", name)
			}
			tangents, err := modeler.ReadTangent(doc, acr, nil)
			if err != nil {
				return errors.Wrapf(err, "failed to read tangents of %s", name)
			}
			raw.Tangents = make([][3]float32, len(tangents))
			for i, t := range tangents {
				raw.Tangents[i] = tangentMat.Mul3x1(mgl32.Vec3{t[0], t[1], t[2]})
			}
		}

		var indices []uint32
		if prim.Indices != nil {
			if acr, err = accessor(doc, *prim.Indices); err != nil {
				return errors.Wrapf(err, "indices of %s", name)
			}
			indices, err = modeler.ReadIndices(doc, acr, nil)
			if err != nil {
				return errors.Wrapf(err, "failed to read indices of %s", name)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		raw.Faces = make([][3]uint32, 0, len(indices)/3)
		for i := 0; i+2 < len(indices); i += 3 {
			raw.Faces = append(raw.Faces, [3]uint32{indices[i], indices[i+1], indices[i+2]})
		}

		raw.AABB = model.ComputeAABB(raw.Positions)
		scene.Meshes = append(scene.Meshes, raw)
	}
	return nil
}

func convertMaterial(doc *gltf.Document, m *gltf.Material) model.RawMaterial {
	raw := model.RawMaterial{Name: m.Name}
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			c := *pbr.BaseColorFactor
			raw.Diffuse = [3]float32{c[0], c[1], c[2]}
			raw.Alpha = c[3]
			raw.HasDiffuse, raw.HasAlpha = true, true
		}
		if pbr.BaseColorTexture != nil {
			raw.Textures[material.SlotDiffuse] = textureRef(doc, pbr.BaseColorTexture.Index)
		}
		if pbr.MetallicRoughnessTexture != nil {
			raw.Textures[material.SlotSpecular] = textureRef(doc, pbr.MetallicRoughnessTexture.Index)
		}
	}
	if m.NormalTexture != nil && m.NormalTexture.Index != nil {
		raw.Textures[material.SlotNormal] = textureRef(doc, *m.NormalTexture.Index)
	}
	if m.OcclusionTexture != nil && m.OcclusionTexture.Index != nil {
		raw.Textures[material.SlotLightmap] = textureRef(doc, *m.OcclusionTexture.Index)
	}
	return raw
}

// textureRef returns the image path of a texture relative to the model file,
// or "*N" for image N when its data lives inside the document.
func textureRef(doc *gltf.Document, texture uint32) []string {
	if int(texture) >= len(doc.Textures) || doc.Textures[texture].Source == nil {
		return nil
	}
	src := *doc.Textures[texture].Source
	if int(src) >= len(doc.Images) {
		return nil
	}
	img := doc.Images[src]
	if img.URI == "" || img.IsEmbeddedResource() || strings.Contains(img.URI, "://") {
		return []string{fmt.Sprintf("*%d", src)}
	}
	uri, err := url.PathUnescape(img.URI)
	if err != nil {
		uri = img.URI
	}
	return []string{uri}
}
