// Package material holds surface materials, their on-disk records and the
// library that resolves imported materials to shared instances.
package material

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pkg/errors"

	"github.com/Faultbox/lodestone/internal/assets"
	"github.com/Faultbox/lodestone/internal/logger"
)

// Texture slots.
const (
	SlotDiffuse = iota
	SlotNormal
	SlotSpecular
	SlotLightmap
	SlotCount
)

var slotNames = [SlotCount]string{"diffuse", "normal", "specular", "lightmap"}

// Extension is the file suffix of basic material records.
const Extension = ".basic.rmat"

// Material is a basic lit surface. Materials are shared between meshes and
// compared by pointer.
type Material struct {
	Path              string
	Color             [4]float32
	SpecularIntensity float32
	SpecularPower     float32
	Textures          [SlotCount]*Texture
}

// New returns an opaque white material.
func New(path string) *Material {
	return &Material{
		Path:              path,
		Color:             [4]float32{1, 1, 1, 1},
		SpecularIntensity: 0.5,
		SpecularPower:     32,
	}
}

func (m *Material) Type() assets.Type { return assets.TypeMaterial }

// IsTransparent reports whether the material needs the alpha pass.
func (m *Material) IsTransparent() bool { return m.Color[3] < 1 }

// SetTexture assigns a texture to a slot. Out-of-range slots are ignored
// with a warning.
func (m *Material) SetTexture(slot int, tex *Texture) {
	if slot < 0 || slot >= SlotCount {
		logger.Warn("texture slot out of range",
			zap.String("material", m.Path),
			zap.Int("slot", slot),
		)
		return
	}
	m.Textures[slot] = tex
}

// record is the YAML form of a material file.
type record struct {
	Color             [4]float32        `yaml:"color"`
	SpecularIntensity float32           `yaml:"specular_intensity"`
	SpecularPower     float32           `yaml:"specular_power"`
	Textures          map[string]string `yaml:"textures,omitempty"`
}

func (m *Material) record() record {
	r := record{
		Color:             m.Color,
		SpecularIntensity: m.SpecularIntensity,
		SpecularPower:     m.SpecularPower,
	}
	for i, tex := range m.Textures {
		if tex == nil {
			continue
		}
		if r.Textures == nil {
			r.Textures = make(map[string]string)
		}
		r.Textures[slotNames[i]] = tex.Path
	}
	return r
}

// save writes the material record to file.
func (m *Material) save(file string) error {
	data, err := yaml.Marshal(m.record())
	if err != nil {
		return errors.Wrapf(err, "encoding material %s", m.Path)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return errors.Wrapf(err, "creating material directory for %s", m.Path)
	}
	return errors.Wrapf(os.WriteFile(file, data, 0644), "writing material %s", m.Path)
}

// parseRecord decodes a material file.
func parseRecord(path string, data []byte) (record, error) {
	r := record{
		Color:             [4]float32{1, 1, 1, 1},
		SpecularIntensity: 0.5,
		SpecularPower:     32,
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, errors.Wrapf(err, "parsing material %s", path)
	}
	return r, nil
}

// Raw is a material as read from an imported scene.
type Raw struct {
	Name string

	Diffuse    [3]float32
	HasDiffuse bool
	Alpha      float32
	HasAlpha   bool

	// Textures lists texture references per slot. References starting
	// with '*' point at data embedded in the model file.
	Textures [SlotCount][]string
}
