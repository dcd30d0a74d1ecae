package material

import (
	"image/color"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/assets"
	"github.com/Faultbox/lodestone/internal/logger"
)

// Names that select the built-in default material.
var defaultNames = map[string]bool{
	"":                true,
	"DefaultMaterial": true,
	"None":            true,
}

// Library resolves materials and textures to shared instances. Resolving
// the same path twice returns the same *Material.
type Library struct {
	assets       *assets.Manager
	materialsDir string
	defaultPath  string

	mu        sync.Mutex
	materials map[string]*Material
	textures  map[string]*Texture
	white     *Texture
}

// NewLibrary creates a library storing generated materials under
// materialsDir. Both directories are asset paths.
func NewLibrary(am *assets.Manager, materialsDir, defaultPath string) *Library {
	return &Library{
		assets:       am,
		materialsDir: materialsDir,
		defaultPath:  defaultPath,
		materials:    make(map[string]*Material),
		textures:     make(map[string]*Texture),
		white:        SolidTexture("<white>", color.RGBA{255, 255, 255, 255}),
	}
}

// PathFor returns the material file an imported material maps to.
func (l *Library) PathFor(modelPath, name string) string {
	if defaultNames[name] {
		return l.defaultPath
	}
	base := path.Base(modelPath)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return path.Join(l.materialsDir, stem, name+Extension)
}

// Default returns the built-in default material.
func (l *Library) Default() *Material {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defaultLocked()
}

func (l *Library) defaultLocked() *Material {
	if m, ok := l.materials[l.defaultPath]; ok {
		return m
	}
	m, err := l.loadLocked(l.defaultPath)
	if err != nil {
		m = New(l.defaultPath)
	}
	l.materials[l.defaultPath] = m
	return m
}

// White returns the fallback texture bound to empty material slots.
func (l *Library) White() *Texture { return l.white }

// Resolve maps an imported material to a shared Material. An existing
// material file is loaded as is; otherwise one is built from raw and saved.
// Problems with individual textures or the file itself are logged and never
// fail the import.
func (l *Library) Resolve(modelPath string, raw *Raw) (*Material, error) {
	name := ""
	if raw != nil {
		name = raw.Name
	}
	p := l.PathFor(modelPath, name)

	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.materials[p]; ok {
		return m, nil
	}
	if p == l.defaultPath {
		return l.defaultLocked(), nil
	}

	if l.assets.Exists(p) {
		m, err := l.loadLocked(p)
		if err != nil {
			logger.Warn("unreadable material, using default",
				zap.String("path", p),
				zap.Error(err),
			)
			return l.defaultLocked(), nil
		}
		l.materials[p] = m
		return m, nil
	}

	m := l.build(modelPath, p, raw)
	if err := m.save(l.assets.Resolve(p)); err != nil {
		logger.Warn("could not save material", zap.String("path", p), zap.Error(err))
	} else {
		logger.Info("created material", zap.String("path", p))
	}
	l.materials[p] = m
	return m, nil
}

func (l *Library) build(modelPath, p string, raw *Raw) *Material {
	m := New(p)

	if raw.HasDiffuse {
		copy(m.Color[:3], raw.Diffuse[:])
	} else {
		logger.Warn("material has no diffuse color, using white", zap.String("material", raw.Name))
	}
	if raw.HasAlpha {
		m.Color[3] = raw.Alpha
	} else {
		logger.Warn("material has no alpha, using opaque", zap.String("material", raw.Name))
	}

	dir := path.Dir(modelPath)
	for slot, refs := range raw.Textures {
		if len(refs) == 0 {
			continue
		}
		ref := refs[0]
		if strings.HasPrefix(ref, "*") {
			logger.Warn("embedded textures are not supported",
				zap.String("material", raw.Name),
				zap.String("slot", slotNames[slot]),
				zap.String("ref", ref),
			)
			continue
		}
		tex, err := l.textureLocked(path.Join(dir, ref))
		if err != nil {
			logger.Warn("could not load texture",
				zap.String("material", raw.Name),
				zap.String("slot", slotNames[slot]),
				zap.Error(err),
			)
			continue
		}
		m.SetTexture(slot, tex)
	}
	return m
}

func (l *Library) loadLocked(p string) (*Material, error) {
	data, err := l.assets.Load(p)
	if err != nil {
		return nil, err
	}
	rec, err := parseRecord(p, data)
	if err != nil {
		return nil, err
	}

	m := &Material{
		Path:              p,
		Color:             rec.Color,
		SpecularIntensity: rec.SpecularIntensity,
		SpecularPower:     rec.SpecularPower,
	}
	for slot, name := range slotNames {
		texPath, ok := rec.Textures[name]
		if !ok || texPath == "" {
			continue
		}
		tex, err := l.textureLocked(texPath)
		if err != nil {
			logger.Warn("could not load texture",
				zap.String("material", p),
				zap.String("slot", name),
				zap.Error(err),
			)
			continue
		}
		m.SetTexture(slot, tex)
	}
	return m, nil
}

// Texture returns the shared texture for an asset path.
func (l *Library) Texture(p string) (*Texture, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.textureLocked(p)
}

func (l *Library) textureLocked(p string) (*Texture, error) {
	if tex, ok := l.textures[p]; ok {
		return tex, nil
	}
	data, err := l.assets.Load(p)
	if err != nil {
		return nil, err
	}
	tex, err := DecodeTexture(p, data)
	if err != nil {
		return nil, err
	}
	l.textures[p] = tex
	return tex, nil
}

// Forget drops a cached material so the next Resolve reads it from disk.
func (l *Library) Forget(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.materials, p)
	l.assets.Invalidate(p)
}

// InvalidateTextures forgets every device handle after a device reset.
func (l *Library) InvalidateTextures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tex := range l.textures {
		tex.Invalidate()
	}
	l.white.Invalidate()
}

// Release frees all device textures.
func (l *Library) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, tex := range l.textures {
		tex.Release()
	}
	l.white.Release()
}
