// Package postprocess runs full-screen effects over the rendered scene.
package postprocess

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/engine/gpu"
	"github.com/Faultbox/lodestone/internal/logger"
)

// Settings toggles and parameterizes the stages. Tone mapping always runs.
type Settings struct {
	Exposure float32

	Bloom          bool
	BloomThreshold float32
	BloomIntensity float32
	BloomBlurSize  float32

	Blur       bool
	BlurRadius float32

	Monochrome bool
	Sepia      bool
}

// DefaultSettings returns tone mapping only.
func DefaultSettings() Settings {
	return Settings{
		Exposure:       1.0,
		BloomThreshold: 0.8,
		BloomIntensity: 1.2,
		BloomBlurSize:  2.0,
		BlurRadius:     1.5,
	}
}

// Effect is the std140 EffectPS block.
type Effect struct {
	Params [4]float32
	Texel  [2]float32
	_      [2]float32
}

// Step is one full-screen draw.
type Step struct {
	Program gpu.Program
	Params  [4]float32
	// Inputs are bound to texture slots 0 and 1. A zero second input is unbound.
	Inputs [2]gpu.TextureID
	Output gpu.TargetID
}

// Target indices. Each stage owns its output target.
const (
	targetBloomA = iota
	targetBloomB
	targetBloom
	targetToneMap
	targetBlur
	targetMonochrome
	targetSepia
	targetCount
)

// Chain owns the intermediate render targets and the effect constants.
type Chain struct {
	dev      gpu.Device
	settings Settings
	width    int
	height   int
	targets  [targetCount]gpu.TargetID
	effect   *gpu.ConstantBuffer[Effect]
}

// New creates a chain sized to the device back buffer.
func New(dev gpu.Device, s Settings) (*Chain, error) {
	c := &Chain{dev: dev, settings: s}
	c.width, c.height = dev.Size()
	var err error
	c.effect, err = gpu.NewConstantBuffer(dev, Effect{})
	if err != nil {
		return nil, fmt.Errorf("post-process constants: %w", err)
	}
	if err := c.createTargets(); err != nil {
		c.Release()
		return nil, err
	}
	return c, nil
}

func (c *Chain) createTargets() error {
	for i := range c.targets {
		id, err := c.dev.CreateRenderTarget(c.width, c.height)
		if err != nil {
			return fmt.Errorf("post-process target %d: %w", i, err)
		}
		c.targets[i] = id
	}
	return nil
}

func (c *Chain) deleteTargets() {
	for i, id := range c.targets {
		if id != 0 {
			c.dev.DeleteRenderTarget(id)
			c.targets[i] = 0
		}
	}
}

// Settings returns the current settings.
func (c *Chain) Settings() Settings { return c.settings }

// SetSettings replaces the settings. It takes effect on the next Run.
func (c *Chain) SetSettings(s Settings) { c.settings = s }

// Resize re-creates the intermediate targets at the new size.
func (c *Chain) Resize(width, height int) error {
	if width == c.width && height == c.height {
		return nil
	}
	c.deleteTargets()
	c.width, c.height = width, height
	logger.Debug("post-process resized", zap.Int("width", width), zap.Int("height", height))
	return c.createTargets()
}

// Recreate re-creates every device object after a device reset. The old
// handles are already gone with the lost device and are not deleted.
func (c *Chain) Recreate() error {
	c.width, c.height = c.dev.Size()
	if err := c.effect.Restore(); err != nil {
		return err
	}
	return c.createTargets()
}

// Release frees all device objects.
func (c *Chain) Release() {
	c.deleteTargets()
	if c.effect != nil {
		c.effect.Release()
	}
}

// Steps plans the draws for one frame over input. The last step always
// writes to the back buffer.
func (c *Chain) Steps(input gpu.TextureID) []Step {
	s := c.settings
	tex := c.dev.TargetTexture
	var steps []Step
	cur := input

	if s.Bloom {
		steps = append(steps,
			Step{Program: gpu.ProgramBloomExtract, Params: [4]float32{s.BloomThreshold}, Inputs: [2]gpu.TextureID{cur}, Output: c.targets[targetBloomA]},
			Step{Program: gpu.ProgramBlurHorizontal, Params: [4]float32{s.BloomBlurSize}, Inputs: [2]gpu.TextureID{tex(c.targets[targetBloomA])}, Output: c.targets[targetBloomB]},
			Step{Program: gpu.ProgramBlurVertical, Params: [4]float32{s.BloomBlurSize}, Inputs: [2]gpu.TextureID{tex(c.targets[targetBloomB])}, Output: c.targets[targetBloomA]},
			Step{Program: gpu.ProgramBloomCombine, Params: [4]float32{s.BloomIntensity}, Inputs: [2]gpu.TextureID{cur, tex(c.targets[targetBloomA])}, Output: c.targets[targetBloom]},
		)
		cur = tex(c.targets[targetBloom])
	}

	steps = append(steps, Step{Program: gpu.ProgramToneMap, Params: [4]float32{s.Exposure}, Inputs: [2]gpu.TextureID{cur}, Output: c.targets[targetToneMap]})
	cur = tex(c.targets[targetToneMap])

	if s.Blur {
		steps = append(steps, Step{Program: gpu.ProgramGaussianBlur, Params: [4]float32{s.BlurRadius}, Inputs: [2]gpu.TextureID{cur}, Output: c.targets[targetBlur]})
		cur = tex(c.targets[targetBlur])
	}
	if s.Monochrome {
		steps = append(steps, Step{Program: gpu.ProgramMonochrome, Inputs: [2]gpu.TextureID{cur}, Output: c.targets[targetMonochrome]})
		cur = tex(c.targets[targetMonochrome])
	}
	if s.Sepia {
		steps = append(steps, Step{Program: gpu.ProgramSepia, Inputs: [2]gpu.TextureID{cur}, Output: c.targets[targetSepia]})
	}

	steps[len(steps)-1].Output = gpu.BackBuffer
	return steps
}

// Run applies the enabled stages to input and composes the result to the
// back buffer. Depth testing is off while it runs.
func (c *Chain) Run(input gpu.TextureID) error {
	texel := [2]float32{1 / float32(max(c.width, 1)), 1 / float32(max(c.height, 1))}

	c.dev.SetDepthTest(false)
	c.dev.SetBlendState(gpu.BlendOpaque)
	c.dev.SetRasterState(gpu.RasterNoCull)
	defer func() {
		c.dev.SetDepthTest(true)
		c.dev.SetRasterState(gpu.RasterDefault)
	}()

	for _, st := range c.Steps(input) {
		if err := c.effect.Update(Effect{Params: st.Params, Texel: texel}); err != nil {
			return fmt.Errorf("%s: %w", st.Program, err)
		}
		c.effect.Bind(gpu.PixelStage, gpu.SlotEffect)
		c.dev.SetRenderTarget(st.Output)
		c.dev.SetProgram(st.Program)
		c.dev.BindTexture(0, st.Inputs[0])
		c.dev.BindTexture(1, st.Inputs[1])
		c.dev.DrawFullscreen()
	}
	return nil
}
