// Package viewer implements the model viewer main loop.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gopxl/beep/v2"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/assets"
	"github.com/Faultbox/lodestone/internal/config"
	"github.com/Faultbox/lodestone/internal/engine/audio"
	"github.com/Faultbox/lodestone/internal/engine/camera"
	"github.com/Faultbox/lodestone/internal/engine/debug"
	"github.com/Faultbox/lodestone/internal/engine/gpu/opengl"
	"github.com/Faultbox/lodestone/internal/engine/importer"
	"github.com/Faultbox/lodestone/internal/engine/input"
	"github.com/Faultbox/lodestone/internal/engine/material"
	"github.com/Faultbox/lodestone/internal/engine/model"
	"github.com/Faultbox/lodestone/internal/engine/physics"
	"github.com/Faultbox/lodestone/internal/engine/render"
	"github.com/Faultbox/lodestone/internal/engine/scene"
	"github.com/Faultbox/lodestone/internal/engine/tasks"
	"github.com/Faultbox/lodestone/internal/engine/window"
	"github.com/Faultbox/lodestone/internal/logger"
)

// Title is the window title.
const Title = "Lodestone Viewer"

// Options names what to load on startup.
type Options struct {
	// Models is a comma separated list of model paths.
	Models string
	Music  string
}

// Viewer is the main viewer instance.
type Viewer struct {
	cfg     *config.Config
	running bool

	window  *window.Window
	device  *opengl.Device
	input   *input.Input
	assets  *assets.Manager
	watcher *assets.Watcher
	pool    *tasks.Pool

	materials *material.Library
	builder   *model.Builder
	loader    *preloader
	models    map[string]*model.Resource

	render *render.System
	scene  *scene.Scene
	camera *camera.Orbit
	debug  *physics.Bridge

	shots *debug.ScreenshotCapture
	shoot bool

	axes      bool
	wireframe bool

	audioDev *audio.OtoDevice
	audio    *audio.Manager
}

// New creates the window and every engine system, then loads the
// requested assets. Missing or broken assets are logged and skipped.
func New(cfg *config.Config, opts Options) (*Viewer, error) {
	logger.Info("initializing viewer",
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
	)

	v := &Viewer{
		cfg:    cfg,
		input:  input.New(),
		assets: assets.NewManager(cfg.Assets.Root),
		pool:   tasks.NewPool(cfg.Engine.Workers),
		models: make(map[string]*model.Resource),
		scene:  scene.New(),
		shots:  debug.NewScreenshotCapture("screenshots", "lodestone"),
	}

	// Create window (this also creates OpenGL context)
	var err error
	v.window, err = window.New(window.FromGraphics(Title, cfg.Graphics))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	width, height := v.window.DrawableSize()
	v.device, err = opengl.New(width, height)
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	v.materials = material.NewLibrary(v.assets, cfg.Assets.MaterialsDir, cfg.Assets.DefaultMaterial)
	v.builder = &model.Builder{
		Device:     v.device,
		Resolver:   v.materials,
		Thresholds: cfg.Render.LODThresholds,
		Pool:       v.pool,
	}
	v.loader = newPreloader(&importer.GLTF{Assets: v.assets})

	v.camera = camera.NewOrbit(camera.Lens{
		FOV:    cfg.Graphics.FOV,
		Near:   cfg.Graphics.Near,
		Far:    cfg.Graphics.Far,
		Width:  width,
		Height: height,
	})
	v.render, err = render.New(v.device, renderOptions(cfg, v.camera, v.materials.White()))
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create render system: %w", err)
	}
	v.render.Register(render.RestoreFunc(func() error {
		v.materials.InvalidateTextures()
		return nil
	}))
	v.debug = physics.NewBridge(v.render)

	if cfg.Assets.Watch {
		if v.watcher, err = assets.NewWatcher(assets.DefaultDebounce); err != nil {
			logger.Warn("asset watching disabled", zap.Error(err))
		}
	}

	v.loadModels(splitList(opts.Models))
	v.scene.Lights = []render.Light{render.DefaultLight(mgl32.Vec3{50, 100, 50})}
	v.scene.Apply(v.render)

	v.initAudio(opts.Music)

	logger.Info("viewer initialized successfully")
	return v, nil
}

func renderOptions(cfg *config.Config, cam camera.Camera, white *material.Texture) render.Options {
	opts := render.DefaultOptions()
	r := cfg.Render
	opts.EditorPass = r.EditorPass
	if r.LineCapacity > 0 {
		opts.LineCapacity = r.LineCapacity
	}
	opts.LineColor = mgl32.Vec4(r.LineColor)
	opts.ClearColor = r.ClearColor
	opts.Fog = render.Fog{Start: r.Fog.Start, End: r.Fog.End, Color: r.Fog.Color}
	opts.PostProcess.Exposure = r.PostProcess.Exposure
	opts.PostProcess.Bloom = r.PostProcess.Bloom
	opts.PostProcess.BloomThreshold = r.PostProcess.BloomThreshold
	opts.PostProcess.BloomIntensity = r.PostProcess.BloomIntensity
	opts.PostProcess.BloomBlurSize = r.PostProcess.BloomBlurSize
	opts.PostProcess.Blur = r.PostProcess.Blur
	opts.PostProcess.BlurRadius = r.PostProcess.BlurRadius
	opts.PostProcess.Monochrome = r.PostProcess.Monochrome
	opts.PostProcess.Sepia = r.PostProcess.Sepia
	opts.Camera = cam
	opts.White = white
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadModels parses every file on the worker pool, then builds them on
// the device thread.
func (v *Viewer) loadModels(paths []string) {
	if len(paths) == 0 {
		return
	}
	v.loader.preload(context.Background(), v.pool, paths)

	var bounds model.BoundingBox
	var haveBounds bool
	for _, p := range paths {
		res := model.NewResource(p, v.loader, v.builder)
		if err := res.Reimport(context.Background()); err != nil {
			logger.Error("failed to load model", zap.String("path", p), zap.Error(err))
			continue
		}
		v.models[v.assets.Resolve(p)] = res
		v.render.Register(res)

		node := scene.NewNode(p)
		node.Attach(render.NewModelRenderable(res))
		node.Attach(&render.BoundsRenderable{Resource: res, Color: mgl32.Vec4{1, 1, 0, 1}})
		v.scene.Root.AddChild(node)

		if box, ok := res.Bounds(); ok {
			if haveBounds {
				bounds = bounds.Union(box)
			} else {
				bounds, haveBounds = box, true
			}
		}
		if v.watcher != nil {
			if err := v.watcher.Add(v.assets.Resolve(p)); err != nil {
				logger.Warn("cannot watch model", zap.String("path", p), zap.Error(err))
			}
		}
	}
	if haveBounds {
		v.camera.FitToBounds(bounds.Center, bounds.Radius())
	}
}

func (v *Viewer) initAudio(music string) {
	a := v.cfg.Audio
	dev, err := audio.NewOtoDevice(beep.SampleRate(a.SampleRate), a.Channels)
	if err != nil {
		logger.Warn("audio disabled", zap.Error(err))
		return
	}
	v.audioDev = dev
	v.audio = audio.New(dev, audio.Options{BufferCount: a.BufferCount, MaxQueueLength: a.MaxQueueLength})
	v.audio.SetMasterVolume(a.MasterVolume)
	v.audio.SetMuted(a.Muted)

	if music == "" {
		return
	}
	data, err := v.assets.Load(music)
	if err != nil {
		logger.Error("failed to load music", zap.String("path", music), zap.Error(err))
		return
	}
	res, err := audio.Decode(music, data, dev.Format())
	if err != nil {
		logger.Error("failed to decode music", zap.String("path", music), zap.Error(err))
		return
	}
	if _, err := v.audio.PlayMusic(res, true); err != nil {
		logger.Error("failed to play music", zap.String("path", music), zap.Error(err))
	}
}

// Run starts the main loop.
func (v *Viewer) Run() error {
	v.running = true

	// Timing
	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	logger.Info("starting viewer loop")

	for v.running {
		now := time.Now()
		dt := now.Sub(lastTime)
		lastTime = now

		// 1. Process input
		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()

		// 2. Update
		v.reload()
		if v.audio != nil {
			v.audio.Update()
		}

		// 3. Render
		presented, err := v.frame(dt)
		if err != nil {
			return fmt.Errorf("render error: %w", err)
		}

		// 4. Present (swap buffers). A dropped frame leaves the back
		// buffer undefined, so nothing reads or shows it.
		if presented {
			if v.shoot {
				v.shoot = false
				v.screenshot()
			}
			v.window.SwapBuffers()
		}

		// FPS counter
		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			logger.Debug("fps", zap.Int("count", frameCount), zap.Duration("dt", dt))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			width, height := v.window.DrawableSize()
			v.device.Resize(width, height)
			v.camera.Resize(width, height)
			if err := v.render.Resize(width, height); err != nil {
				logger.Error("resize failed", zap.Error(err))
			}
		case input.EventWindowMinimized:
			if v.audioDev != nil {
				_ = v.audioDev.Suspend()
			}
		case input.EventWindowRestored:
			if v.audioDev != nil {
				_ = v.audioDev.Resume()
			}
		case input.EventMouseDrag:
			v.camera.HandleDrag(event.DeltaX, event.DeltaY)
		case input.EventMouseWheel:
			v.camera.HandleZoom(event.DeltaY)
		case input.EventKeyDown:
			v.handleKey(event.Key)
		}
	}
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	switch key {
	case sdl.SCANCODE_ESCAPE:
		v.running = false
	case sdl.SCANCODE_E:
		v.render.SetEditorPass(!v.render.EditorPass())
	case sdl.SCANCODE_W:
		v.wireframe = !v.wireframe
		if v.wireframe {
			v.render.EnableWireframe()
		} else {
			v.render.ResetRasterizer()
		}
	case sdl.SCANCODE_A:
		v.axes = !v.axes
	case sdl.SCANCODE_M:
		if v.audio != nil {
			v.audio.SetMuted(!v.audio.Muted())
		}
	case sdl.SCANCODE_F12:
		v.shoot = true
	case sdl.SCANCODE_F11:
		if err := v.window.ToggleFullscreen(); err != nil {
			logger.Warn("fullscreen toggle failed", zap.Error(err))
		}
	}
}

// reload reimports models whose files changed.
func (v *Viewer) reload() {
	if v.watcher == nil {
		return
	}
	for _, path := range v.watcher.Poll() {
		res, ok := v.models[path]
		if !ok {
			continue
		}
		v.assets.Invalidate(res.Path())
		if err := res.Reimport(context.Background()); err != nil {
			logger.Error("reimport failed, keeping previous model", zap.String("path", res.Path()), zap.Error(err))
		}
	}
}

func (v *Viewer) frame(dt time.Duration) (bool, error) {
	if v.axes {
		v.drawAxes()
	}
	return renderFrame(v.render, dt)
}

// renderFrame renders one frame and reports whether it may be presented.
// After a device loss the device is recovered and the frame is dropped.
func renderFrame(r *render.System, dt time.Duration) (bool, error) {
	err := r.Update(dt)
	if errors.Is(err, render.ErrDeviceLost) {
		logger.Warn("device lost, recovering, frame dropped")
		return false, r.RecoverLostDevice()
	}
	return err == nil, err
}

func (v *Viewer) screenshot() {
	width, height := v.device.Size()
	name, err := v.shots.CaptureFromPixels(v.device.ReadPixels(), width, height)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("file", name))
}

func (v *Viewer) drawAxes() {
	const length = 10
	origin := mgl32.Vec3{}
	v.debug.DrawLine(origin, mgl32.Vec3{length, 0, 0}, mgl32.Vec4{1, 0, 0, 1})
	v.debug.DrawLine(origin, mgl32.Vec3{0, length, 0}, mgl32.Vec4{0, 1, 0, 1})
	v.debug.DrawLine(origin, mgl32.Vec3{0, 0, length}, mgl32.Vec4{0, 0, 1, 1})
	v.debug.DrawContactPoint(v.camera.Center, mgl32.Vec3{0, 1, 0}, 0, 0, mgl32.Vec4{1, 1, 1, 1})
}

// Close releases everything in reverse order of creation.
func (v *Viewer) Close() {
	logger.Info("closing viewer")

	if v.audio != nil {
		v.audio.Close()
	}
	if v.watcher != nil {
		if err := v.watcher.Close(); err != nil {
			logger.Warn("failed to close watcher", zap.Error(err))
		}
	}
	for _, res := range v.models {
		res.Release()
	}
	if v.render != nil {
		v.render.Release()
	}
	if v.materials != nil {
		v.materials.Release()
	}
	if v.device != nil {
		v.device.Close()
	}
	v.assets.Close()
	if v.window != nil {
		v.window.Close()
	}
}
