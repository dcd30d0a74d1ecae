package viewer

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/engine/model"
	"github.com/Faultbox/lodestone/internal/engine/tasks"
	"github.com/Faultbox/lodestone/internal/logger"
)

// preloader parses model files ahead of time so several files can be read
// concurrently. Each preloaded scene is handed out once; later loads, such
// as hot reloads, go to the wrapped loader.
type preloader struct {
	next model.SceneLoader

	mu     sync.Mutex
	scenes map[string]*model.Scene
}

func newPreloader(next model.SceneLoader) *preloader {
	return &preloader{next: next, scenes: make(map[string]*model.Scene)}
}

// preload parses paths on the pool. Failures are logged and left for Load
// to report again.
func (p *preloader) preload(ctx context.Context, pool *tasks.Pool, paths []string) {
	_ = pool.Run(ctx, len(paths), func(ctx context.Context, i int) error {
		scene, err := p.next.Load(paths[i])
		if err != nil {
			logger.Debug("preload failed", zap.String("path", paths[i]), zap.Error(err))
			return nil
		}
		p.mu.Lock()
		p.scenes[paths[i]] = scene
		p.mu.Unlock()
		return nil
	})
}

// Load implements model.SceneLoader.
func (p *preloader) Load(path string) (*model.Scene, error) {
	p.mu.Lock()
	scene, ok := p.scenes[path]
	delete(p.scenes, path)
	p.mu.Unlock()
	if ok {
		return scene, nil
	}
	return p.next.Load(path)
}
