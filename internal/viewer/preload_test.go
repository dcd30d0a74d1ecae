package viewer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/lodestone/internal/config"
	"github.com/Faultbox/lodestone/internal/engine/model"
	"github.com/Faultbox/lodestone/internal/engine/tasks"
)

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
}

func (l *countingLoader) Load(path string) (*model.Scene, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[path]++
	if path == "broken.gltf" {
		return nil, errors.New("bad file")
	}
	return &model.Scene{}, nil
}

func TestPreloaderHandsOutSceneOnce(t *testing.T) {
	next := &countingLoader{calls: map[string]int{}}
	p := newPreloader(next)
	p.preload(context.Background(), tasks.NewPool(2), []string{"a.gltf", "b.gltf", "broken.gltf"})
	assert.Equal(t, map[string]int{"a.gltf": 1, "b.gltf": 1, "broken.gltf": 1}, next.calls)

	first, err := p.Load("a.gltf")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, next.calls["a.gltf"])

	_, err = p.Load("a.gltf")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls["a.gltf"])

	_, err = p.Load("broken.gltf")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a.glb", "b.gltf"}, splitList(" a.glb, ,b.gltf "))
}

func TestRenderOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Render.EditorPass = true
	cfg.Render.LineCapacity = 0
	cfg.Render.PostProcess.Sepia = true

	opts := renderOptions(cfg, nil, nil)
	assert.True(t, opts.EditorPass)
	assert.Positive(t, opts.LineCapacity)
	assert.True(t, opts.PostProcess.Sepia)
	assert.Equal(t, cfg.Render.Fog.End, opts.Fog.End)
	assert.Equal(t, cfg.Render.ClearColor, opts.ClearColor)
}
