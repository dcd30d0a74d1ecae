package assets

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func TestManagerLoad(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "models"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "models", "box.gltf"), []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(root)
	if !m.Exists("models/box.gltf") {
		t.Fatal("expected asset to exist")
	}
	if m.Exists("models/missing.gltf") {
		t.Error("missing asset reported as existing")
	}

	data, err := m.Load("models/box.gltf")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "v1" {
		t.Errorf("got %q, want %q", data, "v1")
	}

	// Cached until invalidated.
	if err := os.WriteFile(filepath.Join(root, "models", "box.gltf"), []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}
	data, _ = m.Load("models/box.gltf")
	if string(data) != "v1" {
		t.Errorf("expected cached data, got %q", data)
	}
	m.Invalidate("models/box.gltf")
	data, _ = m.Load("models/box.gltf")
	if string(data) != "v2" {
		t.Errorf("expected reloaded data, got %q", data)
	}

	if _, err := m.Load("nope.bin"); err == nil {
		t.Error("expected error for missing asset")
	}
}

func TestResolve(t *testing.T) {
	m := NewManager("")
	if got := m.Root(); got != "." {
		t.Errorf("default root: got %q", got)
	}
	abs := filepath.Join(t.TempDir(), "a.wav")
	if got := m.Resolve(abs); got != abs {
		t.Errorf("absolute path changed: %q", got)
	}
}

func TestCacheStats(t *testing.T) {
	c := NewCache()
	c.Set("a", []byte{1})
	c.Get("a")
	c.Get("b")
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("got %d hits %d misses, want 1/1", hits, misses)
	}
	c.Clear()
	if _, ok := c.Get("a"); ok {
		t.Error("expected cleared cache")
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeAudio, "audio"},
		{TypeModel, "model"},
		{TypeImage, "image"},
		{TypeMaterial, "material"},
		{TypeUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("Type(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestWatcherDebounce(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.gltf")
	b := filepath.Join(dir, "b.gltf")

	w, err := NewWatcher(time.Second)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	clock := time.Unix(1000, 0)
	w.now = func() time.Time { return clock }

	if err := w.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := w.Add(b); err != nil {
		t.Fatalf("Add: %v", err)
	}

	w.touch(a)
	w.touch(filepath.Join(dir, "unwatched.txt"))
	if got := w.Poll(); len(got) != 0 {
		t.Fatalf("expected nothing before debounce, got %v", got)
	}

	clock = clock.Add(500 * time.Millisecond)
	w.touch(b)
	clock = clock.Add(600 * time.Millisecond)
	got := w.Poll()
	if len(got) != 1 || got[0] != a {
		t.Fatalf("expected only %s, got %v", a, got)
	}

	clock = clock.Add(time.Second)
	w.touch(a)
	clock = clock.Add(time.Second)
	got = w.Poll()
	sort.Strings(got)
	if len(got) != 2 {
		t.Fatalf("expected both files, got %v", got)
	}

	w.Remove(a)
	w.touch(a)
	clock = clock.Add(time.Second)
	if got := w.Poll(); len(got) != 0 {
		t.Errorf("removed file still reported: %v", got)
	}
}
