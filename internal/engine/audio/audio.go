// Package audio streams decoded PCM to an output device through small
// queues of buffers, and plays short sounds from a single buffer.
package audio

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/lodestone/internal/logger"
)

// Manager owns the playing sources and applies the master volume.
type Manager struct {
	mu sync.RWMutex

	dev  Device
	opts Options

	sources []*Source
	music   *Source

	// Volume settings (0.0 to 1.0)
	masterVolume float64
	muted        bool
}

// New creates a manager that plays on dev.
func New(dev Device, opts Options) *Manager {
	return &Manager{dev: dev, opts: opts, masterVolume: 1.0}
}

// Device returns the output device.
func (m *Manager) Device() Device { return m.dev }

// SetMasterVolume sets the master volume (0.0 to 1.0).
func (m *Manager) SetMasterVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masterVolume = clamp(vol, 0, 1)
	m.applyGain()
}

// MasterVolume returns the master volume.
func (m *Manager) MasterVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masterVolume
}

// SetMuted silences every source without losing the master volume.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.applyGain()
}

// Muted reports whether output is muted.
func (m *Manager) Muted() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.muted
}

func (m *Manager) gain() float64 {
	if m.muted {
		return 0
	}
	return m.masterVolume
}

func (m *Manager) applyGain() {
	g := m.gain()
	for _, s := range m.sources {
		s.setGain(g)
	}
}

// PlayMusic streams res, replacing the current music.
func (m *Manager) PlayMusic(res *Resource, loop bool) (*Source, error) {
	b := NewStreamingBuffer(m.dev, res, m.opts)
	s, err := NewStreamingSource(m.dev, b)
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("play music %s: %w", res.Path(), err)
	}
	s.Looping = loop

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.music != nil {
		m.removeLocked(m.music)
	}
	m.music = s
	m.startLocked(s)
	return s, nil
}

// PlayEffect plays res once from a single buffer.
func (m *Manager) PlayEffect(res *Resource) (*Source, error) {
	b, err := NewStaticBuffer(m.dev, res)
	if err != nil {
		return nil, err
	}
	s, err := NewStaticSource(m.dev, b)
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("play effect %s: %w", res.Path(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked(s)
	return s, nil
}

func (m *Manager) startLocked(s *Source) {
	s.setGain(m.gain())
	m.sources = append(m.sources, s)
	s.Play()
}

// Music returns the current music source or nil.
func (m *Manager) Music() *Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.music
}

// StopMusic stops and releases the current music.
func (m *Manager) StopMusic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.music != nil {
		m.removeLocked(m.music)
	}
}

// Sources returns the number of live sources.
func (m *Manager) Sources() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

// Update refills every source once and drops the ones that finished.
func (m *Manager) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.sources[:0]
	for _, s := range m.sources {
		s.Update()
		if !s.Finished() {
			live = append(live, s)
			continue
		}
		if s == m.music {
			m.music = nil
		}
		m.closeSource(s)
	}
	clear(m.sources[len(live):])
	m.sources = live
}

func (m *Manager) removeLocked(s *Source) {
	for i, x := range m.sources {
		if x == s {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			break
		}
	}
	if s == m.music {
		m.music = nil
	}
	m.closeSource(s)
}

func (m *Manager) closeSource(s *Source) {
	if err := s.Close(); err != nil {
		logger.Warn("failed to close audio source", zap.Error(err))
	}
}

// Close stops and releases every source.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		m.closeSource(s)
	}
	m.sources = nil
	m.music = nil
}
