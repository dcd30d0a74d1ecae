package audio

import (
	"fmt"
)

// Source plays a streaming or static buffer on its own voice.
type Source struct {
	// Looping restarts the data when it runs out.
	Looping bool
	// OnFinished is called once when a non-looping source has played
	// everything it queued.
	OnFinished func()

	voice    Voice
	stream   *StreamingBuffer
	static   *StaticBuffer
	volume   float64
	gain     float64
	finished bool
}

// NewStreamingSource queues the initially filled buffers of b on a new
// voice.
func NewStreamingSource(dev Device, b *StreamingBuffer) (*Source, error) {
	if !sameFormat(b.Format(), dev.Format()) {
		return nil, fmt.Errorf("streaming source: %w", ErrFormatMismatch)
	}
	v, err := dev.NewVoice()
	if err != nil {
		return nil, fmt.Errorf("streaming source: %w", err)
	}
	v.Queue(b.Queue()...)
	return &Source{voice: v, stream: b, volume: 1, gain: 1}, nil
}

// NewStaticSource queues b on a new voice.
func NewStaticSource(dev Device, b *StaticBuffer) (*Source, error) {
	if !sameFormat(b.Format(), dev.Format()) {
		return nil, fmt.Errorf("static source: %w", ErrFormatMismatch)
	}
	v, err := dev.NewVoice()
	if err != nil {
		return nil, fmt.Errorf("static source: %w", err)
	}
	v.Queue(b.ID())
	return &Source{voice: v, static: b, volume: 1, gain: 1}, nil
}

// Update recycles the buffers the voice finished since the last call.
// It never blocks.
func (s *Source) Update() {
	if s.finished {
		return
	}
	n := s.voice.Processed()
	if n == 0 {
		return
	}
	done := s.voice.Unqueue(n)

	var queued int
	switch {
	case s.stream != nil:
		s.voice.Queue(s.stream.LoadNewBuffers(len(done), s.Looping)...)
		queued = s.stream.QueueLength()
	case s.Looping:
		s.voice.Queue(done...)
		queued = len(done)
	}

	if queued == 0 && s.voice.Pending() == 0 {
		s.finished = true
		s.voice.Pause()
		if s.OnFinished != nil {
			s.OnFinished()
		}
	}
}

func (s *Source) Play()           { s.voice.Play() }
func (s *Source) Pause()          { s.voice.Pause() }
func (s *Source) IsPlaying() bool { return s.voice.IsPlaying() }

// Finished reports whether a non-looping source ran out of data.
func (s *Source) Finished() bool { return s.finished }

// Volume returns the source volume before the master gain.
func (s *Source) Volume() float64 { return s.volume }

// SetVolume sets the source volume in [0, 1].
func (s *Source) SetVolume(v float64) {
	s.volume = clamp(v, 0, 1)
	s.voice.SetVolume(s.volume * s.gain)
}

func (s *Source) setGain(g float64) {
	s.gain = g
	s.voice.SetVolume(s.volume * s.gain)
}

// Close stops the voice and releases the buffers.
func (s *Source) Close() error {
	err := s.voice.Close()
	if s.stream != nil {
		s.stream.Release()
	}
	if s.static != nil {
		s.static.Release()
	}
	return err
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
