package audio

import (
	"errors"

	"github.com/gopxl/beep/v2"
)

// ErrFormatMismatch is returned when a buffer's PCM format differs from
// the device output format.
var ErrFormatMismatch = errors.New("audio: format mismatch")

// BufferID is a device buffer handle. Zero is never valid.
type BufferID uint32

// Device owns PCM buffers and creates voices that play queues of them.
type Device interface {
	// Format is the output format every buffer must match.
	Format() beep.Format
	GenBuffers(n int) []BufferID
	DeleteBuffers(ids []BufferID)
	BufferData(id BufferID, pcm []byte) error
	NewVoice() (Voice, error)
}

// Voice plays queued buffers in order. Finished buffers stay processed
// until unqueued.
type Voice interface {
	Queue(ids ...BufferID)
	// Unqueue removes up to n processed buffers, oldest first.
	Unqueue(n int) []BufferID
	// Processed returns the number of buffers played to the end.
	Processed() int
	// Pending returns the number of queued buffers not yet played.
	Pending() int
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(v float64)
	Close() error
}

func sameFormat(a, b beep.Format) bool {
	return a.SampleRate == b.SampleRate && a.NumChannels == b.NumChannels && a.Precision == b.Precision
}
