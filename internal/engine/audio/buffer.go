package audio

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gopxl/beep/v2"

	"github.com/Faultbox/lodestone/internal/assets"
	"github.com/Faultbox/lodestone/internal/logger"
)

// Streaming defaults.
const (
	DefaultBufferCount    = 3
	DefaultMaxQueueLength = 3
)

// Options sizes a streaming buffer.
type Options struct {
	BufferCount    int
	MaxQueueLength int
}

// DefaultOptions returns three buffers, all of which may be queued.
func DefaultOptions() Options {
	return Options{BufferCount: DefaultBufferCount, MaxQueueLength: DefaultMaxQueueLength}
}

func mustAudio(res assets.Resource) *Resource {
	r, ok := res.(*Resource)
	if !ok || r.Type() != assets.TypeAudio {
		panic(fmt.Sprintf("audio: %s is not an audio resource", res.Path()))
	}
	return r
}

// StreamingBuffer feeds a resource to a voice through a small ring of
// device buffers, each holding one slice of the PCM.
type StreamingBuffer struct {
	dev        Device
	res        *Resource
	buffers    []BufferID
	queue      []BufferID
	bufferSize int
	cursor     int
	end        int
}

// NewStreamingBuffer creates the device buffers and fills up to
// MaxQueueLength of them from the start of the data. It panics if res is
// not an audio resource.
func NewStreamingBuffer(dev Device, res assets.Resource, opts Options) *StreamingBuffer {
	r := mustAudio(res)
	if opts.BufferCount <= 0 {
		opts.BufferCount = DefaultBufferCount
	}
	if opts.MaxQueueLength <= 0 || opts.MaxQueueLength > opts.BufferCount {
		opts.MaxQueueLength = opts.BufferCount
	}

	align := max(r.BlockAlign(), 1)
	size := r.Size() / opts.BufferCount
	size -= size % align
	if size == 0 {
		// Too short to split: the whole file streams as one buffer.
		size = max(r.Size()-r.Size()%align, align)
	}

	b := &StreamingBuffer{
		dev:        dev,
		res:        r,
		buffers:    dev.GenBuffers(opts.BufferCount),
		bufferSize: size,
	}
	for _, id := range b.buffers[:opts.MaxQueueLength] {
		if b.cursor >= r.Size() {
			break
		}
		b.end = min(b.cursor+size, r.Size())
		if !b.fill(id) {
			break
		}
		b.cursor = b.end
		b.queue = append(b.queue, id)
	}
	return b
}

func (b *StreamingBuffer) fill(id BufferID) bool {
	if err := b.dev.BufferData(id, b.res.pcm[b.cursor:b.end]); err != nil {
		logger.Warn("could not fill audio buffer",
			zap.String("path", b.res.Path()),
			zap.Error(err),
		)
		return false
	}
	return true
}

// LoadNewBuffers refills the count oldest queued buffers after the voice
// finished playing them and returns the refilled handles in queue order.
// At the end of the data the cursor wraps when looping; otherwise refilling
// stops and the queue shrinks.
func (b *StreamingBuffer) LoadNewBuffers(count int, looping bool) []BufferID {
	count = min(count, len(b.queue))
	done := b.queue[:count]
	b.queue = b.queue[count:]

	var refilled []BufferID
	size := b.res.Size()
	for _, id := range done {
		if b.cursor >= size {
			if !looping {
				break
			}
			b.cursor = 0
		}
		b.end = min(b.cursor+b.bufferSize, size)
		if !b.fill(id) {
			break
		}
		b.cursor = b.end
		refilled = append(refilled, id)
	}
	b.queue = append(b.queue[:len(b.queue):len(b.queue)], refilled...)
	return refilled
}

// Queue returns the queued handles, oldest first.
func (b *StreamingBuffer) Queue() []BufferID { return append([]BufferID(nil), b.queue...) }

// QueueLength returns the number of filled, queued buffers.
func (b *StreamingBuffer) QueueLength() int { return len(b.queue) }

// BufferSize returns the bytes per full buffer.
func (b *StreamingBuffer) BufferSize() int { return b.bufferSize }

// Cursor returns the offset of the next byte to upload.
func (b *StreamingBuffer) Cursor() int { return b.cursor }

// Buffers returns all device handles.
func (b *StreamingBuffer) Buffers() []BufferID { return b.buffers }

// Format returns the PCM format.
func (b *StreamingBuffer) Format() beep.Format { return b.res.format }

// Release deletes the device buffers.
func (b *StreamingBuffer) Release() {
	if b.buffers != nil {
		b.dev.DeleteBuffers(b.buffers)
		b.buffers, b.queue = nil, nil
	}
}

// StaticBuffer holds a whole resource in one device buffer.
type StaticBuffer struct {
	dev Device
	res *Resource
	id  BufferID
}

// NewStaticBuffer uploads res. It panics if res is not an audio resource.
func NewStaticBuffer(dev Device, res assets.Resource) (*StaticBuffer, error) {
	r := mustAudio(res)
	ids := dev.GenBuffers(1)
	if err := dev.BufferData(ids[0], r.pcm); err != nil {
		dev.DeleteBuffers(ids)
		return nil, fmt.Errorf("static buffer %s: %w", r.Path(), err)
	}
	return &StaticBuffer{dev: dev, res: r, id: ids[0]}, nil
}

// ID returns the device handle.
func (b *StaticBuffer) ID() BufferID { return b.id }

// Format returns the PCM format.
func (b *StaticBuffer) Format() beep.Format { return b.res.format }

// Release deletes the device buffer.
func (b *StaticBuffer) Release() {
	if b.id != 0 {
		b.dev.DeleteBuffers([]BufferID{b.id})
		b.id = 0
	}
}
