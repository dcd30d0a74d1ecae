package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gopxl/beep/v2"
)

// otoBufferSize is the latency of the oto output buffer.
const otoBufferSize = 50 * time.Millisecond

// OtoDevice plays buffers through the system mixer. oto allows a single
// context per process, so create one device and share it.
type OtoDevice struct {
	ctx    *oto.Context
	format beep.Format
	store  *bufferStore
}

// NewOtoDevice opens the output at the given rate and channel count with
// 16-bit signed samples.
func NewOtoDevice(rate beep.SampleRate, channels int) (*OtoDevice, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(rate),
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   otoBufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	return &OtoDevice{
		ctx:    ctx,
		format: beep.Format{SampleRate: rate, NumChannels: channels, Precision: 2},
		store:  newBufferStore(),
	}, nil
}

func (d *OtoDevice) Format() beep.Format                      { return d.format }
func (d *OtoDevice) GenBuffers(n int) []BufferID              { return d.store.gen(n) }
func (d *OtoDevice) DeleteBuffers(ids []BufferID)             { d.store.delete(ids) }
func (d *OtoDevice) BufferData(id BufferID, pcm []byte) error { return d.store.set(id, pcm) }

// NewVoice creates a paused player reading from its own queue.
func (d *OtoDevice) NewVoice() (Voice, error) {
	q := &voiceQueue{store: d.store}
	return &otoVoice{voiceQueue: q, player: d.ctx.NewPlayer(q)}, nil
}

// Suspend pauses all output, e.g. while the window is minimized.
func (d *OtoDevice) Suspend() error { return d.ctx.Suspend() }

// Resume restarts output after Suspend.
func (d *OtoDevice) Resume() error { return d.ctx.Resume() }

// bufferStore holds buffer contents. The oto goroutine reads it while the
// driving thread refills.
type bufferStore struct {
	mu   sync.RWMutex
	next BufferID
	data map[BufferID][]byte
}

func newBufferStore() *bufferStore {
	return &bufferStore{data: make(map[BufferID][]byte)}
}

func (s *bufferStore) gen(n int) []BufferID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]BufferID, n)
	for i := range ids {
		s.next++
		ids[i] = s.next
		s.data[s.next] = nil
	}
	return ids
}

func (s *bufferStore) delete(ids []BufferID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.data, id)
	}
}

func (s *bufferStore) set(id BufferID, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return fmt.Errorf("audio buffer %d does not exist", id)
	}
	s.data[id] = append(s.data[id][:0], pcm...)
	return nil
}

func (s *bufferStore) get(id BufferID) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[id]
}

// voiceQueue is the io.Reader behind a player. Played buffers stay at the
// front of the queue until unqueued; when nothing is pending it yields
// silence.
type voiceQueue struct {
	store *bufferStore

	mu        sync.Mutex
	ids       []BufferID
	processed int
	offset    int
}

func (q *voiceQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(p) && q.processed < len(q.ids) {
		data := q.store.get(q.ids[q.processed])
		c := copy(p[n:], data[q.offset:])
		n += c
		q.offset += c
		if q.offset >= len(data) {
			q.processed++
			q.offset = 0
		}
	}
	clear(p[n:])
	return len(p), nil
}

func (q *voiceQueue) Queue(ids ...BufferID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, ids...)
}

func (q *voiceQueue) Unqueue(n int) []BufferID {
	q.mu.Lock()
	defer q.mu.Unlock()
	n = min(n, q.processed)
	out := append([]BufferID(nil), q.ids[:n]...)
	q.ids = q.ids[n:]
	q.processed -= n
	return out
}

func (q *voiceQueue) Processed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processed
}

func (q *voiceQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids) - q.processed
}

type otoVoice struct {
	*voiceQueue
	player *oto.Player
}

func (v *otoVoice) Play()               { v.player.Play() }
func (v *otoVoice) Pause()              { v.player.Pause() }
func (v *otoVoice) IsPlaying() bool     { return v.player.IsPlaying() }
func (v *otoVoice) SetVolume(x float64) { v.player.SetVolume(x) }
func (v *otoVoice) Close() error        { return v.player.Close() }
