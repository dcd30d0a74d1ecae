package audio

import (
	"bytes"
	"fmt"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"

	"github.com/Faultbox/lodestone/internal/assets"
)

// resampleQuality is the beep.Resample quality used when the file rate
// differs from the device rate.
const resampleQuality = 4

// Resource is decoded interleaved PCM ready for device buffers.
type Resource struct {
	path   string
	format beep.Format
	pcm    []byte
}

// NewResource wraps already decoded PCM.
func NewResource(path string, format beep.Format, pcm []byte) *Resource {
	return &Resource{path: path, format: format, pcm: pcm}
}

func (r *Resource) Type() assets.Type { return assets.TypeAudio }
func (r *Resource) Path() string      { return r.path }

// Format returns the PCM format.
func (r *Resource) Format() beep.Format { return r.format }

// PCM returns the sample bytes. Do not modify.
func (r *Resource) PCM() []byte { return r.pcm }

// Size returns the PCM size in bytes.
func (r *Resource) Size() int { return len(r.pcm) }

// BlockAlign returns the size of one sample frame in bytes.
func (r *Resource) BlockAlign() int { return blockAlign(r.format) }

func blockAlign(f beep.Format) int { return f.NumChannels * f.Precision }

// Decode reads a WAV file and converts it to the channel count and sample
// rate of target with 16-bit signed samples.
func Decode(path string, data []byte, target beep.Format) (*Resource, error) {
	streamer, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	defer streamer.Close()

	var s beep.Streamer = streamer
	if format.SampleRate != target.SampleRate {
		s = beep.Resample(resampleQuality, format.SampleRate, target.SampleRate, streamer)
	}

	out := beep.Format{SampleRate: target.SampleRate, NumChannels: target.NumChannels, Precision: 2}
	pcm, err := encode(s, out)
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	return &Resource{path: path, format: out, pcm: pcm}, nil
}

func encode(s beep.Streamer, f beep.Format) ([]byte, error) {
	var (
		pcm     []byte
		samples = make([][2]float64, 512)
		frame   = make([]byte, f.Width())
	)
	for {
		n, ok := s.Stream(samples)
		for _, sample := range samples[:n] {
			w := f.EncodeSigned(frame, sample)
			pcm = append(pcm, frame[:w]...)
		}
		if !ok {
			break
		}
	}
	return pcm, s.Err()
}
