// Package record provides output tap that saves played audio to wav file.
package record

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/livehost/sample"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")

const pcm = 1

// Recorder writes interleaved blocks into wav file. It must be started
// before the first write and closed to finalize the file header.
type Recorder struct {
	path     string
	bitDepth int
	file     *os.File
	encoder  *wav.Encoder
	buffer   *audio.IntBuffer
}

// New returns recorder that writes file with provided bit depth.
func New(path string, bitDepth int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}
	return &Recorder{
		path:     path,
		bitDepth: bitDepth,
	}, nil
}

// Start creates the file.
func (r *Recorder) Start(sampleRate, channels int) error {
	f, err := os.Create(r.path)
	if err != nil {
		return err
	}
	r.file = f
	r.encoder = wav.NewEncoder(f, sampleRate, r.bitDepth, channels, pcm)
	r.buffer = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		SourceBitDepth: r.bitDepth,
	}
	return nil
}

// Write encodes interleaved block.
func (r *Recorder) Write(b []float32) error {
	if cap(r.buffer.Data) < len(b) {
		r.buffer.Data = make([]int, len(b))
	}
	r.buffer.Data = r.buffer.Data[:len(b)]
	for i, s := range b {
		r.buffer.Data[i] = r.toInt(s)
	}
	return r.encoder.Write(r.buffer)
}

func (r *Recorder) toInt(s float32) int {
	if r.bitDepth == 16 {
		return int(sample.ToInt16(s))
	}
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(float64(s) * math.MaxInt32)
}

// Close finalizes the file.
func (r *Recorder) Close() error {
	if r.file == nil {
		return nil
	}
	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns file path of the recording.
func (r *Recorder) Path() string {
	return r.path
}
