// Package device adapts the audio queue to hardware output callbacks.
//
// Audio subsystem calls one of Callback's Fill methods on its own
// real-time thread whenever it needs another hardware buffer. Fill pops
// exactly as many samples as the buffer holds, so channels stay
// interleaved in the order they were pushed.
package device

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"pipelined.dev/livehost/metric"
	"pipelined.dev/livehost/queue"
	"pipelined.dev/livehost/sample"
)

var (
	// ErrNoDevice is returned when there is no output device available.
	ErrNoDevice = errors.New("no output device available")
	// ErrUnsupportedFormat is returned when device can't play requested format.
	ErrUnsupportedFormat = errors.New("unsupported device format")
)

// Format describes native format of the output stream.
type Format struct {
	Name       string
	SampleRate int
	Channels   int
	Sample     sample.Format
}

func (f Format) String() string {
	return fmt.Sprintf("%s: %dHz %dch %v", f.Name, f.SampleRate, f.Channels, f.Sample)
}

// Validate checks if format can be streamed.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	if f.Sample.Size() == 0 {
		return fmt.Errorf("%w: %v", sample.ErrUnknownFormat, f.Sample)
	}
	return nil
}

// Device is an audio output stream.
type Device interface {
	// Format returns the native stream format.
	Format() Format
	// Start binds callback to the output stream and starts it.
	Start(*Callback) error
	// Stop stops the stream. Callback is not called after Stop returns.
	Stop() error
	// Close releases the device.
	Close() error
}

// Underrun defines what callback does when queue is empty.
type Underrun int

const (
	// UnderrunBlock waits for the processing loop to push samples.
	UnderrunBlock Underrun = iota
	// UnderrunSilence substitutes silence and counts the underrun.
	UnderrunSilence
)

// ParseUnderrun returns underrun policy by its name.
func ParseUnderrun(s string) (Underrun, error) {
	switch strings.ToLower(s) {
	case "block":
		return UnderrunBlock, nil
	case "silence":
		return UnderrunSilence, nil
	}
	return 0, fmt.Errorf("unknown underrun policy: %q", s)
}

func (u Underrun) String() string {
	if u == UnderrunSilence {
		return "silence"
	}
	return "block"
}

// Callback fills hardware buffers with samples from the queue. Samples
// are consumed in whole frames so channel order survives underruns.
type Callback struct {
	queue     *queue.Queue
	underrun  Underrun
	channels  int
	underruns func(int64)
	count     atomic.Int64
}

// NewCallback returns callback that consumes the queue of interleaved
// stream with provided number of channels.
func NewCallback(q *queue.Queue, underrun Underrun, channels int) *Callback {
	if channels < 1 {
		channels = 1
	}
	c := &Callback{
		queue:    q,
		underrun: underrun,
		channels: channels,
	}
	c.underruns = metric.Counter(c, metric.UnderrunCounter)
	return c
}

// FillFloat32 fills 32-bit float buffer.
func (c *Callback) FillFloat32(out []float32) {
	fill(c, out, sample.ToFloat32)
}

// FillInt16 fills signed 16-bit buffer.
func (c *Callback) FillInt16(out []int16) {
	fill(c, out, sample.ToInt16)
}

// FillUint16 fills unsigned 16-bit buffer.
func (c *Callback) FillUint16(out []uint16) {
	fill(c, out, sample.ToUint16)
}

func fill[T any](c *Callback, out []T, convert func(float32) T) {
	starved := false
	for i := 0; i < len(out); i += c.channels {
		frame := out[i:min(i+c.channels, len(out))]
		if c.starved() {
			starved = true
			silence := convert(0)
			for j := range frame {
				frame[j] = silence
			}
			continue
		}
		for j := range frame {
			frame[j] = convert(c.next())
		}
	}
	if starved {
		c.count.Add(1)
		c.underruns(1)
	}
}

// Underruns returns number of buffers that were padded with silence.
func (c *Callback) Underruns() int64 {
	return c.count.Load()
}

// starved reports if the next whole frame is not available yet. Only
// the consumer pops, so the frame can't disappear after the check.
func (c *Callback) starved() bool {
	return c.underrun == UnderrunSilence && c.queue.Len() < c.channels && !c.queue.Closed()
}

// next returns next sample. Once the queue is closed and drained, it
// returns silence.
func (c *Callback) next() float32 {
	if c.underrun == UnderrunBlock {
		s, _ := c.queue.Pop()
		return s
	}
	s, _ := c.queue.TryPop()
	return s
}
