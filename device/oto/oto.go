// Package oto plays audio with the oto library. Oto pulls samples from a
// reader on its own goroutine, which acts as the device callback thread.
package oto

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/sample"
)

// Config selects stream parameters.
type Config struct {
	SampleRate int
	Channels   int
	Sample     sample.Format
	// BufferSize is the hardware buffer duration, zero means oto default.
	BufferSize time.Duration
}

// Device represents oto output context. Only one device can be opened
// per process.
type Device struct {
	format device.Format
	ctx    *oto.Context
	player *oto.Player
}

// Open creates oto context and waits until it's ready.
func Open(cfg Config) (*Device, error) {
	var format oto.Format
	switch cfg.Sample {
	case sample.Float32:
		format = oto.FormatFloat32LE
	case sample.Int16:
		format = oto.FormatSignedInt16LE
	default:
		return nil, fmt.Errorf("%w: oto %v", device.ErrUnsupportedFormat, cfg.Sample)
	}
	f := device.Format{
		Name:       "oto",
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Sample:     cfg.Sample,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       format,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", device.ErrNoDevice, err)
	}
	<-ready
	return &Device{
		format: f,
		ctx:    ctx,
	}, nil
}

// Format returns the stream format.
func (d *Device) Format() device.Format {
	return d.format
}

// Start creates a player that pulls samples from the callback.
func (d *Device) Start(cb *device.Callback) error {
	d.player = d.ctx.NewPlayer(newReader(cb, d.format))
	d.player.Play()
	return nil
}

// Stop pauses and closes the player.
func (d *Device) Stop() error {
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	return err
}

// Close suspends oto context.
func (d *Device) Close() error {
	return d.ctx.Suspend()
}

// reader encodes callback samples into little-endian bytes.
type reader struct {
	cb       *device.Callback
	format   sample.Format
	frame    int // frame size in bytes.
	channels int
	f32      []float32
	i16      []int16
}

func newReader(cb *device.Callback, f device.Format) *reader {
	return &reader{
		cb:       cb,
		format:   f.Sample,
		frame:    f.Sample.Size() * f.Channels,
		channels: f.Channels,
	}
}

// Read fills p with whole frames only.
func (r *reader) Read(p []byte) (int, error) {
	frames := len(p) / r.frame
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.channels
	switch r.format {
	case sample.Int16:
		if cap(r.i16) < n {
			r.i16 = make([]int16, n)
		}
		buf := r.i16[:n]
		r.cb.FillInt16(buf)
		for i, s := range buf {
			binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
		}
	default:
		if cap(r.f32) < n {
			r.f32 = make([]float32, n)
		}
		buf := r.f32[:n]
		r.cb.FillFloat32(buf)
		for i, s := range buf {
			binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
		}
	}
	return frames * r.frame, nil
}
