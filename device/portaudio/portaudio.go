// Package portaudio plays audio on the default output device with a
// portaudio callback stream.
package portaudio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/sample"
)

// Config selects stream parameters. Zero values use device defaults.
type Config struct {
	Channels        int
	Sample          sample.Format
	FramesPerBuffer int
}

// Device represents portaudio default output device.
type Device struct {
	format          device.Format
	framesPerBuffer int
	stream          *portaudio.Stream
}

// Open initializes portaudio api and queries default output device.
func Open(cfg Config) (*Device, error) {
	if cfg.Sample != sample.Float32 && cfg.Sample != sample.Int16 {
		return nil, fmt.Errorf("%w: portaudio %v", device.ErrUnsupportedFormat, cfg.Sample)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	info, err := portaudio.DefaultOutputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", device.ErrNoDevice, err)
	}
	channels := cfg.Channels
	if channels <= 0 || channels > info.MaxOutputChannels {
		channels = defaultChannels(info.MaxOutputChannels)
	}
	framesPerBuffer := cfg.FramesPerBuffer
	if framesPerBuffer <= 0 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}
	return &Device{
		format: device.Format{
			Name:       info.Name,
			SampleRate: int(info.DefaultSampleRate),
			Channels:   channels,
			Sample:     cfg.Sample,
		},
		framesPerBuffer: framesPerBuffer,
	}, nil
}

func defaultChannels(max int) int {
	if max > 2 {
		return 2
	}
	return max
}

// Format returns the native stream format.
func (d *Device) Format() device.Format {
	return d.format
}

// Start opens the output stream bound to the callback and starts it.
func (d *Device) Start(cb *device.Callback) error {
	var fn interface{}
	switch d.format.Sample {
	case sample.Int16:
		fn = cb.FillInt16
	default:
		fn = cb.FillFloat32
	}
	stream, err := portaudio.OpenDefaultStream(0, d.format.Channels, float64(d.format.SampleRate), d.framesPerBuffer, fn)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if err = stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start stream: %w", err)
	}
	d.stream = stream
	return nil
}

// Stop stops and closes the output stream.
func (d *Device) Stop() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Stop()
	if err != nil {
		return err
	}
	err = d.stream.Close()
	d.stream = nil
	return err
}

// Close terminates portaudio structures.
func (d *Device) Close() error {
	return portaudio.Terminate()
}
