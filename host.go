package livehost

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/internal/runtime"
	"pipelined.dev/livehost/log"
	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/plugin"
	"pipelined.dev/livehost/queue"
)

// DefaultBlockSize is the number of frames processed per plugin call.
const DefaultBlockSize = 256

// Tap receives interleaved output blocks on the processing goroutine.
type Tap interface {
	Start(sampleRate, channels int) error
	Write([]float32) error
	Close() error
}

// Host owns the plugin, the output device and the hand-off queues
// between MIDI, processing and device threads.
type Host struct {
	plugin plugin.Plugin
	device device.Device
	input  midi.Input

	blockSize      int
	queueCapacity  int
	underrun       device.Underrun
	delivery       runtime.Delivery
	midiPort       int
	midiBacklog    int
	overflow       midi.Overflow
	taps           []Tap
	logger         log.Logger
	reportInterval time.Duration

	session  xid.ID
	info     plugin.Info
	format   device.Format
	events   *midi.Queue
	audio    *queue.Queue
	callback *device.Callback
	loop     *runtime.Loop

	ran         bool
	resumed     bool
	started     bool
	tapsStarted int
	closed      bool
}

// New validates plugin and device formats and pre-allocates all buffers.
// Host takes ownership of plugin and device, they are released by Close.
// Input can be nil, then host runs without MIDI.
func New(p plugin.Plugin, d device.Device, in midi.Input, options ...Option) (*Host, error) {
	h := &Host{
		plugin:    p,
		device:    d,
		input:     in,
		blockSize: DefaultBlockSize,
		session:   xid.New(),
	}
	for _, option := range options {
		option(h)
	}
	if h.blockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, h.blockSize)
	}
	h.info = p.Info()
	if h.info.Outputs <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOutputs, h.info.Name)
	}
	h.format = d.Format()
	if err := h.format.Validate(); err != nil {
		return nil, err
	}
	if h.logger == nil {
		h.logger = log.GetLogger()
	}
	h.logger = h.logger.WithField("session", h.session.String()).
		WithField("plugin", h.info.Name).
		WithField("device", h.format.Name)

	capacity := h.queueCapacity
	if capacity <= 0 {
		capacity = h.format.Channels * h.blockSize
	}
	h.events = midi.NewQueue(h.overflow, h.midiBacklog)
	h.audio = queue.New(capacity)
	h.callback = device.NewCallback(h.audio, h.underrun, h.format.Channels)
	taps := make([]runtime.Tap, 0, len(h.taps))
	for _, t := range h.taps {
		taps = append(taps, t)
	}
	h.loop = runtime.New(p, h.events, h.audio, runtime.Config{
		BlockSize:  h.blockSize,
		SampleRate: h.format.SampleRate,
		Inputs:     h.info.Inputs,
		Outputs:    h.info.Outputs,
		Channels:   h.format.Channels,
		Delivery:   h.delivery,
		Taps:       taps,
		Logger:     h.logger,
	})
	return h, nil
}

// Run initializes the plugin, connects MIDI input, starts the device
// stream and processes blocks until context is done or processing fails.
// Run can be called only once. Cancellation is not an error.
func (h *Host) Run(ctx context.Context) error {
	if h.ran || h.closed {
		return ErrInvalidState
	}
	h.ran = true
	h.logger.Infof("plugin: %v", h.info)
	h.logger.Infof("output: %v", h.format)
	h.logger.Infof("block size: %d queue: %d underrun: %v delivery: %v",
		h.blockSize, h.audio.Cap(), h.underrun, h.delivery)

	h.plugin.Init()
	h.plugin.SetSampleRate(float32(h.format.SampleRate))
	h.plugin.SetBlockSize(h.blockSize)
	h.plugin.Resume()
	h.resumed = true

	for _, t := range h.taps {
		if err := t.Start(h.format.SampleRate, h.format.Channels); err != nil {
			return fmt.Errorf("%w: %w", ErrTap, err)
		}
		h.tapsStarted++
	}

	if h.input != nil {
		stop, err := h.input.Listen(h.midiPort, midi.NewTranslator(h.events).Receive)
		if err != nil {
			return fmt.Errorf("listen midi port %d: %w", h.midiPort, err)
		}
		defer stop()
	}

	if err := h.device.Start(h.callback); err != nil {
		return fmt.Errorf("start device %s: %w", h.format.Name, err)
	}
	h.started = true

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.loop.Run(ctx)
	})
	if h.reportInterval > 0 {
		g.Go(func() error {
			h.report(ctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Errorf("processing failed: %v", err)
		return err
	}
	return nil
}

// report periodically logs the state of hand-off queues.
func (h *Host) report(ctx context.Context) {
	ticker := time.NewTicker(h.reportInterval)
	defer ticker.Stop()
	var dropped uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d := h.events.Dropped(); d > dropped {
				h.logger.Warnf("midi events dropped: %d", d-dropped)
				dropped = d
			}
			h.logger.Debugf("queue: %d/%d underruns: %d events pending: %d",
				h.audio.Len(), h.audio.Cap(), h.callback.Underruns(), h.events.Len())
		}
	}
}

// Close stops the device stream, closes taps and unloads the plugin, in
// that order. It must be called after Run returns.
func (h *Host) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	var errs closeErrors
	// release device callback if processing never started
	h.audio.Close()
	if h.started {
		if err := h.device.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop device: %w", err))
		}
	}
	if err := h.device.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}
	for _, t := range h.taps[:h.tapsStarted] {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tap: %w", err))
		}
	}
	if h.resumed {
		h.plugin.Suspend()
	}
	if err := h.plugin.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close plugin: %w", err))
	}
	return errs.ret()
}

// Session returns unique id of the host instance.
func (h *Host) Session() string {
	return h.session.String()
}

// Info returns plugin info.
func (h *Host) Info() plugin.Info {
	return h.info
}

// Format returns device format.
func (h *Host) Format() device.Format {
	return h.format
}

// Underruns returns number of device buffers padded with silence.
func (h *Host) Underruns() int64 {
	return h.callback.Underruns()
}

// Dropped returns number of MIDI events lost on overflow.
func (h *Host) Dropped() uint64 {
	return h.events.Dropped()
}
