// Package runtime drives the plugin in fixed-size blocks and feeds the
// audio queue.
package runtime

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"strings"

	"pipelined.dev/livehost/log"
	"pipelined.dev/livehost/metric"
	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/queue"
)

var (
	// ErrPlugin is returned when plugin fails to process a block or
	// events. It's fatal for the loop.
	ErrPlugin = errors.New("plugin failure")
	// ErrTap is returned when output tap fails.
	ErrTap = errors.New("tap failure")
)

// Delivery defines when pending events are delivered to the plugin.
type Delivery int

const (
	// DeliverAfterProcess drains events after the process call, so they
	// are applied to the next block.
	DeliverAfterProcess Delivery = iota
	// DeliverBeforeProcess drains events right before the process call.
	DeliverBeforeProcess
)

// ParseDelivery returns delivery mode by its name.
func ParseDelivery(s string) (Delivery, error) {
	switch strings.ToLower(s) {
	case "after":
		return DeliverAfterProcess, nil
	case "before":
		return DeliverBeforeProcess, nil
	}
	return 0, fmt.Errorf("unknown delivery mode: %q", s)
}

func (d Delivery) String() string {
	if d == DeliverBeforeProcess {
		return "before"
	}
	return "after"
}

// Plugin is a part of plugin contract used by the loop.
type Plugin interface {
	Process(in, out [][]float32) error
	ProcessEvents([]midi.Event) error
}

// Tap receives every interleaved block after it's queued.
type Tap interface {
	Write([]float32) error
}

// Config defines loop parameters.
type Config struct {
	BlockSize  int
	SampleRate int
	Inputs     int // plugin input channels.
	Outputs    int // plugin output channels.
	Channels   int // stream channels.
	Delivery   Delivery
	Taps       []Tap
	Logger     log.Logger
}

// Loop is the processing scheduler. It's the only producer of the audio
// queue, the only consumer of the events queue and the only goroutine
// that calls the plugin.
type Loop struct {
	plugin   Plugin
	events   *midi.Queue
	audio    *queue.Queue
	delivery Delivery
	taps     []Tap
	logger   log.Logger

	channels int
	inputs   [][]float32
	outputs  [][]float32
	block    []float32 // interleaved outputs.
	pending  []midi.Event

	meter     metric.ResetFunc
	delivered func(int64)
}

// New returns loop with pre-allocated buffers.
func New(p Plugin, events *midi.Queue, audio *queue.Queue, cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	l := &Loop{
		plugin:   p,
		events:   events,
		audio:    audio,
		delivery: cfg.Delivery,
		taps:     cfg.Taps,
		logger:   logger,
		channels: cfg.Channels,
		inputs:   channels(cfg.Inputs, cfg.BlockSize),
		outputs:  channels(cfg.Outputs, cfg.BlockSize),
		block:    make([]float32, cfg.Channels*cfg.BlockSize),
		pending:  make([]midi.Event, 0, 64),
	}
	l.meter = metric.Meter(l, cfg.SampleRate)
	l.delivered = metric.Counter(l, metric.EventCounter)
	return l
}

func channels(n, size int) [][]float32 {
	c := make([][]float32, n)
	for i := range c {
		c[i] = make([]float32, size)
	}
	return c
}

// Run processes blocks until context is done or plugin fails. It closes
// the audio queue when returns. Cancellation is not an error.
func (l *Loop) Run(ctx context.Context) error {
	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()
	defer l.audio.Close()

	measure := l.meter()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		measure(int64(len(l.block) / l.channels))
	}
}

// iterate processes one block and pushes it into the audio queue.
func (l *Loop) iterate(ctx context.Context) error {
	if l.delivery == DeliverBeforeProcess {
		if err := l.deliver(); err != nil {
			return err
		}
	}
	if err := l.process(); err != nil {
		return err
	}
	if l.delivery == DeliverAfterProcess {
		if err := l.deliver(); err != nil {
			return err
		}
	}

	l.interleave()
	for _, s := range l.block {
		if err := l.audio.Push(ctx, s); err != nil {
			return err
		}
	}
	for _, t := range l.taps {
		if err := t.Write(l.block); err != nil {
			return fmt.Errorf("%w: %w", ErrTap, err)
		}
	}
	return nil
}

func (l *Loop) process() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: process panic: %v", ErrPlugin, r)
		}
	}()
	for _, in := range l.inputs {
		clear(in)
	}
	if err := l.plugin.Process(l.inputs, l.outputs); err != nil {
		return fmt.Errorf("%w: process: %w", ErrPlugin, err)
	}
	return nil
}

// deliver drains all pending events and sends them to the plugin.
func (l *Loop) deliver() (err error) {
	l.pending = l.events.Drain(l.pending[:0])
	if len(l.pending) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: events panic: %v", ErrPlugin, r)
		}
	}()
	for _, e := range l.pending {
		l.logger.Debugf("midi event %v", e.Message)
	}
	if err := l.plugin.ProcessEvents(l.pending); err != nil {
		return fmt.Errorf("%w: events: %w", ErrPlugin, err)
	}
	l.delivered(int64(len(l.pending)))
	return nil
}

// interleave writes plugin outputs into the block in channel order.
// Stream channel c takes plugin output c modulo number of outputs.
func (l *Loop) interleave() {
	outputs := len(l.outputs)
	for c := 0; c < l.channels; c++ {
		out := l.outputs[c%outputs]
		for i, s := range out {
			l.block[i*l.channels+c] = s
		}
	}
}
