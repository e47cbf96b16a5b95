package livehost

import (
	"time"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/internal/runtime"
	"pipelined.dev/livehost/log"
	"pipelined.dev/livehost/midi"
)

// Option configures the host.
type Option func(*Host)

// Delivery modes, see runtime package for details.
const (
	DeliverAfterProcess  = runtime.DeliverAfterProcess
	DeliverBeforeProcess = runtime.DeliverBeforeProcess
)

// WithBlockSize sets number of frames processed by plugin per call.
func WithBlockSize(size int) Option {
	return func(h *Host) {
		h.blockSize = size
	}
}

// WithQueueCapacity sets audio queue capacity in samples. Zero means one
// block of all stream channels.
func WithQueueCapacity(capacity int) Option {
	return func(h *Host) {
		h.queueCapacity = capacity
	}
}

// WithUnderrun sets device callback behaviour on empty queue.
func WithUnderrun(u device.Underrun) Option {
	return func(h *Host) {
		h.underrun = u
	}
}

// WithDelivery sets when events are delivered to the plugin.
func WithDelivery(d runtime.Delivery) Option {
	return func(h *Host) {
		h.delivery = d
	}
}

// WithMIDIPort selects MIDI input port index.
func WithMIDIPort(port int) Option {
	return func(h *Host) {
		h.midiPort = port
	}
}

// WithMIDIBacklog bounds MIDI hand-off queue. Zero capacity keeps it
// unbounded.
func WithMIDIBacklog(capacity int, overflow midi.Overflow) Option {
	return func(h *Host) {
		h.midiBacklog = capacity
		h.overflow = overflow
	}
}

// WithTap adds a tap that receives every output block.
func WithTap(t Tap) Option {
	return func(h *Host) {
		h.taps = append(h.taps, t)
	}
}

// WithLogger sets logger of the host.
func WithLogger(l log.Logger) Option {
	return func(h *Host) {
		h.logger = l
	}
}

// WithReportInterval enables periodic status logging.
func WithReportInterval(d time.Duration) Option {
	return func(h *Host) {
		h.reportInterval = d
	}
}
