// Package mock provides mocks for host collaborators and allows to
// execute integration tests without plugins, devices and MIDI drivers.
package mock

import (
	"errors"
	"sync"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/plugin"
)

// Received is an event delivered to the plugin. Call is the number of
// the Process call that will see the event, starting from 1.
type Received struct {
	Call  int
	Event midi.Event
}

// Plugin mocks plugin.Plugin. Value returns output sample for the
// channel and frame of the call, zero value produces silence.
type Plugin struct {
	Name           string
	Inputs         int
	Outputs        int
	Value          func(call, channel, frame int) float32
	ErrorOnProcess error
	ErrorOnEvents  error
	ErrorOnClose   error
	PanicOnCall    int
	// OnProcess is called inside Process, before outputs are filled.
	OnProcess func(call int)

	mu          sync.Mutex
	calls       int
	received    []Received
	sampleRate  float32
	blockSize   int
	Initialized bool
	Resumed     bool
	Suspended   bool
	Closed      bool
}

// Info implements plugin.Plugin.
func (m *Plugin) Info() plugin.Info {
	return plugin.Info{
		Name:    m.Name,
		Vendor:  "mock",
		Inputs:  m.Inputs,
		Outputs: m.Outputs,
	}
}

// Init implements plugin.Plugin.
func (m *Plugin) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Initialized = true
}

// SetSampleRate implements plugin.Plugin.
func (m *Plugin) SetSampleRate(rate float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sampleRate = rate
}

// SetBlockSize implements plugin.Plugin.
func (m *Plugin) SetBlockSize(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockSize = size
}

// Resume implements plugin.Plugin.
func (m *Plugin) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resumed = true
}

// Suspend implements plugin.Plugin.
func (m *Plugin) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Suspended = true
}

// Close implements plugin.Plugin.
func (m *Plugin) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.ErrorOnClose
}

// Process implements plugin.Plugin.
func (m *Plugin) Process(in, out [][]float32) error {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.mu.Unlock()

	if m.OnProcess != nil {
		m.OnProcess(call)
	}
	if m.PanicOnCall > 0 && call == m.PanicOnCall {
		panic("mock plugin panic")
	}
	if m.ErrorOnProcess != nil {
		return m.ErrorOnProcess
	}
	for c := range out {
		for i := range out[c] {
			if m.Value != nil {
				out[c][i] = m.Value(call, c, i)
			} else {
				out[c][i] = 0
			}
		}
	}
	return nil
}

// ProcessEvents implements plugin.Plugin.
func (m *Plugin) ProcessEvents(events []midi.Event) error {
	if m.ErrorOnEvents != nil {
		return m.ErrorOnEvents
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		m.received = append(m.received, Received{Call: m.calls + 1, Event: e})
	}
	return nil
}

// Calls returns number of Process calls.
func (m *Plugin) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Received returns a copy of delivered events.
func (m *Plugin) Received() []Received {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Received(nil), m.received...)
}

// SampleRate returns configured sample rate.
func (m *Plugin) SampleRate() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

// BlockSize returns configured block size.
func (m *Plugin) BlockSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockSize
}

// Device mocks device.Device. Once started it pulls buffers of
// FramesPerBuffer frames on its own goroutine, like a hardware callback,
// and captures up to Capture samples.
type Device struct {
	DeviceFormat    device.Format
	FramesPerBuffer int
	Capture         int
	ErrorOnStart    error
	ErrorOnStop     error
	ErrorOnClose    error

	mu       sync.Mutex
	captured []float32
	full     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	Started  bool
	Stopped  bool
	Closed   bool
}

// Format implements device.Device.
func (m *Device) Format() device.Format {
	return m.DeviceFormat
}

// Start implements device.Device.
func (m *Device) Start(cb *device.Callback) error {
	if m.ErrorOnStart != nil {
		return m.ErrorOnStart
	}
	m.mu.Lock()
	m.Started = true
	m.full = make(chan struct{})
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	if m.Capture == 0 {
		close(m.full)
	}
	m.mu.Unlock()

	frames := m.FramesPerBuffer
	if frames <= 0 {
		frames = 64
	}
	buf := make([]float32, frames*m.DeviceFormat.Channels)
	go func() {
		defer close(m.done)
		for {
			select {
			case <-m.stop:
				return
			default:
			}
			cb.FillFloat32(buf)
			m.capture(buf)
		}
	}()
	return nil
}

func (m *Device) capture(buf []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.captured) >= m.Capture {
		return
	}
	left := m.Capture - len(m.captured)
	if left > len(buf) {
		left = len(buf)
	}
	m.captured = append(m.captured, buf[:left]...)
	if len(m.captured) == m.Capture {
		close(m.full)
	}
}

// Full is closed when Capture samples are pulled.
func (m *Device) Full() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}

// Captured returns a copy of captured samples.
func (m *Device) Captured() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float32(nil), m.captured...)
}

// Stop implements device.Device.
func (m *Device) Stop() error {
	m.mu.Lock()
	m.Stopped = true
	started := m.stop != nil
	m.mu.Unlock()
	if started {
		close(m.stop)
		<-m.done
		m.stop = nil
	}
	return m.ErrorOnStop
}

// Close implements device.Device.
func (m *Device) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.ErrorOnClose
}

// ErrNotListening is returned by Input.Send if nobody listens.
var ErrNotListening = errors.New("mock input is not listening")

// Input mocks midi.Input. Send simulates driver thread delivery.
type Input struct {
	PortNames     []string
	ErrorOnPorts  error
	ErrorOnListen error

	mu      sync.Mutex
	port    int
	fn      func([]byte)
	Stopped bool
	Closed  bool
}

// Ports implements midi.Input.
func (m *Input) Ports() ([]string, error) {
	return m.PortNames, m.ErrorOnPorts
}

// Listen implements midi.Input.
func (m *Input) Listen(port int, fn func([]byte)) (func(), error) {
	if m.ErrorOnListen != nil {
		return nil, m.ErrorOnListen
	}
	if port < 0 || port >= len(m.PortNames) {
		return nil, midi.ErrNoPort
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.port = port
	m.fn = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.fn = nil
		m.Stopped = true
	}, nil
}

// Send delivers raw message to the listener.
func (m *Input) Send(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fn == nil {
		return ErrNotListening
	}
	m.fn(b)
	return nil
}

// Port returns port the input listens to.
func (m *Input) Port() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port
}

// Close implements midi.Input.
func (m *Input) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
