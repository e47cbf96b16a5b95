// Package rtmidi provides MIDI input backed by RtMidi driver.
package rtmidi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"pipelined.dev/livehost/midi"
)

// Input enumerates system MIDI input ports and listens to one of them.
type Input struct {
	driver *rtmididrv.Driver
}

// Open initializes RtMidi driver.
func Open() (*Input, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("open rtmidi driver: %w", err)
	}
	return &Input{driver: drv}, nil
}

// Ports returns names of available input ports in driver order.
func (i *Input) Ports() ([]string, error) {
	ins, err := i.driver.Ins()
	if err != nil {
		return nil, err
	}
	return names(ins), nil
}

func names(ins []drivers.In) []string {
	s := make([]string, 0, len(ins))
	for _, in := range ins {
		s = append(s, in.String())
	}
	return s
}

// Listen opens the port and calls fn on the driver thread for every
// message received.
func (i *Input) Listen(port int, fn func([]byte)) (func(), error) {
	ins, err := i.driver.Ins()
	if err != nil {
		return nil, err
	}
	if port < 0 || port >= len(ins) {
		return nil, fmt.Errorf("%w: %d of %d", midi.ErrNoPort, port, len(ins))
	}
	stop, err := gomidi.ListenTo(ins[port], func(msg gomidi.Message, _ int32) {
		fn(msg.Bytes())
	})
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", ins[port], err)
	}
	return func() {
		stop()
		ins[port].Close()
	}, nil
}

// Close closes the driver and all opened ports.
func (i *Input) Close() error {
	return i.driver.Close()
}
