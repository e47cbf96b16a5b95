// Package plugin defines the contract of audio plugins driven by the host.
package plugin

import (
	"fmt"

	"pipelined.dev/livehost/midi"
)

// Info describes plugin I/O.
type Info struct {
	Name    string
	Vendor  string
	Inputs  int
	Outputs int
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s) in: %d out: %d", i.Name, i.Vendor, i.Inputs, i.Outputs)
}

// Plugin is an audio processing unit that consumes MIDI events and
// produces audio blocks. Init, configuration and Resume are called once
// before processing. Process and ProcessEvents are always called from the
// same goroutine.
type Plugin interface {
	Info() Info
	Init()
	SetSampleRate(float32)
	SetBlockSize(int)
	Resume()
	Suspend()
	// Process fills outputs with one block. Inputs and outputs have one
	// slice per channel, all of block size.
	Process(in, out [][]float32) error
	// ProcessEvents delivers events for the next Process call. Slice is
	// reused by the caller and must not be retained.
	ProcessEvents([]midi.Event) error
	Close() error
}
