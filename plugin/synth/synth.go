// Package synth is a polyphonic sine synthesizer plugin.
package synth

import (
	"math"

	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/plugin"
)

const (
	voices = 16
	// attack and release ramps to avoid clicks.
	rampTime = 0.005
	gain     = 0.2
	allNotes = 123
)

type voice struct {
	note     uint8
	velocity float32
	phase    float64
	step     float64
	level    float32
	gate     bool
}

func (v *voice) active() bool {
	return v.gate || v.level > 0
}

// Synth generates sine waves for held notes.
type Synth struct {
	channels   int
	sampleRate float32
	ramp       float32
	voices     [voices]voice
}

// New returns synth with provided number of output channels.
func New(channels int) *Synth {
	return &Synth{
		channels:   channels,
		sampleRate: 44100,
		ramp:       1 / (44100 * rampTime),
	}
}

// Info implements plugin.Plugin.
func (s *Synth) Info() plugin.Info {
	return plugin.Info{
		Name:    "sine",
		Vendor:  "livehost",
		Outputs: s.channels,
	}
}

// Init implements plugin.Plugin.
func (s *Synth) Init() {}

// SetSampleRate implements plugin.Plugin.
func (s *Synth) SetSampleRate(rate float32) {
	s.sampleRate = rate
	s.ramp = 1 / (rate * rampTime)
}

// SetBlockSize implements plugin.Plugin.
func (s *Synth) SetBlockSize(int) {}

// Resume implements plugin.Plugin.
func (s *Synth) Resume() {}

// Suspend releases all voices.
func (s *Synth) Suspend() {
	s.voices = [voices]voice{}
}

// Close implements plugin.Plugin.
func (s *Synth) Close() error {
	return nil
}

// ProcessEvents handles note and all-notes-off messages.
func (s *Synth) ProcessEvents(events []midi.Event) error {
	for _, e := range events {
		switch {
		case e.IsNoteOn():
			s.noteOn(e.Message[1], e.Message[2])
		case e.IsNoteOff():
			s.noteOff(e.Message[1])
		case e.Status() == midi.ControlChange && e.Message[1] == allNotes:
			for i := range s.voices {
				s.voices[i].gate = false
			}
		}
	}
	return nil
}

func (s *Synth) noteOn(note, velocity uint8) {
	// retrigger the held note, or take a free voice, or steal the quietest one
	idx := -1
	for i := range s.voices {
		if s.voices[i].gate && s.voices[i].note == note {
			idx = i
			break
		}
		if idx < 0 && !s.voices[i].active() {
			idx = i
		}
	}
	if idx < 0 {
		idx = 0
		for i := range s.voices {
			if s.voices[i].level < s.voices[idx].level {
				idx = i
			}
		}
	}
	v := &s.voices[idx]
	if v.note != note {
		v.phase = 0
	}
	v.note = note
	v.velocity = float32(velocity) / 127
	v.step = 2 * math.Pi * Frequency(note) / float64(s.sampleRate)
	v.gate = true
}

func (s *Synth) noteOff(note uint8) {
	for i := range s.voices {
		if s.voices[i].gate && s.voices[i].note == note {
			s.voices[i].gate = false
		}
	}
}

// Process renders active voices into all output channels.
func (s *Synth) Process(_, out [][]float32) error {
	if len(out) == 0 {
		return nil
	}
	for i := range out[0] {
		var sum float32
		for j := range s.voices {
			v := &s.voices[j]
			if !v.active() {
				continue
			}
			if v.gate {
				v.level = min(v.level+s.ramp, 1)
			} else {
				v.level = max(v.level-s.ramp, 0)
			}
			sum += float32(math.Sin(v.phase)) * v.velocity * v.level * gain
			v.phase += v.step
			if v.phase >= 2*math.Pi {
				v.phase -= 2 * math.Pi
			}
		}
		for c := range out {
			out[c][i] = sum
		}
	}
	return nil
}

// Frequency returns equal temperament frequency of the note, A4 is 440Hz.
func Frequency(note uint8) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}
