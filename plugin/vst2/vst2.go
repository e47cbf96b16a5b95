// Package vst2 loads VST2 plugins from shared libraries.
package vst2

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unsafe"

	"pipelined.dev/audio/vst2"
	"pipelined.dev/signal"

	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/plugin"
)

// Plugin represents loaded vst2 plugin instance.
type Plugin struct {
	vst    *vst2.VST
	plugin *vst2.Plugin
	info   plugin.Info

	in, out    vst2.FloatBuffer
	hasBuffers bool
	midi       []vst2.MIDIEvent
	events     []vst2.Event

	// state reported to the plugin through host callback.
	sampleRate signal.Frequency
	blockSize  int
	timeInfo   vst2.TimeInfo
}

const (
	defaultTempo = 120
	beatsPerBar  = 4
)

// Channels declares plugin I/O layout.
type Channels struct {
	Inputs  int
	Outputs int
}

// Load opens vst2 library and creates plugin instance.
func Load(path string, ch Channels) (*Plugin, error) {
	if ch.Outputs <= 0 {
		return nil, fmt.Errorf("load %s: plugin must have outputs", path)
	}
	v, err := vst2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	p := &Plugin{
		vst: v,
		info: plugin.Info{
			Name:    strings.TrimSuffix(filepath.Base(path), FileExtension()),
			Vendor:  "vst2",
			Inputs:  ch.Inputs,
			Outputs: ch.Outputs,
		},
	}
	p.plugin = v.Plugin(p.host().Callback())
	return p, nil
}

// host answers plugin queries about sample rate, block size and time.
func (p *Plugin) host() vst2.Host {
	return vst2.Host{
		GetSampleRate: func() signal.Frequency {
			return p.sampleRate
		},
		GetBufferSize: func() int {
			return p.blockSize
		},
		GetProcessLevel: func() vst2.ProcessLevel {
			return vst2.ProcessLevelRealtime
		},
		GetTimeInfo: p.transport,
	}
}

// transport returns time info. Host has no sequencer, so position only
// advances with processed blocks at constant tempo.
func (p *Plugin) transport() *vst2.TimeInfo {
	samplesPerBeat := 60 / float64(defaultTempo) * float64(p.sampleRate)
	ppqPos := 0.0
	if samplesPerBeat > 0 {
		ppqPos = p.timeInfo.SamplePos / samplesPerBeat
	}
	p.timeInfo.SampleRate = float64(p.sampleRate)
	p.timeInfo.NanoSeconds = float64(time.Now().UnixNano())
	p.timeInfo.Tempo = defaultTempo
	p.timeInfo.PpqPos = ppqPos
	p.timeInfo.BarStartPos = float64(int(ppqPos/beatsPerBar) * beatsPerBar)
	p.timeInfo.TimeSigNumerator = beatsPerBar
	p.timeInfo.TimeSigDenominator = 4
	p.timeInfo.Flags = vst2.TransportPlaying | vst2.NanosValid | vst2.PpqPosValid |
		vst2.TempoValid | vst2.BarsValid | vst2.TimeSigValid
	return &p.timeInfo
}

// Info implements plugin.Plugin.
func (p *Plugin) Info() plugin.Info {
	return p.info
}

// Init opens the plugin.
func (p *Plugin) Init() {
	p.plugin.Start()
}

// SetSampleRate implements plugin.Plugin.
func (p *Plugin) SetSampleRate(rate float32) {
	p.sampleRate = signal.Frequency(rate)
	p.plugin.SetSampleRate(p.sampleRate)
}

// SetBlockSize sets plugin block size and allocates process buffers.
func (p *Plugin) SetBlockSize(size int) {
	p.blockSize = size
	p.plugin.SetBufferSize(size)
	p.free()
	p.in = vst2.NewFloatBuffer(p.info.Inputs, size)
	p.out = vst2.NewFloatBuffer(p.info.Outputs, size)
	p.hasBuffers = true
}

// Resume implements plugin.Plugin.
func (p *Plugin) Resume() {
	p.plugin.Resume()
}

// Suspend implements plugin.Plugin.
func (p *Plugin) Suspend() {
	p.plugin.Suspend()
}

// Process copies inputs into plugin buffers, processes them and copies
// plugin outputs back.
func (p *Plugin) Process(in, out [][]float32) error {
	if !p.hasBuffers {
		return fmt.Errorf("%s: block size is not set", p.info.Name)
	}
	for c := 0; c < p.info.Inputs && c < len(in); c++ {
		copy(p.in.Channel(c), in[c])
	}
	p.plugin.ProcessFloat(p.in, p.out)
	for c := 0; c < p.info.Outputs && c < len(out); c++ {
		copy(out[c], p.out.Channel(c))
	}
	p.timeInfo.SamplePos += float64(p.blockSize)
	return nil
}

// ProcessEvents sends MIDI events to the plugin. Events container
// references Go values, they are kept in reused slices until dispatch
// returns.
func (p *Plugin) ProcessEvents(events []midi.Event) error {
	if len(events) == 0 {
		return nil
	}
	if cap(p.midi) < len(events) {
		p.midi = make([]vst2.MIDIEvent, len(events))
	}
	p.midi = p.midi[:len(events)]
	p.events = p.events[:0]
	for i, e := range events {
		p.midi[i] = MIDIEvent(e)
		p.events = append(p.events, &p.midi[i])
	}
	ptr := vst2.Events(p.events...)
	defer ptr.Free()
	p.plugin.Dispatch(vst2.PlugProcessEvents, 0, 0, unsafe.Pointer(ptr), 0)
	return nil
}

// MIDIEvent converts event into vst2 representation.
func MIDIEvent(e midi.Event) vst2.MIDIEvent {
	me := vst2.MIDIEvent{
		Data:            e.Message,
		DeltaFrames:     e.DeltaFrames,
		NoteLength:      e.NoteLength,
		NoteOffset:      e.NoteOffset,
		Detune:          uint8(e.Detune),
		NoteOffVelocity: e.NoteOffVelocity,
	}
	if e.Live {
		me.Flags = vst2.MIDIEventRealtime
	}
	return me
}

// Close releases buffers, closes plugin and unloads the library.
func (p *Plugin) Close() error {
	p.free()
	p.plugin.Close()
	return p.vst.Close()
}

func (p *Plugin) free() {
	if !p.hasBuffers {
		return
	}
	p.in.Free()
	p.out.Free()
	p.hasBuffers = false
}

// FileExtension returns shared library extension of the platform.
func FileExtension() string {
	switch runtime.GOOS {
	case "darwin":
		return ".vst"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}
