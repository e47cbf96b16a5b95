package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/log"
	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/sample"
)

func TestInit(t *testing.T) {
	// check if commands are registered
	assert.Equal(t, 2, len(commands))
	assert.NotNil(t, find(playCommandName))
	assert.NotNil(t, find("list"))
	assert.Nil(t, find("process"))
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		usage bool
	}{
		{
			name:  "no arguments",
			args:  []string{"livehost"},
			usage: true,
		},
		{
			name:  "play without plugin",
			args:  []string{"livehost", "play"},
			usage: true,
		},
		{
			name:  "flags without plugin",
			args:  []string{"livehost", "-bs", "512"},
			usage: true,
		},
		{
			name: "unknown flag",
			args: []string{"livehost", "play", "-unknown", "plugin.so"},
		},
		{
			name: "invalid block size",
			args: []string{"livehost", "-bs", "0", "plugin.so"},
		},
		{
			name: "invalid underrun",
			args: []string{"livehost", "-underrun", "wait", "plugin.so"},
		},
		{
			name: "invalid backend",
			args: []string{"livehost", "-backend", "alsa", "-synth"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			c := config{args: test.args, output: &out}
			assert.Equal(t, errorExitCode, c.run())
			if test.usage {
				assert.Contains(t, out.String(), "Usage: livehost")
			}
		})
	}
}

func TestPlayParse(t *testing.T) {
	cmd := &playCommand{
		format:    "i16",
		underrun:  "silence",
		deliver:   "before",
		overflow:  "newest",
		backend:   backendOto,
		blockSize: 128,
	}
	s, err := cmd.parse()
	assert.NoError(t, err)
	assert.Equal(t, sample.Int16, s.format)
	assert.Equal(t, device.UnderrunSilence, s.underrun)
	assert.Equal(t, "before", s.delivery.String())
	assert.Equal(t, midi.DropNewest, s.overflow)

	cmd.format = "u8"
	_, err = cmd.parse()
	assert.ErrorIs(t, err, sample.ErrUnknownFormat)
}

func TestPathList(t *testing.T) {
	var l pathList
	assert.NoError(t, l.Set("a"))
	assert.NoError(t, l.Set(strings.Join([]string{"b", "c"}, string(filepath.ListSeparator))))
	assert.Equal(t, pathList{"a", "b", "c"}, l)
	assert.Equal(t, strings.Join([]string{"a", "b", "c"}, string(filepath.ListSeparator)), l.String())
}

func TestOpenInputDisabled(t *testing.T) {
	cmd := &playCommand{port: -1}
	in, err := cmd.openInput(log.Discard())
	assert.NoError(t, err)
	assert.Nil(t, in)
}
