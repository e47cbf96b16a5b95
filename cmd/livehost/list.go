package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pipelined.dev/livehost/device/portaudio"
	"pipelined.dev/livehost/midi/rtmidi"
	"pipelined.dev/livehost/plugin/vst2"
	"pipelined.dev/livehost/sample"
)

type listCommand struct {
	devices bool
	scan    pathList
}

// pathList is a flag of OS-specific list of paths.
type pathList []string

func (l *pathList) String() string {
	return strings.Join(*l, string(filepath.ListSeparator))
}

func (l *pathList) Set(value string) error {
	*l = append(*l, filepath.SplitList(value)...)
	return nil
}

func (cmd *listCommand) Name() string {
	return "list"
}

func (cmd *listCommand) Help() string {
	return "Show MIDI input ports, plugins and default output device"
}

func (cmd *listCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.devices, "devices", true, "show default output device")
	fs.Var(&cmd.scan, "scan", "additional paths to scan for plugins")
}

func (cmd *listCommand) Run([]string) error {
	in, err := rtmidi.Open()
	if err != nil {
		return err
	}
	defer in.Close()
	ports, err := in.Ports()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "MIDI input ports:")
	for i, name := range ports {
		fmt.Fprintf(os.Stdout, "\t%d: %s\n", i, name)
	}
	fmt.Fprint(os.Stdout, vst2.Scan(cmd.scan...))

	if !cmd.devices {
		return nil
	}
	d, err := portaudio.Open(portaudio.Config{Sample: sample.Float32})
	if err != nil {
		return err
	}
	defer d.Close()
	fmt.Fprintf(os.Stdout, "Default output device:\n\t%v\n", d.Format())
	return nil
}
