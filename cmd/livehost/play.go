package main

import (
	"context"
	"errors"
	_ "expvar"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pipelined.dev/livehost"
	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/device/oto"
	"pipelined.dev/livehost/device/portaudio"
	"pipelined.dev/livehost/internal/runtime"
	"pipelined.dev/livehost/log"
	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/midi/rtmidi"
	"pipelined.dev/livehost/plugin"
	"pipelined.dev/livehost/plugin/synth"
	"pipelined.dev/livehost/plugin/vst2"
	"pipelined.dev/livehost/record"
	"pipelined.dev/livehost/sample"
)

const (
	playCommandName = "play"

	backendPortaudio = "portaudio"
	backendOto       = "oto"
)

type playCommand struct {
	synth     bool
	inputs    int
	outputs   int
	port      int
	blockSize int
	queue     int
	backend   string
	format    string
	rate      int
	channels  int
	underrun  string
	deliver   string
	backlog   int
	overflow  string
	record    string
	bitDepth  int
	metrics   string
	report    time.Duration
}

// settings are parsed flag values.
type settings struct {
	format   sample.Format
	underrun device.Underrun
	delivery runtime.Delivery
	overflow midi.Overflow
}

func (cmd *playCommand) Name() string {
	return playCommandName
}

func (cmd *playCommand) Help() string {
	return "Play plugin with MIDI input (default)"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.synth, "synth", false, "use built-in sine synth instead of plugin")
	fs.IntVar(&cmd.inputs, "in", 2, "number of plugin input channels")
	fs.IntVar(&cmd.outputs, "out", 2, "number of plugin output channels")
	fs.IntVar(&cmd.port, "port", 0, "MIDI input port index, -1 runs without MIDI")
	fs.IntVar(&cmd.blockSize, "bs", livehost.DefaultBlockSize, "number of frames processed per plugin call")
	fs.IntVar(&cmd.queue, "queue", 0, "audio queue capacity in samples, 0 is one block")
	fs.StringVar(&cmd.backend, "backend", backendPortaudio, "audio backend: portaudio or oto")
	fs.StringVar(&cmd.format, "format", "f32", "device sample format: f32 or i16")
	fs.IntVar(&cmd.rate, "rate", 44100, "sample rate, oto only")
	fs.IntVar(&cmd.channels, "channels", 2, "number of device channels")
	fs.StringVar(&cmd.underrun, "underrun", "block", "device behaviour on empty queue: block or silence")
	fs.StringVar(&cmd.deliver, "deliver", "after", "deliver MIDI events after or before process call")
	fs.IntVar(&cmd.backlog, "midi-backlog", 0, "MIDI queue capacity, 0 is unbounded")
	fs.StringVar(&cmd.overflow, "overflow", "oldest", "drop oldest or newest MIDI events on overflow")
	fs.StringVar(&cmd.record, "record", "", "save output to wav file")
	fs.IntVar(&cmd.bitDepth, "bits", 16, "bit depth of recording: 16 or 32")
	fs.StringVar(&cmd.metrics, "metrics", "", "address to serve metrics at /debug/vars")
	fs.DurationVar(&cmd.report, "report", 0, "status logging interval, 0 disables it")
}

// parse validates flag values.
func (cmd *playCommand) parse() (settings, error) {
	var (
		s   settings
		err error
	)
	if s.format, err = sample.ParseFormat(cmd.format); err != nil {
		return s, err
	}
	if s.underrun, err = device.ParseUnderrun(cmd.underrun); err != nil {
		return s, err
	}
	if s.delivery, err = runtime.ParseDelivery(cmd.deliver); err != nil {
		return s, err
	}
	if s.overflow, err = midi.ParseOverflow(cmd.overflow); err != nil {
		return s, err
	}
	if cmd.backend != backendPortaudio && cmd.backend != backendOto {
		return s, fmt.Errorf("unknown backend: %q", cmd.backend)
	}
	if cmd.blockSize <= 0 {
		return s, fmt.Errorf("%w: %d", livehost.ErrInvalidBlockSize, cmd.blockSize)
	}
	return s, nil
}

func (cmd *playCommand) Run(args []string) error {
	if !cmd.synth && len(args) == 0 {
		return fmt.Errorf("%w: plugin path", errUsage)
	}
	s, err := cmd.parse()
	if err != nil {
		return err
	}
	logger := log.GetLogger()

	// resources are released in reverse order if host is not created
	var cleanup []func() error
	release := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			if err := cleanup[i](); err != nil {
				logger.Warnf("cleanup: %v", err)
			}
		}
	}

	p, err := cmd.openPlugin(args)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, p.Close)

	d, err := cmd.openDevice(s.format)
	if err != nil {
		release()
		return err
	}
	cleanup = append(cleanup, d.Close)

	in, err := cmd.openInput(logger)
	if err != nil {
		release()
		return err
	}
	if in != nil {
		defer in.Close()
	}

	options := []livehost.Option{
		livehost.WithBlockSize(cmd.blockSize),
		livehost.WithQueueCapacity(cmd.queue),
		livehost.WithUnderrun(s.underrun),
		livehost.WithDelivery(s.delivery),
		livehost.WithMIDIPort(cmd.port),
		livehost.WithMIDIBacklog(cmd.backlog, s.overflow),
		livehost.WithLogger(logger),
		livehost.WithReportInterval(cmd.report),
	}
	if cmd.record != "" {
		r, err := record.New(cmd.record, cmd.bitDepth)
		if err != nil {
			release()
			return err
		}
		options = append(options, livehost.WithTap(r))
		logger.Infof("recording to %s", r.Path())
	}

	h, err := livehost.New(p, d, in, options...)
	if err != nil {
		release()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cmd.metrics != "" {
		shutdown, err := serveMetrics(cmd.metrics)
		if err != nil {
			h.Close()
			return err
		}
		defer shutdown()
		logger.Infof("metrics: http://%s/debug/vars", cmd.metrics)
	}

	logger.Infof("session %s started, press Ctrl+C to stop", h.Session())
	runErr := h.Run(ctx)
	closeErr := h.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// openInput opens system MIDI driver and logs available ports. Negative
// port disables MIDI, then input is nil.
func (cmd *playCommand) openInput(logger log.Logger) (midi.Input, error) {
	if cmd.port < 0 {
		logger.Info("midi input disabled")
		return nil, nil
	}
	in, err := rtmidi.Open()
	if err != nil {
		return nil, err
	}
	ports, err := in.Ports()
	if err != nil {
		in.Close()
		return nil, err
	}
	for i, name := range ports {
		logger.Infof("midi port %d: %s", i, name)
	}
	return in, nil
}

func (cmd *playCommand) openPlugin(args []string) (plugin.Plugin, error) {
	if cmd.synth {
		return synth.New(cmd.outputs), nil
	}
	return vst2.Load(args[0], vst2.Channels{
		Inputs:  cmd.inputs,
		Outputs: cmd.outputs,
	})
}

func (cmd *playCommand) openDevice(f sample.Format) (device.Device, error) {
	switch cmd.backend {
	case backendOto:
		return oto.Open(oto.Config{
			SampleRate: cmd.rate,
			Channels:   cmd.channels,
			Sample:     f,
		})
	default:
		return portaudio.Open(portaudio.Config{
			Channels:        cmd.channels,
			Sample:          f,
			FramesPerBuffer: cmd.blockSize,
		})
	}
}

// serveMetrics exposes expvar handler registered on default mux.
func serveMetrics(addr string) (func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("serve metrics: %w", err)
	}
	srv := &http.Server{Handler: http.DefaultServeMux}
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.GetLogger().Errorf("metrics server: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
