package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

type config struct {
	args   []string
	output io.Writer
}

type command interface {
	Name() string
	Help() string
	Run(args []string) error
	Register(*flag.FlagSet)
}

// errUsage is returned by commands when required arguments are missing.
var errUsage = errors.New("missing required argument")

func (config *config) run() int {
	cmdName, args := parseArgs(config.args)
	if cmdName == "" {
		config.printUsage()
		return errorExitCode
	}

	cmd := find(cmdName)
	if cmd == nil {
		// plugin path without command name means play
		cmd, args = find(playCommandName), config.args[1:]
	}
	flags := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	flags.SetOutput(config.output)
	cmd.Register(flags)
	if err := flags.Parse(args); err != nil {
		return errorExitCode
	}
	if err := cmd.Run(flags.Args()); err != nil {
		if errors.Is(err, errUsage) {
			config.printUsage()
			fmt.Fprintln(config.output)
			flags.PrintDefaults()
			return errorExitCode
		}
		fmt.Fprintf(config.output, "Command failed: %v\n", err)
		return errorExitCode
	}
	return successExitCode
}

var (
	successExitCode = 0
	errorExitCode   = 1
	commands        = []command{&playCommand{}, &listCommand{}}
)

func main() {
	c := config{
		args:   os.Args,
		output: os.Stderr,
	}
	os.Exit(c.run())
}

func find(name string) command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func (config *config) printUsage() {
	fmt.Fprintln(config.output, "Livehost plays a plugin driven by MIDI input")
	fmt.Fprintln(config.output)
	fmt.Fprintln(config.output, "Usage: livehost [play] [flags] <path/to/plugin>")
	fmt.Fprintln(config.output, "       livehost <command> [flags]")
	fmt.Fprintln(config.output)
	fmt.Fprintln(config.output, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(config.output, "\t%s\t%s\n", cmd.Name(), cmd.Help())
	}
}
