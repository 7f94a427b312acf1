// PVM CLI - loads a packed executable image and steps it to completion
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/ma5ter/pvm/config"
	"github.com/ma5ter/pvm/vm"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("pvm")

func main() {
	traceFlag := flag.Bool("trace", false, "Emit one debug line per executed instruction")
	tickFlag := flag.Int("tick-us", -1, "Inter-step delay in microseconds (emulates MCU speed)")
	disasm := flag.Bool("d", false, "Disassemble the image and exit")
	verbosity := flag.Int("verbosity", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pvm [options] [image]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a packed executable image until it returns or fails.\n")
		fmt.Fprintf(os.Stderr, "The image path may come from a pvm.toml in the current or a parent directory.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pvm blink.pvm           # Run an image\n")
		fmt.Fprintf(os.Stderr, "  pvm -trace blink.pvm    # Run with per-step trace on stderr\n")
		fmt.Fprintf(os.Stderr, "  pvm -d blink.pvm        # Show the decoded code section\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	path := flag.Arg(0)
	if path == "" && cfg != nil {
		path = cfg.ImagePath()
	}
	if path == "" {
		flag.Usage()
		os.Exit(1)
	}

	image, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}
	exe, err := vm.NewExe(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid exe: %v\n", err)
		os.Exit(1)
	}
	log.Infof("loaded %s: %s", path, exe)

	fmt.Printf("VM_VERSION: %d\nFUNCTIONS: %d\nCONSTANTS: %d\n",
		vm.Version, exe.FunctionsCount(), exe.ConstantsCount())

	if *disasm {
		fmt.Print(vm.Disassemble(exe.Code()))
		return
	}

	m := vm.New(exe, builtinTable())
	if cfg != nil {
		m.SetBinding(cfg.Run.Binding)
	}

	if tracer := traceWriter(*traceFlag, cfg); tracer != nil {
		m.SetTracer(vm.NewTracer(tracer))
	}

	tick := tickDuration(*tickFlag, cfg)
	var errno vm.Errno
	for {
		if errno = m.Step(); errno != vm.NoError {
			break
		}
		time.Sleep(tick)
	}

	if errno == vm.MainReturn {
		fmt.Printf("\nEND\n")
		log.Info("program returned")
		return
	}
	fmt.Printf("\nERROR: %s PC=%d\n", errno, m.PC()-1)
	m.Reset()
	os.Exit(1)
}

// traceWriter resolves the trace destination from the flag and the
// configuration; nil disables tracing.
func traceWriter(enabled bool, cfg *config.Config) io.Writer {
	output := "stderr"
	if cfg != nil {
		enabled = enabled || cfg.Trace.Enabled
		output = cfg.Trace.Output
	}
	if !enabled {
		return nil
	}
	switch output {
	case "stderr", "":
		return os.Stderr
	case "stdout":
		return os.Stdout
	default:
		f, err := os.Create(output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open trace output: %v\n", err)
			return os.Stderr
		}
		return f
	}
}

func tickDuration(flagUS int, cfg *config.Config) time.Duration {
	us := config.DefaultTickUS
	if cfg != nil {
		us = cfg.Run.TickUS
	}
	if flagUS >= 0 {
		us = flagUS
	}
	return time.Duration(us) * time.Microsecond
}
