package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/FlashLizard/os-pke-lab/config"
	"github.com/FlashLizard/os-pke-lab/kernel"
	clog "github.com/FlashLizard/os-pke-lab/log"
	"github.com/FlashLizard/os-pke-lab/loader"
	"github.com/FlashLizard/os-pke-lab/syscalls"
	"github.com/FlashLizard/os-pke-lab/tracing"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code, err := run(ctx, os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pke: %s\n", err)
		os.Exit(1)
	}

	os.Exit(code)
}

// run boots a kernel for the program named in args and returns the exit
// code of that program.
func run(ctx context.Context, args []string, console io.Writer) (int, error) {
	fs := pflag.NewFlagSet("pke", pflag.ContinueOnError)

	var (
		fConfig  = fs.StringP("config", "c", "", "YAML config file")
		fTrace   = fs.String("trace", "", "write syscall spans to this file")
		fQuantum = fs.Int("quantum", -1, "instructions per timer slice, 0 disables preemption")
		fLevel   = fs.String("log-level", "", "log level")
		fProcs   = fs.Int("max-procs", 0, "process table capacity")
	)

	if err := fs.Parse(args); err != nil {
		return 0, err
	}

	if fs.NArg() != 1 {
		return 0, errors.New("usage: pke [flags] program.s")
	}

	cfg := config.Default()
	if *fConfig != "" {
		var err error
		cfg, err = config.Load(*fConfig)
		if err != nil {
			return 0, err
		}
	}

	if fs.Changed("trace") {
		cfg.Trace = *fTrace
	}

	if *fQuantum >= 0 {
		cfg.Quantum = *fQuantum
	}

	if *fLevel != "" {
		cfg.LogLevel = *fLevel
	}

	if *fProcs > 0 {
		cfg.MaxProcs = *fProcs
	}

	clog.SetLevel(cfg.LogLevel)
	clog.EnableDebug()

	var cache *loader.LoaderCache
	if cfg.LoaderCache > 0 {
		cache = loader.NewLoaderCache(cfg.LoaderCache)
	}

	img, err := loader.NewLoader(cache).LoadFile(fs.Arg(0))
	if err != nil {
		return 0, err
	}

	k, err := kernel.NewKernel(cfg, console)
	if err != nil {
		return 0, err
	}

	if cfg.Trace != "" {
		if err := tracing.Init("pke", k.BootID.String(), cfg.Trace); err != nil {
			return 0, errors.Wrap(err, "starting tracing")
		}

		defer tracing.Shutdown(context.Background())
	}

	syscalls.Install(k)

	if _, err := k.Spawn(img); err != nil {
		return 0, err
	}

	if err := k.Run(ctx); err != nil {
		return 0, err
	}

	return k.ExitCode(), nil
}
