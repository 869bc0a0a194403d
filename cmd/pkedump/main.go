package main

import (
	"fmt"
	"io"
	"os"

	"github.com/FlashLizard/os-pke-lab/loader"
	"github.com/spf13/pflag"
)

var fSymbols = pflag.BoolP("symbols", "s", false, "only list function symbols")

func main() {
	pflag.Parse()

	if pflag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: pkedump [-s] program.s...\n")
		os.Exit(2)
	}

	for _, path := range pflag.Args() {
		if err := dump(os.Stdout, path, *fSymbols); err != nil {
			fmt.Fprintf(os.Stderr, "pkedump: %s\n", err)
			os.Exit(1)
		}
	}
}

func dump(w io.Writer, path string, symbolsOnly bool) error {
	img, err := loader.NewLoader(nil).LoadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: entry %#x\n", img.Name, img.Entry)

	if symbolsOnly {
		for _, sym := range img.Symbols {
			fmt.Fprintf(w, "%#x %s size=%d\n", sym.Start, sym.Name, sym.Size)
		}

		return nil
	}

	return img.Dump(w)
}
