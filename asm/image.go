package asm

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/FlashLizard/os-pke-lab/exec"
)

// Image is an assembled program ready to be placed into an address space.
type Image struct {
	Name string

	TextBase uint64
	Text     []byte

	DataBase uint64
	Data     []byte

	Entry   uint64
	Symbols SymbolTable
	Labels  map[string]uint64
}

type Symbol struct {
	Name  string
	Start uint64
	Size  uint64
}

// SymbolTable is sorted by start address.
type SymbolTable []Symbol

// Lookup returns the function whose range contains addr.
func (s SymbolTable) Lookup(addr uint64) (Symbol, bool) {
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Start > addr
	})

	if i == 0 {
		return Symbol{}, false
	}

	sym := s[i-1]
	if addr >= sym.Start+sym.Size {
		return Symbol{}, false
	}

	return sym, true
}

// Instructions decodes the text section.
func (img *Image) Instructions() []exec.Instr {
	out := make([]exec.Instr, 0, len(img.Text)/exec.InstrSize)

	for off := 0; off+exec.InstrSize <= len(img.Text); off += exec.InstrSize {
		out = append(out, exec.Decode(img.Text[off:]))
	}

	return out
}

// Dump writes sections, symbols and a disassembly of the text section.
func (img *Image) Dump(w io.Writer) error {
	fmt.Fprintf(w, "\n[sections]\n")
	tw := tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)
	fmt.Fprintf(tw, ".text\t%#x\tsize=%d\n", img.TextBase, len(img.Text))
	fmt.Fprintf(tw, ".data\t%#x\tsize=%d\n", img.DataBase, len(img.Data))
	fmt.Fprintf(tw, "entry\t%#x\t\n", img.Entry)
	tw.Flush()

	fmt.Fprintf(w, "\n[symbols]\n")
	tw = tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)
	for _, sym := range img.Symbols {
		fmt.Fprintf(tw, "%#x\t%s\tsize=%d\n", sym.Start, sym.Name, sym.Size)
	}
	tw.Flush()

	byAddr := make(map[uint64]string)
	for name, addr := range img.Labels {
		if addr >= img.TextBase && addr < img.TextBase+uint64(len(img.Text)) {
			byAddr[addr] = name
		}
	}

	fmt.Fprintf(w, "\n[code]\n")
	tw = tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)
	for i, in := range img.Instructions() {
		addr := img.TextBase + uint64(i*exec.InstrSize)
		if name, ok := byAddr[addr]; ok {
			fmt.Fprintf(tw, "%s:\t\t\n", name)
		}

		fmt.Fprintf(tw, "  %#06x\t%s\t\n", addr, in)
	}

	return tw.Flush()
}
