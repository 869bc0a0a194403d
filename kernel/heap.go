package kernel

import (
	"github.com/FlashLizard/os-pke-lab/memory"
	"github.com/pkg/errors"
)

const heapPerms = memory.FlagRead | memory.FlagWrite | memory.FlagUser

// AllocatePage maps a fresh frame into p's heap and returns its address.
// The most recently freed page is reused before the heap grows.
func (k *Kernel) AllocatePage(p *Process) (uint64, error) {
	h := &p.Heap

	if n := len(h.Free); n > 0 {
		va := h.Free[n-1]

		if _, err := p.Mem.MapPage(va, heapPerms); err != nil {
			return 0, err
		}

		h.Free = h.Free[:n-1]

		k.L.Trace("heap-reuse", "pid", p.Pid, "va", va)
		return va, nil
	}

	if h.Pages() >= k.cfg.MaxHeapPages {
		return 0, errors.Wrapf(ErrHeapExhausted, "pid %d at %d pages", p.Pid, h.Pages())
	}

	va := h.Top

	if _, err := p.Mem.MapPage(va, heapPerms); err != nil {
		return 0, err
	}

	h.Top += memory.PageSize

	if seg, ok := p.Mem.Segment(memory.SegHeap); ok {
		seg.Pages++
	}

	k.L.Trace("heap-grow", "pid", p.Pid, "va", va, "top", h.Top)

	return va, nil
}

// FreePage unmaps a heap page of p, releasing its frame, and remembers the
// address for the next AllocatePage.
func (k *Kernel) FreePage(p *Process, va uint64) error {
	h := &p.Heap

	if va%memory.PageSize != 0 || va < h.Base || va >= h.Top {
		return errors.Wrapf(ErrInvalidArgument, "va %#x is not a heap page", va)
	}

	if len(h.Free) >= k.cfg.MaxHeapPages {
		return errors.Wrapf(ErrInvalidArgument, "free list of pid %d is full", p.Pid)
	}

	if err := p.Mem.UnmapPage(va); err != nil {
		return errors.Wrapf(ErrInvalidArgument, "va %#x: %s", va, err)
	}

	h.Free = append(h.Free, va)

	k.L.Trace("heap-free", "pid", p.Pid, "va", va)

	return nil
}
