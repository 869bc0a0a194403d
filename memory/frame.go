package memory

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	PageShift = 12
	PageSize  = 1 << PageShift // 4 KB
)

// Frame describes a physical memory page index.
type Frame uint64

// Address returns the physical address of the first byte of this Frame.
func (f Frame) Address() uint64 {
	return uint64(f) << PageShift
}

// FrameFromAddress returns the Frame containing the given physical address.
func FrameFromAddress(pa uint64) Frame {
	return Frame(pa >> PageShift)
}

var ErrOutOfMemory = errors.New("physical frame pool exhausted")

// FramePool owns a fixed number of physical frames. Free frames are kept on a
// stack so the most recently released frame is the next one handed out.
type FramePool struct {
	mem  []byte
	free []Frame
}

func NewFramePool(frames int) *FramePool {
	p := &FramePool{
		mem:  make([]byte, frames*PageSize),
		free: make([]Frame, 0, frames),
	}

	// Push in reverse so frame 0 is handed out first.
	for i := frames - 1; i >= 0; i-- {
		p.free = append(p.free, Frame(i))
	}

	return p
}

// AllocFrame returns a zeroed frame or ErrOutOfMemory.
func (p *FramePool) AllocFrame() (Frame, error) {
	if len(p.free) == 0 {
		return 0, ErrOutOfMemory
	}

	f := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	b := p.Bytes(f)
	for i := range b {
		b[i] = 0
	}

	return f, nil
}

// FreeFrame returns f to the pool. Releasing a frame twice is a caller bug
// and is not detected.
func (p *FramePool) FreeFrame(f Frame) {
	p.check(f)
	p.free = append(p.free, f)
}

// Bytes returns the backing storage of f.
func (p *FramePool) Bytes(f Frame) []byte {
	p.check(f)

	off := f.Address()
	return p.mem[off : off+PageSize : off+PageSize]
}

func (p *FramePool) Free() int {
	return len(p.free)
}

func (p *FramePool) Total() int {
	return len(p.mem) / PageSize
}

func (p *FramePool) check(f Frame) {
	if int(f) >= p.Total() {
		panic(fmt.Sprintf("memory: frame %d outside pool of %d frames", f, p.Total()))
	}
}
