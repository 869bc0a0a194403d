package memory

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// SegmentKind names a contiguous virtual range of a process.
type SegmentKind int

const (
	SegCode SegmentKind = iota
	SegData
	SegHeap
	SegStack
)

func (k SegmentKind) String() string {
	switch k {
	case SegCode:
		return "code"
	case SegData:
		return "data"
	case SegHeap:
		return "heap"
	case SegStack:
		return "stack"
	default:
		return "unknown"
	}
}

type Segment struct {
	Kind  SegmentKind
	Start uint64
	Pages int
	Perms PageTableEntryFlag
}

func (s *Segment) End() uint64 {
	return s.Start + uint64(s.Pages)*PageSize
}

func (s *Segment) Contains(va uint64) bool {
	return va >= s.Start && va < s.End()
}

var (
	ErrInvalidMemoryAccess = errors.New("invalid memory access")
	ErrProtection          = errors.New("access violates page permissions")
	ErrBadRegionRequest    = errors.New("bad region request")
)

const tlbEntries = 64

type tlbEntry struct {
	frame Frame
	flags PageTableEntryFlag
}

// VirtualMemory is the address space of one process: a page table plus the
// segments that describe it. All frames it maps are owned by it.
type VirtualMemory struct {
	pool     *FramePool
	pt       *PageTable
	segments []*Segment

	tlb *lru.Cache
}

func NewVirtualMemory(pool *FramePool) (*VirtualMemory, error) {
	pt, err := NewPageTable(pool)
	if err != nil {
		return nil, err
	}

	tlb, err := lru.New(tlbEntries)
	if err != nil {
		pt.Destroy()
		return nil, err
	}

	return &VirtualMemory{
		pool: pool,
		pt:   pt,
		tlb:  tlb,
	}, nil
}

func (vm *VirtualMemory) PageTable() *PageTable {
	return vm.pt
}

func (vm *VirtualMemory) Segments() []*Segment {
	return vm.segments
}

func (vm *VirtualMemory) Segment(kind SegmentKind) (*Segment, bool) {
	for _, seg := range vm.segments {
		if seg.Kind == kind {
			return seg, true
		}
	}

	return nil, false
}

func (vm *VirtualMemory) FindSegment(va uint64) (*Segment, bool) {
	for _, seg := range vm.segments {
		if seg.Contains(va) {
			return seg, true
		}
	}

	return nil, false
}

// MapSegment records a new segment and backs each of its pages with a fresh
// frame. On failure every page mapped by this call is released again.
func (vm *VirtualMemory) MapSegment(kind SegmentKind, start uint64, pages int, perms PageTableEntryFlag) (*Segment, error) {
	if PageOffset(start) != 0 || pages < 0 {
		return nil, errors.Wrapf(ErrBadRegionRequest, "start=%#x pages=%d", start, pages)
	}

	if _, ok := vm.Segment(kind); ok {
		return nil, errors.Wrapf(ErrBadRegionRequest, "segment %s already present", kind)
	}

	for i := 0; i < pages; i++ {
		va := start + uint64(i)*PageSize

		if _, err := vm.MapPage(va, perms); err != nil {
			for j := i - 1; j >= 0; j-- {
				vm.UnmapPage(start + uint64(j)*PageSize)
			}

			return nil, errors.Wrapf(err, "mapping %s segment", kind)
		}
	}

	seg := &Segment{
		Kind:  kind,
		Start: start,
		Pages: pages,
		Perms: perms,
	}

	vm.segments = append(vm.segments, seg)

	return seg, nil
}

// MapPage backs the page at va with a freshly allocated, zeroed frame.
func (vm *VirtualMemory) MapPage(va uint64, perms PageTableEntryFlag) (Frame, error) {
	frame, err := vm.pool.AllocFrame()
	if err != nil {
		return 0, err
	}

	err = vm.pt.Map(PageAlign(va), frame, perms)
	if err != nil {
		vm.pool.FreeFrame(frame)
		return 0, err
	}

	return frame, nil
}

// UnmapPage removes the page at va and releases its frame.
func (vm *VirtualMemory) UnmapPage(va uint64) error {
	va = PageAlign(va)
	vm.tlb.Remove(va)

	_, err := vm.pt.Unmap(va, true)
	return err
}

func (vm *VirtualMemory) lookup(va uint64) (tlbEntry, error) {
	page := PageAlign(va)

	if v, ok := vm.tlb.Get(page); ok {
		return v.(tlbEntry), nil
	}

	frame, flags, err := vm.pt.Lookup(page)
	if err != nil {
		return tlbEntry{}, errors.Wrapf(err, "va=%#x", va)
	}

	ent := tlbEntry{frame: frame, flags: flags}
	vm.tlb.Add(page, ent)

	return ent, nil
}

// Translate returns the physical address backing va.
func (vm *VirtualMemory) Translate(va uint64) (uint64, error) {
	ent, err := vm.lookup(va)
	if err != nil {
		return 0, err
	}

	return ent.frame.Address() + PageOffset(va), nil
}

// Project returns the bytes at [va, va+sz) provided they sit on one page and
// the page grants every permission in access.
func (vm *VirtualMemory) Project(va, sz uint64, access PageTableEntryFlag) ([]byte, error) {
	if sz == 0 || PageOffset(va)+sz > PageSize {
		return nil, errors.Wrapf(ErrInvalidMemoryAccess, "projection crosses a page, va=%#x size=%d", va, sz)
	}

	ent, err := vm.lookup(va)
	if err != nil {
		return nil, err
	}

	if ent.flags&access != access {
		return nil, errors.Wrapf(ErrProtection, "va=%#x want=%s have=%s", va, access, ent.flags)
	}

	off := PageOffset(va)
	return vm.pool.Bytes(ent.frame)[off : off+sz], nil
}

// ReadAt copies user memory into b, one page at a time. Permissions are not
// checked, this is the kernel's view of the space.
func (vm *VirtualMemory) ReadAt(b []byte, off int64) (int, error) {
	return vm.copyPages(b, uint64(off), false)
}

// WriteAt copies b into user memory, one page at a time.
func (vm *VirtualMemory) WriteAt(b []byte, off int64) (int, error) {
	return vm.copyPages(b, uint64(off), true)
}

func (vm *VirtualMemory) copyPages(b []byte, va uint64, write bool) (int, error) {
	var done int

	for done < len(b) {
		ent, err := vm.lookup(va)
		if err != nil {
			return done, err
		}

		off := PageOffset(va)
		page := vm.pool.Bytes(ent.frame)[off:]

		var n int
		if write {
			n = copy(page, b[done:])
		} else {
			n = copy(b[done:], page)
		}

		done += n
		va += uint64(n)
	}

	return done, nil
}

// Fork returns a deep copy of the space: a new table, new frames with the
// same contents, and the same segment layout. A failed copy is destroyed
// before the error is returned.
func (vm *VirtualMemory) Fork() (*VirtualMemory, error) {
	child, err := NewVirtualMemory(vm.pool)
	if err != nil {
		return nil, err
	}

	err = vm.pt.Visit(func(va uint64, frame Frame, flags PageTableEntryFlag) error {
		dst, err := child.MapPage(va, flags&^FlagValid)
		if err != nil {
			return err
		}

		copy(vm.pool.Bytes(dst), vm.pool.Bytes(frame))
		return nil
	})
	if err != nil {
		child.Destroy()
		return nil, errors.Wrap(err, "duplicating address space")
	}

	for _, seg := range vm.segments {
		dup := *seg
		child.segments = append(child.segments, &dup)
	}

	return child, nil
}

// Pages returns the number of mapped user pages.
func (vm *VirtualMemory) Pages() int {
	var n int

	vm.pt.Visit(func(uint64, Frame, PageTableEntryFlag) error {
		n++
		return nil
	})

	return n
}

// Destroy releases every frame and table node owned by the space.
func (vm *VirtualMemory) Destroy() {
	vm.tlb.Purge()
	vm.pt.Destroy()
	vm.segments = nil
}
