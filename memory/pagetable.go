package memory

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	pageLevels    = 3
	pageLevelBits = 9
	ptesPerNode   = 1 << pageLevelBits

	// MaxVA is one past the highest user virtual address. Sv39 addresses
	// above bit 38 must be sign extended, user space stays below them.
	MaxVA = uint64(1) << (PageShift + pageLevels*pageLevelBits - 1)
)

var (
	// ErrUnmapped is returned when a virtual address has no translation.
	ErrUnmapped = errors.New("virtual address does not point to a mapped physical page")

	ErrBadAddress = errors.New("virtual address outside of user address space")
	ErrRemap      = errors.New("virtual page is already mapped")
)

var le = binary.LittleEndian

// PageAlign rounds addr down to the start of its page.
func PageAlign(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

// PageRound rounds sz up to a whole number of pages.
func PageRound(sz uint64) uint64 {
	return (sz + PageSize - 1) &^ (PageSize - 1)
}

// PageOffset returns the offset within the page of a virtual address.
func PageOffset(va uint64) uint64 {
	return va & (PageSize - 1)
}

func levelIndex(va uint64, level int) int {
	shift := PageShift + (pageLevels-1-level)*pageLevelBits
	return int((va >> shift) & (ptesPerNode - 1))
}

// PageTable is a three level Sv39 page table. Every node lives in a frame
// obtained from the pool, entries are stored little endian.
type PageTable struct {
	pool *FramePool
	root Frame
}

func NewPageTable(pool *FramePool) (*PageTable, error) {
	root, err := pool.AllocFrame()
	if err != nil {
		return nil, errors.Wrap(err, "allocating page table root")
	}

	return &PageTable{pool: pool, root: root}, nil
}

// Root returns the frame holding the top level node, the value a satp
// register would point at.
func (pt *PageTable) Root() Frame {
	return pt.root
}

func (pt *PageTable) entry(node Frame, idx int) pageTableEntry {
	return pageTableEntry(le.Uint64(pt.pool.Bytes(node)[idx*8:]))
}

func (pt *PageTable) setEntry(node Frame, idx int, pte pageTableEntry) {
	le.PutUint64(pt.pool.Bytes(node)[idx*8:], uint64(pte))
}

type newNode struct {
	parent Frame
	idx    int
	frame  Frame
}

// walk returns the node and index of the leaf entry for va. When alloc is
// set, missing intermediate nodes are created; if one of those allocations
// fails every node created by this walk is unlinked and released again.
func (pt *PageTable) walk(va uint64, alloc bool) (Frame, int, error) {
	if va >= MaxVA {
		return 0, 0, ErrBadAddress
	}

	var created []newNode

	node := pt.root
	for level := 0; level < pageLevels-1; level++ {
		idx := levelIndex(va, level)
		pte := pt.entry(node, idx)

		if pte.HasFlags(FlagValid) {
			if pte.isLeaf() {
				return 0, 0, errors.Wrapf(ErrRemap, "superpage at va=%#x", va)
			}

			node = pte.Frame()
			continue
		}

		if !alloc {
			return 0, 0, ErrUnmapped
		}

		next, err := pt.pool.AllocFrame()
		if err != nil {
			for i := len(created) - 1; i >= 0; i-- {
				n := created[i]
				pt.setEntry(n.parent, n.idx, 0)
				pt.pool.FreeFrame(n.frame)
			}

			return 0, 0, errors.Wrapf(err, "allocating level %d table for va=%#x", level+1, va)
		}

		var e pageTableEntry
		e.SetFrame(next)
		e.SetFlags(FlagValid)
		pt.setEntry(node, idx, e)

		created = append(created, newNode{parent: node, idx: idx, frame: next})
		node = next
	}

	return node, levelIndex(va, pageLevels-1), nil
}

// Map installs a leaf entry mapping the page containing va to frame.
func (pt *PageTable) Map(va uint64, frame Frame, perms PageTableEntryFlag) error {
	node, idx, err := pt.walk(va, true)
	if err != nil {
		return err
	}

	if pt.entry(node, idx).HasFlags(FlagValid) {
		return errors.Wrapf(ErrRemap, "va=%#x", va)
	}

	var e pageTableEntry
	e.SetFrame(frame)
	e.SetFlags(perms | FlagValid)
	pt.setEntry(node, idx, e)

	return nil
}

// Unmap removes the mapping of the page containing va. If release is set the
// backing frame goes back to the pool.
func (pt *PageTable) Unmap(va uint64, release bool) (Frame, error) {
	node, idx, err := pt.walk(va, false)
	if err != nil {
		return 0, err
	}

	pte := pt.entry(node, idx)
	if !pte.HasFlags(FlagValid) {
		return 0, ErrUnmapped
	}

	pt.setEntry(node, idx, 0)

	if release {
		pt.pool.FreeFrame(pte.Frame())
	}

	return pte.Frame(), nil
}

// Lookup returns the frame and flags mapped at va without allocating.
func (pt *PageTable) Lookup(va uint64) (Frame, PageTableEntryFlag, error) {
	node, idx, err := pt.walk(va, false)
	if err != nil {
		return 0, 0, err
	}

	pte := pt.entry(node, idx)
	if !pte.HasFlags(FlagValid) {
		return 0, 0, ErrUnmapped
	}

	return pte.Frame(), pte.Flags(), nil
}

// Translate returns the physical address that corresponds to va or
// ErrUnmapped if the page is not mapped.
func (pt *PageTable) Translate(va uint64) (uint64, error) {
	frame, _, err := pt.Lookup(va)
	if err != nil {
		return 0, err
	}

	return frame.Address() + PageOffset(va), nil
}

// Visit calls fn for every leaf mapping in ascending virtual address order.
func (pt *PageTable) Visit(fn func(va uint64, frame Frame, flags PageTableEntryFlag) error) error {
	return pt.visit(pt.root, 0, 0, fn)
}

func (pt *PageTable) visit(node Frame, level int, base uint64, fn func(uint64, Frame, PageTableEntryFlag) error) error {
	shift := PageShift + (pageLevels-1-level)*pageLevelBits

	for idx := 0; idx < ptesPerNode; idx++ {
		pte := pt.entry(node, idx)
		if !pte.HasFlags(FlagValid) {
			continue
		}

		va := base | uint64(idx)<<shift

		if level == pageLevels-1 {
			if err := fn(va, pte.Frame(), pte.Flags()); err != nil {
				return err
			}
			continue
		}

		if err := pt.visit(pte.Frame(), level+1, va, fn); err != nil {
			return err
		}
	}

	return nil
}

// Destroy releases every mapped frame and every table node, including the
// root. The table must not be used afterwards.
func (pt *PageTable) Destroy() {
	pt.destroy(pt.root, 0)
}

func (pt *PageTable) destroy(node Frame, level int) {
	for idx := 0; idx < ptesPerNode; idx++ {
		pte := pt.entry(node, idx)
		if !pte.HasFlags(FlagValid) {
			continue
		}

		if level == pageLevels-1 {
			pt.pool.FreeFrame(pte.Frame())
		} else {
			pt.destroy(pte.Frame(), level+1)
		}
	}

	pt.pool.FreeFrame(node)
}
