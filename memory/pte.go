package memory

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint64

// Sv39 page table entry bits.
const (
	FlagValid PageTableEntryFlag = 1 << iota
	FlagRead
	FlagWrite
	FlagExec
	FlagUser
	FlagGlobal
	FlagAccessed
	FlagDirty
)

const (
	pteFlagBits = 10
	pteFlagMask = (1 << pteFlagBits) - 1

	// Permission bits a leaf may carry; an entry with none of them set
	// points to the next level table.
	leafMask = FlagRead | FlagWrite | FlagExec
)

// pageTableEntry encodes a physical frame number and a set of flags.
type pageTableEntry uint64

// HasFlags returns true if this entry has all the input flags set.
func (pte pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte pageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) != 0
}

// SetFlags sets the input list of flags on the page table entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uint64(*pte) | uint64(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = pageTableEntry(uint64(*pte) &^ uint64(flags))
}

func (pte pageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint64(pte) & pteFlagMask)
}

// Frame returns the physical frame that this entry points to.
func (pte pageTableEntry) Frame() Frame {
	return Frame(uint64(pte) >> pteFlagBits)
}

// SetFrame updates the entry to point to the given physical frame.
func (pte *pageTableEntry) SetFrame(f Frame) {
	*pte = pageTableEntry((uint64(*pte) & pteFlagMask) | (uint64(f) << pteFlagBits))
}

func (pte pageTableEntry) isLeaf() bool {
	return pte.HasAnyFlag(leafMask)
}

func (f PageTableEntryFlag) String() string {
	var b [5]byte
	for i, c := range []struct {
		flag PageTableEntryFlag
		ch   byte
	}{{FlagValid, 'v'}, {FlagRead, 'r'}, {FlagWrite, 'w'}, {FlagExec, 'x'}, {FlagUser, 'u'}} {
		if f&c.flag != 0 {
			b[i] = c.ch
		} else {
			b[i] = '-'
		}
	}

	return string(b[:])
}
