package kernel

// ProcessTable is a fixed set of process slots. A slot's index is the pid of
// whatever process occupies it.
type ProcessTable struct {
	slots []*Process
}

func NewProcessTable(k *Kernel, capacity int) *ProcessTable {
	t := &ProcessTable{
		slots: make([]*Process, capacity),
	}

	for i := range t.slots {
		t.slots[i] = &Process{
			Kernel: k,
			Pid:    i,
			parent: NoParent,
		}
	}

	return t
}

func (t *ProcessTable) Cap() int {
	return len(t.slots)
}

// Alloc returns the lowest FREE slot. The slot stays FREE until claim, so a
// caller that fails halfway leaves nothing behind.
func (t *ProcessTable) Alloc() (*Process, error) {
	for _, p := range t.slots {
		if p.status == Free {
			return p, nil
		}
	}

	return nil, ErrNoFreeSlot
}

func (t *ProcessTable) claim(p *Process, parent ProcRef) {
	p.gen++
	p.parent = parent
	p.setStatus(Ready)
}

func (t *ProcessTable) release(p *Process) {
	p.setStatus(Free)
	p.reset()
}

// Get returns the slot for pid, whatever its status.
func (t *ProcessTable) Get(pid int) (*Process, bool) {
	if pid < 0 || pid >= len(t.slots) {
		return nil, false
	}

	return t.slots[pid], true
}

// Resolve follows a weak reference, failing if the slot was reaped since.
func (t *ProcessTable) Resolve(ref ProcRef) (*Process, bool) {
	p, ok := t.Get(ref.Slot)
	if !ok || p.status == Free || p.gen != ref.Gen {
		return nil, false
	}

	return p, true
}

// Each calls fn for every occupied slot in pid order.
func (t *ProcessTable) Each(fn func(p *Process)) {
	for _, p := range t.slots {
		if p.status != Free {
			fn(p)
		}
	}
}

// Live counts processes that are READY, RUNNING or BLOCKED.
func (t *ProcessTable) Live() int {
	var n int

	for _, p := range t.slots {
		if p.Live() {
			n++
		}
	}

	return n
}

func (t *ProcessTable) Count(s Status) int {
	var n int

	for _, p := range t.slots {
		if p.status == s {
			n++
		}
	}

	return n
}
