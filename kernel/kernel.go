package kernel

import (
	"context"
	"io"
	"sync"

	"github.com/FlashLizard/os-pke-lab/config"
	"github.com/FlashLizard/os-pke-lab/exec"
	"github.com/FlashLizard/os-pke-lab/log"
	"github.com/FlashLizard/os-pke-lab/memory"
	"github.com/FlashLizard/os-pke-lab/pkg/waiter"
	"github.com/google/uuid"
	hclog "github.com/hashicorp/go-hclog"
)

// Dispatcher runs the syscall a task trapped on.
type Dispatcher interface {
	InvokeSyscall(ctx context.Context, t *Task) Outcome
}

// Events delivered through Kernel.Events.
const (
	EventWakeup waiter.EventType = 1 << iota
	EventProcessExit
)

type Kernel struct {
	L      hclog.Logger
	BootID uuid.UUID

	cfg     *config.Config
	pool    *memory.FramePool
	procs   *ProcessTable
	runq    RunQueue
	current *Process
	machine exec.Machine

	dispatcher Dispatcher
	console    io.Writer

	events waiter.Waiter

	mu         sync.Mutex
	interrupts []func(k *Kernel)

	init     ProcRef
	exitCode int
}

// NewKernel builds a kernel with its own frame pool and process table. A
// nil cfg uses config.Default.
func NewKernel(cfg *config.Config, console io.Writer) (*Kernel, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if console == nil {
		console = io.Discard
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		BootID:  id,
		cfg:     cfg,
		pool:    memory.NewFramePool(cfg.Frames),
		machine: exec.Machine{Quantum: cfg.Quantum},
		console: console,
		init:    NoParent,
	}

	k.L = log.L.Named("kernel").With("boot", id.String())
	k.procs = NewProcessTable(k, cfg.MaxProcs)

	return k, nil
}

func (k *Kernel) SetDispatcher(d Dispatcher) {
	k.dispatcher = d
}

func (k *Kernel) Config() *config.Config {
	return k.cfg
}

func (k *Kernel) Console() io.Writer {
	return k.console
}

func (k *Kernel) Pool() *memory.FramePool {
	return k.pool
}

func (k *Kernel) Processes() *ProcessTable {
	return k.procs
}

func (k *Kernel) RunQueue() *RunQueue {
	return &k.runq
}

// Current is the RUNNING process, or nil between processes.
func (k *Kernel) Current() *Process {
	return k.current
}

func (k *Kernel) Events() *waiter.Waiter {
	return &k.events
}

// Retired is the number of user instructions executed so far.
func (k *Kernel) Retired() uint64 {
	return k.machine.Retired
}

// ExitCode is the code the first spawned process exited with.
func (k *Kernel) ExitCode() int {
	return k.exitCode
}

// Interrupt queues fn to run on the kernel loop and wakes the loop if it is
// idle. It is the only Kernel method safe to call from another goroutine.
func (k *Kernel) Interrupt(fn func(k *Kernel)) {
	k.mu.Lock()
	k.interrupts = append(k.interrupts, fn)
	k.mu.Unlock()

	k.events.Notify(EventWakeup)
}

func (k *Kernel) runInterrupts() int {
	k.mu.Lock()
	pending := k.interrupts
	k.interrupts = nil
	k.mu.Unlock()

	for _, fn := range pending {
		fn(k)
	}

	return len(pending)
}
