// Package abi holds the numbers shared between user programs and the kernel.
package abi

// Syscall numbers. a0 carries the number, a1..a7 the arguments, and the
// result comes back in a0.
const (
	SysUserBase = 64

	SysPrint          = SysUserBase + 0
	SysExit           = SysUserBase + 1
	SysAllocatePage   = SysUserBase + 2
	SysFreePage       = SysUserBase + 3
	SysFork           = SysUserBase + 4
	SysYield          = SysUserBase + 5
	SysWait           = SysUserBase + 6
	SysPrintBacktrace = SysUserBase + 7

	NumSyscalls = 128
)

var SyscallNames = map[int]string{
	SysPrint:          "print",
	SysExit:           "exit",
	SysAllocatePage:   "allocate_page",
	SysFreePage:       "free_page",
	SysFork:           "fork",
	SysYield:          "yield",
	SysWait:           "wait",
	SysPrintBacktrace: "print_backtrace",
}

// Failure is the value returned in a0 by a syscall that could not be
// satisfied.
const Failure = -1

// WaitAny asks wait to reap any child.
const WaitAny = -1

// User address space layout.
const (
	UserStackTop  = 0x7ffff000
	UserHeapStart = 0x00400000
)
