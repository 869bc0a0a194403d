package kernel

import "github.com/pkg/errors"

var (
	ErrNoFreeSlot      = errors.New("no free process slot")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrHeapExhausted   = errors.New("heap page limit reached")
	ErrImageTooLarge   = errors.New("image does not fit below the heap")

	// ErrShutdown and ErrIdle are returned by Schedule when the ready queue
	// is empty.
	ErrShutdown = errors.New("no live processes")
	ErrIdle     = errors.New("all live processes are blocked")

	// ErrFatal marks conditions that stop the kernel.
	ErrFatal = errors.New("kernel panic")
)
