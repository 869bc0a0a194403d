// Package waiter lets the kernel loop sleep until some other party signals
// an event it registered interest in.
package waiter

import (
	"sync"

	"github.com/FlashLizard/os-pke-lab/log"
	"github.com/FlashLizard/os-pke-lab/pkg/ilist"
)

type EventType uint64

type Waiter struct {
	mu sync.RWMutex

	count   int
	waiters ilist.List
}

type Event struct {
	ilist.Entry

	Mask     EventType
	Context  interface{}
	Callback func(e *Event, fired EventType)
}

func (w *Waiter) Register(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++

	w.waiters.PushBack(e)
}

func triggerChan(e *Event, _ EventType) {
	c := e.Context.(chan struct{})

	select {
	case c <- struct{}{}:
	default:
	}
}

// RegisterChannel arranges for a non-blocking send on c whenever an event in
// mask fires. c should be buffered so a notification is never lost.
func (w *Waiter) RegisterChannel(mask EventType, c chan struct{}) *Event {
	e := &Event{
		Callback: triggerChan,
		Context:  c,
		Mask:     mask,
	}

	w.Register(e)

	return e
}

// RegisterFunc calls fn with the fired mask for every matching event.
func (w *Waiter) RegisterFunc(mask EventType, fn func(EventType)) *Event {
	e := &Event{
		Callback: func(_ *Event, fired EventType) { fn(fired) },
		Mask:     mask,
	}

	w.Register(e)

	return e
}

func (w *Waiter) Unregister(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count--

	w.waiters.Remove(e)
}

func (w *Waiter) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.count
}

// Notify runs the callback of every registered event whose mask overlaps
// mask and returns how many fired.
func (w *Waiter) Notify(mask EventType) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var fired int

	for it := w.waiters.Front(); it != nil; it = it.Next() {
		e := it.(*Event)
		if mask&e.Mask != 0 {
			e.Callback(e, mask&e.Mask)
			fired++
		}
	}

	log.L.Trace("waiters-notify", "count", w.count, "mask", mask, "fired", fired)

	return fired
}
