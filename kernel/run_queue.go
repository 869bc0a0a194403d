package kernel

import (
	"fmt"

	"github.com/FlashLizard/os-pke-lab/pkg/ilist"
)

// RunQueue holds READY processes in the order they became ready. It links
// the processes themselves and owns none of them.
type RunQueue struct {
	count     int
	processes ilist.List
}

func (q *RunQueue) Len() int {
	return q.count
}

func (q *RunQueue) Enqueue(p *Process) {
	if p.queued {
		panic(fmt.Sprintf("pid %d enqueued twice", p.Pid))
	}

	p.queued = true
	q.count++
	q.processes.PushBack(p)
}

// Dequeue removes and returns the head, or nil when empty.
func (q *RunQueue) Dequeue() *Process {
	front := q.processes.Front()
	if front == nil {
		return nil
	}

	p := front.(*Process)
	q.Remove(p)

	return p
}

func (q *RunQueue) Remove(p *Process) {
	if !p.queued {
		return
	}

	p.queued = false
	q.count--
	q.processes.Remove(p)
}

// Pids lists the queue from head to tail.
func (q *RunQueue) Pids() []int {
	pids := make([]int, 0, q.count)

	for it := q.processes.Front(); it != nil; it = it.Next() {
		pids = append(pids, it.(*Process).Pid)
	}

	return pids
}
