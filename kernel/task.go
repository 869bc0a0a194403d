package kernel

import "context"

type prockey struct{}

// GetTask returns the task a syscall context was created for.
func GetTask(ctx context.Context) (*Task, bool) {
	if v := ctx.Value(prockey{}); v != nil {
		return v.(*Task), true
	}

	return nil, false
}

func SetTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, prockey{}, t)
}

// Task is the process a syscall is executing on behalf of.
type Task struct {
	*Process
}

// Arg returns syscall argument i, held in a1..a7.
func (t *Task) Arg(i int) uint64 {
	return t.TrapFrame.Reg(argRegs[i])
}

// Number returns the syscall number held in a0.
func (t *Task) Number() uint64 {
	return t.TrapFrame.Reg(numberReg)
}
