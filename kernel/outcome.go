package kernel

import "fmt"

type outcomeKind int

const (
	completed outcomeKind = iota
	scheduled
	fatal
)

// Outcome tells the run loop what to do after a syscall handler returns.
type Outcome struct {
	kind   outcomeKind
	result int64
	err    error
}

// Completed hands result back to the calling process, which keeps running.
func Completed(result int64) Outcome {
	return Outcome{kind: completed, result: result}
}

// Rescheduled means the handler has moved the caller off the CPU (yield,
// block or exit) and the loop must pick the next process.
func Rescheduled() Outcome {
	return Outcome{kind: scheduled}
}

// Fatal stops the kernel with err.
func Fatal(err error) Outcome {
	return Outcome{kind: fatal, err: err}
}

func (o Outcome) Scheduled() bool {
	return o.kind == scheduled
}

func (o Outcome) Result() int64 {
	return o.result
}

func (o Outcome) Err() error {
	return o.err
}

func (o Outcome) String() string {
	switch o.kind {
	case completed:
		return fmt.Sprintf("completed(%d)", o.result)
	case scheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("fatal(%s)", o.err)
	}
}
