package decision

import "context"

// Executor carries out the action named by an APPROVED Decision. It is the
// pluggable seam between the pipeline's state machine and whatever a
// decision's action actually means to its caller: the default implementation
// is a no-op so the pipeline is fully exercisable without a real side
// effect wired in.
type Executor interface {
	Execute(ctx context.Context, d *Decision) error
}

// PassthroughExecutor performs no side effect and always succeeds. It is
// the Pipeline's default Executor.
type PassthroughExecutor struct{}

func (PassthroughExecutor) Execute(context.Context, *Decision) error { return nil }

// FuncExecutor adapts a plain function to the Executor interface, for tests
// that need to assert on which decisions were executed or to simulate
// execution failure.
type FuncExecutor func(ctx context.Context, d *Decision) error

func (f FuncExecutor) Execute(ctx context.Context, d *Decision) error { return f(ctx, d) }
