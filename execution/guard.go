package execution

import "runtime"

// Average number of bytes a frame is accounted for when converting a stack size into a frame budget
const frameBytes = 256

// Detects that a context has grown past its configured stack size.
//
// Go stacks grow on demand, so the configured size is turned into a budget of
// frames counted from the entry of the context. The budget is checked at every
// suspension point and on explicit CheckStack calls.
//
// Only those checks detect an overflow. A deep recursion that returns before the
// next check goes unnoticed, and an unbounded one that never reaches a check still
// ends the process with the fatal stack error of the Go runtime.
type guard struct {
	size   int
	budget int
	// Depth of the goroutine stack when the entry function is called
	base int
}

func newGuard(stackSize int) *guard {
	budget := stackSize / frameBytes
	if budget < 1 {
		budget = 1
	}
	return &guard{size: stackSize, budget: budget}
}

func (g *guard) mark() {
	g.base = stackDepth()
}

func (g *guard) check(owner Owner) error {
	var pcs [1]uintptr
	// Only returns a frame if the stack is deeper than base+budget
	if runtime.Callers(g.base+g.budget, pcs[:]) == 0 {
		return nil
	}
	return &StackOverflowError{
		Owner:     owner.String(),
		StackSize: g.size,
		Frames:    stackDepth() - g.base,
		Budget:    g.budget,
	}
}

// Returns the number of frames on the stack of the calling goroutine
func stackDepth() int {
	pcs := make([]uintptr, 64)
	depth := 0
	for {
		n := runtime.Callers(depth+1, pcs)
		depth += n
		if n < len(pcs) {
			return depth
		}
	}
}
