package execution

import "fmt"

// StackOverflowError is reported when an actor exceeds the stack size of its context.
//
// It is fatal: the simulation can not continue once an actor has overflown.
type StackOverflowError struct {
	Owner     string
	StackSize int
	Frames    int
	Budget    int
}

func (e *StackOverflowError) Error() string {
	return fmt.Sprintf(
		"execution: stack overflow in %v: %v frames deep with a budget of %v frames (stack size %v bytes). Increase contexts/stack-size",
		e.Owner, e.Frames, e.Budget, e.StackSize,
	)
}

// PanicError is reported when actor code panics
type PanicError struct {
	Owner string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("execution: %v panicked: %v \nStack Trace:\n %s", e.Owner, e.Value, e.Stack)
}

// Unwrap exposes the panic value when the actor panicked with an error
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
