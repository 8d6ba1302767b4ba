package runner

import "simkernel/kernel"

type command interface{}

// Executes n transitions. A non-positive n runs until the end of the run
type stepCmd struct{ n int }

type killCmd struct{ pid int }

type crashCmd struct{ host string }

// Puts a message in a mailbox from outside of the simulation
type deliverCmd struct {
	mailbox string
	payload any
}

type stopCmd struct{}

type response struct {
	res  kernel.Result
	done bool
	err  error
}
