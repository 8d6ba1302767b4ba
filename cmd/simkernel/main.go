// Command simkernel runs and explores the example scenarios.
package main

import "simkernel/cmd/simkernel/cmd"

func main() {
	cmd.Execute()
}
