// Command csmasim runs CSMA/CA contention simulations from the command line,
// sweeps offered load, or serves the simulator over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
