// cotbench evaluates chain-of-thought prompting strategies against a
// question dataset and reports per-strategy metrics.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
