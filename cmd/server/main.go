package main

import (
	"fmt"
	"os"
)

// main hands off to the cobra command tree. Wiring lives in deps.go and
// business logic in the internal service packages.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "contactlink:", err)
		os.Exit(1)
	}
}
