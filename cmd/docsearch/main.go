// Command docsearch searches a documentation payload from the terminal
// without running the search service.
//
// Usage:
//
//	docsearch search search_index.js "Compton"
//	docsearch stats search_index.js
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
