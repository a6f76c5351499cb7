// Package main provides the borrowlend CLI for deploying and exercising the
// cross-chain borrow/lend contracts.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
