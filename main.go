// Package main is the entry point for the acpipe report channel daemon.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/acpipe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
