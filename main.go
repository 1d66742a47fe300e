// Package main is the entry point for the satrx GEOSCAN image receiver.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/satrx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
