// Package main is the entry point of frer, the IEEE 802.1CB R-TAG toolkit.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/frer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
