// ABOUTME: Entry point for the flashdeck CLI
// ABOUTME: Command-line client for signing in and managing a Flashdeck account

package main

import (
	"fmt"
	"os"

	"github.com/markalston/flashdeck/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
