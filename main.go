// The main package for the ntsb-publisher executable.
package main

import (
	"github.com/JakeFAU/ntsb-publisher/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
