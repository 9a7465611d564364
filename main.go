// The main package for the hourswatch executable.
package main

import (
	"github.com/JakeFAU/hourswatch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
