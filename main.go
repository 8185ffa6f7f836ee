// The main package for the seek-crawler executable.
package main

import (
	"github.com/jobradar/seek-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
