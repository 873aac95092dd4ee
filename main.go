// Idiomatic entrypoint for the Cobra CLI; delegates to cmd.Execute.

package main

import (
	"github.com/parsa-epfl/queue-flex/cmd"
)

func main() {
	cmd.Execute()
}
