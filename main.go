// main.go
//
// Entry point for the qesim CLI; the command tree lives in cmd/.

package main

import (
	"github.com/qesim/qesim/cmd"
)

func main() {
	cmd.Execute()
}
