// Command othings manages a personal inventory from the terminal.
package main

import (
	"os"

	"github.com/mesh-intelligence/othings/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
