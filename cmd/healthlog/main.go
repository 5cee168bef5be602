// Command healthlog is the command-line front end of the health journal.
package main

import (
	"os"

	"github.com/mesh-intelligence/healthlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
