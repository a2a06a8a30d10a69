package main

import (
	"os"

	"github.com/idilsaglam/shoplist/internal/cli"
)

func main() {
	// Subcommands, flags and exit codes live in the cli package.
	os.Exit(cli.Run(os.Args[1:]))
}
