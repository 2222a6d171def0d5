package main

import (
	"os"

	"github.com/courtside/midmajor/cmd/midmajor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
