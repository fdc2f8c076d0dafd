package main

import (
	"os"

	"github.com/udisondev/hermesgo/cmd/hermesproxy/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
