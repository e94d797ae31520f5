package main

import (
	"fmt"
	"os"

	"github.com/BirdseyeSoftware/distributed-process-platform/cmd/registryctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
