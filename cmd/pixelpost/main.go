package main

import (
	"fmt"
	"os"

	"github.com/dunamismax/pixelpost/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pixelpost:", err)
		os.Exit(1)
	}
}
