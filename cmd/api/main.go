package main

import (
	"fmt"
	"os"

	"github.com/dunamismax/pixelpost/internal/cli"
)

// api runs only the HTTP server, for deployments that ship no CLI.
func main() {
	cmd := cli.NewServeCommand()
	cmd.Use = "pixelpost-api"
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pixelpost-api:", err)
		os.Exit(1)
	}
}
