// Package main provides the entry point for qrctl, the operator CLI for
// qrpass-service.
package main

import (
	"fmt"
	"os"

	"github.com/spec-kit/qrpass-service/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
