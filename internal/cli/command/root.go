// Package command defines the qrctl commands.
//
// Commands that touch the database read the same environment as the API
// server through config.Load.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "qrctl",
		Usage:   "qrpass-service operator tool",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Commands: []*cli.Command{
			HashPasswordCommand(),
			GenSecretCommand(),
			OperatorTokenCommand(),
			PurgeCommand(),
			MigrateCommand(),
		},
	}
}
