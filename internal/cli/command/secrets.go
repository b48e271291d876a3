package command

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/spec-kit/qrpass-service/internal/auth"
	"github.com/spec-kit/qrpass-service/internal/config"
	"github.com/spec-kit/qrpass-service/internal/service"
)

// HashPasswordCommand prints a bcrypt hash for AUTH_OPERATOR_PASSWORD_HASH.
func HashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Hash an operator password",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "Plaintext password",
				EnvVars:  []string{"QRCTL_PASSWORD"},
				Required: true,
			},
			&cli.IntFlag{
				Name:  "cost",
				Value: 12,
				Usage: "bcrypt cost",
			},
		},
		Action: func(c *cli.Context) error {
			hash, err := auth.HashPassword(c.String("password"), c.Int("cost"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, hash)
			return nil
		},
	}
}

// GenSecretCommand prints a random value suitable for QR_SECRET or AUTH_JWT_SECRET.
func GenSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen-secret",
		Usage: "Generate a random secret",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "bytes",
				Value: 32,
				Usage: "Number of random bytes",
			},
		},
		Action: func(c *cli.Context) error {
			n := c.Int("bytes")
			if n < 16 {
				return errors.New("--bytes must be at least 16")
			}
			buf := make([]byte, n)
			if _, err := rand.Read(buf); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, base64.RawURLEncoding.EncodeToString(buf))
			return nil
		},
	}
}

// OperatorTokenCommand signs an operator access token with the configured JWT secret.
func OperatorTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "operator-token",
		Usage: "Issue an operator access token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "subject",
				Usage: "Token subject (defaults to AUTH_OPERATOR_USERNAME)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			subject := c.String("subject")
			if subject == "" {
				subject = cfg.Auth.OperatorUsername
			}

			token, err := service.NewAuthService(cfg.Auth).IssueOperatorToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token.Token)
			fmt.Fprintf(c.App.ErrWriter, "expires at %s\n", token.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}
