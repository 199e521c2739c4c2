package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/jhagel/anthropic-relay/internal/app"
)

// authCommand returns the 'auth' subcommand for managing backend credentials.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage backend authentication",
		Commands: []*cli.Command{
			authSetKeyCommand(),
			authClearKeyCommand(),
		},
	}
}

// authSetKeyCommand returns the 'auth set-key' subcommand.
func authSetKeyCommand() *cli.Command {
	return &cli.Command{
		Name:   "set-key",
		Usage:  "Save the backend API key to the configured storage",
		Action: authSetKeyAction,
	}
}

// authClearKeyCommand returns the 'auth clear-key' subcommand.
func authClearKeyCommand() *cli.Command {
	return &cli.Command{
		Name:   "clear-key",
		Usage:  "Remove the backend API key from the configured storage",
		Action: authClearKeyAction,
	}
}

func authSetKeyAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Backend.Auth.Storage == app.KeyStorageEnv {
		return fmt.Errorf("cannot save key with env storage (read-only). Configure file or keyring storage")
	}

	store, err := cfg.Backend.Auth.NewKeyStore()
	if err != nil {
		return fmt.Errorf("failed to create key store: %w", err)
	}

	key, err := readSecureInput(ctx, "Enter backend API key: ")
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if err := store.Write(ctx, key); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	fmt.Println("Key saved to configured storage")
	return nil
}

func authClearKeyAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Backend.Auth.Storage == app.KeyStorageEnv {
		return fmt.Errorf("cannot clear key with env storage (read-only). Configure file or keyring storage")
	}

	store, err := cfg.Backend.Auth.NewKeyStore()
	if err != nil {
		return fmt.Errorf("failed to create key store: %w", err)
	}

	// Clear key via empty string write to maintain storage abstraction
	if err := store.Write(ctx, ""); err != nil {
		return fmt.Errorf("failed to clear key: %w", err)
	}

	fmt.Println("Credentials cleared from configured storage")
	return nil
}

// readSecureInput reads user input with hidden display and context cancellation support.
// Goroutine+select pattern required because term.ReadPassword has no native context support.
func readSecureInput(ctx context.Context, prompt string) (string, error) {
	fmt.Print(prompt)
	defer fmt.Println()

	type result struct {
		value string
		err   error
	}
	resultCh := make(chan result, 1)

	go func() {
		inputBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		resultCh <- result{value: string(inputBytes), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultCh:
		if res.err != nil {
			return "", fmt.Errorf("failed to read input: %w", res.err)
		}
		return res.value, nil
	}
}
