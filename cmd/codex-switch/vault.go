package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/githubbzxs/codex-switch/internal/app"
	"github.com/githubbzxs/codex-switch/internal/vault"
)

func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the encrypted credential vault",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the vault and set the master password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				password, err := promptPassword("Master password (min 8 chars): ")
				if err != nil {
					return err
				}
				confirm, err := promptPassword("Confirm master password: ")
				if err != nil {
					return err
				}
				if password != confirm {
					return fmt.Errorf("passwords do not match")
				}
				if err := a.InitVault(password); err != nil {
					return err
				}
				fmt.Println("vault initialized and unlocked")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the vault state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				status, err := a.VaultStatus()
				if err != nil {
					return err
				}
				return printJSON(status)
			})
		},
	})

	return cmd
}

// promptPassword reads a password without echoing it.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// ensureUnlocked prompts for the master password when the vault is locked.
// Each CLI invocation is its own process, so the unlock lives only for the
// duration of the command; the daemon holds longer sessions.
func ensureUnlocked(a *app.Context) error {
	state, err := a.Vault.Status()
	if err != nil {
		return err
	}
	switch state {
	case vault.StateUninitialized:
		return fmt.Errorf("vault not initialized; run `codex-switch vault init` first")
	case vault.StateUnlocked:
		return nil
	}
	password, err := promptPassword("Master password: ")
	if err != nil {
		return err
	}
	return a.UnlockVault(password)
}
