package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/githubbzxs/codex-switch/internal/app"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Import, list, edit, and delete stored accounts",
	}

	var (
		name     string
		tags     []string
		fromFile string
		viaLogin bool
	)
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a credential: the current live auth file, a file path, or a fresh login",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				if err := ensureUnlocked(a); err != nil {
					return err
				}
				switch {
				case viaLogin:
					account, err := a.ImportViaLogin(cmd.Context(), name, tags)
					if err != nil {
						return err
					}
					fmt.Printf("imported account %s (%s) via login\n", account.ID, account.Name)
				case fromFile != "":
					account, err := a.ImportFromFile(fromFile, name, tags)
					if err != nil {
						return err
					}
					fmt.Printf("imported account %s (%s) from %s\n", account.ID, account.Name, fromFile)
				default:
					account, err := a.ImportCurrent(name, tags)
					if err != nil {
						return err
					}
					fmt.Printf("imported account %s (%s) from the live auth file\n", account.ID, account.Name)
				}
				return nil
			})
		},
	}
	importCmd.Flags().StringVar(&name, "name", "", "Account name (defaults to email, account id, or fingerprint)")
	importCmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag for the account (repeatable)")
	importCmd.Flags().StringVar(&fromFile, "file", "", "Import from this auth JSON file instead of the live one")
	importCmd.Flags().BoolVar(&viaLogin, "login", false, "Run `codex login` and import the resulting credential")
	importCmd.MarkFlagsMutuallyExclusive("file", "login")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				accounts, err := a.ListAccounts()
				if err != nil {
					return err
				}
				return printJSON(accounts)
			})
		},
	})

	var updateName string
	var updateTags []string
	updateCmd := &cobra.Command{
		Use:   "update <account-id>",
		Short: "Update an account's name and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				if err := a.UpdateAccountMeta(args[0], updateName, updateTags); err != nil {
					return err
				}
				fmt.Println("account updated")
				return nil
			})
		},
	}
	updateCmd.Flags().StringVar(&updateName, "name", "", "New account name")
	updateCmd.Flags().StringSliceVar(&updateTags, "tag", nil, "New tag set (repeatable)")
	updateCmd.MarkFlagRequired("name")
	cmd.AddCommand(updateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <account-id>",
		Short: "Delete a stored account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				if err := a.DeleteAccount(args[0]); err != nil {
					return err
				}
				fmt.Println("account deleted")
				return nil
			})
		},
	})

	return cmd
}
