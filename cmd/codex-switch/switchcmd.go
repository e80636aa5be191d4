package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/githubbzxs/codex-switch/internal/app"
)

func newSwitchCmd() *cobra.Command {
	var restart bool
	cmd := &cobra.Command{
		Use:   "switch <account-id>",
		Short: "Atomically replace the live auth file with a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				if err := ensureUnlocked(a); err != nil {
					return err
				}
				forceRestart := restart || (!cmd.Flags().Changed("restart") && a.Config.Switch.ForceRestartDefault)
				result, err := a.SwitchAccount(cmd.Context(), args[0], forceRestart)
				if err != nil {
					return err
				}
				if result.Killed > 0 {
					fmt.Printf("switched (history %s), terminated %d codex processes\n", result.HistoryID, result.Killed)
				} else {
					fmt.Printf("switched (history %s)\n", result.HistoryID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "Terminate running codex processes after the switch")
	return cmd
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <history-id>",
		Short: "Restore the live auth file from a switch snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				result, err := a.Rollback(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("rolled back (history %s)\n", result.HistoryID)
				return nil
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show switch history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				history, err := a.ListHistory(limit)
				if err != nil {
					return err
				}
				return printJSON(history)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of rows")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show runtime diagnostics and codex CLI status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				diag, err := a.RuntimeDiagnostics(cmd.Context())
				if err != nil {
					return err
				}
				cliStatus, err := a.CliStatus(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"diagnostics": diag,
					"cli":         cliStatus,
				})
			})
		},
	}
}
