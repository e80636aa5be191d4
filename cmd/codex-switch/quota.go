package main

import (
	"github.com/spf13/cobra"

	"github.com/githubbzxs/codex-switch/internal/app"
	"github.com/githubbzxs/codex-switch/internal/store"
)

func newQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Probe and inspect account quota estimates",
	}

	var force bool
	refreshCmd := &cobra.Command{
		Use:   "refresh [account-id]",
		Short: "Refresh quota for one account, or all accounts when omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				if err := ensureUnlocked(a); err != nil {
					return err
				}
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				snaps, err := a.RefreshQuota(cmd.Context(), id, force)
				if err != nil {
					return err
				}
				return printJSON(snaps)
			})
		},
	}
	refreshCmd.Flags().BoolVar(&force, "force", false, "Bypass the snapshot cache")
	cmd.AddCommand(refreshCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "dashboard",
		Short: "Show every account with its latest quota snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				items, err := a.QuotaDashboard()
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	})

	var limit int
	snapshotsCmd := &cobra.Command{
		Use:   "snapshots <account-id>",
		Short: "List stored quota snapshots for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				snaps, err := a.ListSnapshots(args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(snaps)
			})
		},
	}
	snapshotsCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of rows")
	cmd.AddCommand(snapshotsCmd)

	var policy store.QuotaPolicy
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Set the quota refresh policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.Context) error {
				if err := a.SetRefreshPolicy(policy); err != nil {
					return err
				}
				applied, err := a.Store.GetQuotaPolicy()
				if err != nil {
					return err
				}
				return printJSON(applied)
			})
		},
	}
	policyCmd.Flags().Int64Var(&policy.TimeoutMS, "timeout-ms", 8000, "Per-probe timeout in milliseconds (1000-30000)")
	policyCmd.Flags().Int64Var(&policy.CacheTTLSec, "cache-ttl", 60, "Snapshot cache TTL in seconds (30-3600)")
	policyCmd.Flags().Int64Var(&policy.MaxConcurrency, "concurrency", 4, "Concurrent probe bound (1-8)")
	cmd.AddCommand(policyCmd)

	return cmd
}
