package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/githubbzxs/codex-switch/internal/app"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/logx"
	"github.com/githubbzxs/codex-switch/internal/version"
)

func main() {
	var (
		verbose  bool
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:     "codex-switch",
		Short:   "Manage multiple codex CLI credentials: encrypted vault, atomic switching, quota probing",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logx.Configure(logLevel, verbose)
		},
	}
	rootCmd.SetVersionTemplate(version.String("codex-switch") + "\n")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose debug logs")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (or CODEX_SWITCH_LOG_LEVEL)")

	rootCmd.AddCommand(newVaultCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newSwitchCmd())
	rootCmd.AddCommand(newRollbackCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newQuotaCmd())
	rootCmd.AddCommand(newStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp builds the application context for one command invocation and
// tears it down afterwards.
func withApp(fn func(a *app.Context) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
