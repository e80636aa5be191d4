package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/githubbzxs/codex-switch/internal/app"
	"github.com/githubbzxs/codex-switch/internal/config"
	"github.com/githubbzxs/codex-switch/internal/logx"
	"github.com/githubbzxs/codex-switch/internal/server"
	"github.com/githubbzxs/codex-switch/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	verbose := flag.Bool("verbose", false, "Enable verbose debug logs (same as --log-level debug)")
	logLevel := flag.String("log-level", "", "Log level: debug|info|warn|error (or CODEX_SWITCH_LOG_LEVEL)")
	flag.BoolVar(showVersion, "v", false, "Print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.String("codex-switchd"))
		fmt.Fprintf(os.Stderr, "codex-switchd serves the codex-switch command facade to the desktop console over loopback HTTP.\n\n")
		fmt.Fprintf(os.Stderr, "Environment variables:\n")
		fmt.Fprintf(os.Stderr, "  CODEX_SWITCH_API_TOKEN     Bearer token for the console (min 16 chars, required)\n")
		fmt.Fprintf(os.Stderr, "  CODEX_SWITCH_LISTEN_ADDR   Listen address (default: 127.0.0.1:8799)\n")
		fmt.Fprintf(os.Stderr, "  CODEX_SWITCH_CORS_ORIGINS  Comma-separated console origins allowed via CORS\n")
		fmt.Fprintf(os.Stderr, "  CODEX_SWITCH_DATA_DIR      Data directory (default: per-OS app data dir)\n")
		fmt.Fprintf(os.Stderr, "  CODEX_SWITCH_LOG_LEVEL     Log level: debug|info|warn|error (default: info)\n")
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("codex-switchd"))
		os.Exit(0)
	}

	if err := logx.Configure(*logLevel, *verbose); err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	serverCfg, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("load server config: %v", err)
	}

	appCtx, err := app.New(cfg)
	if err != nil {
		log.Fatalf("initialize application: %v", err)
	}
	defer appCtx.Close()

	appCtx.PruneOldSnapshots()

	r := server.NewRouter(appCtx, serverCfg)
	logx.Infof("codex-switchd listening on %s", serverCfg.ListenAddr)
	if err := r.Run(serverCfg.ListenAddr); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
