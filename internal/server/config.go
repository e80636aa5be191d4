package server

import (
	"fmt"
	"os"
	"strings"
)

// Config holds daemon configuration loaded from environment variables.
type Config struct {
	APIToken    string
	ListenAddr  string
	CORSOrigins []string
}

// LoadConfig loads daemon configuration from environment variables.
func LoadConfig() (*Config, error) {
	apiToken := os.Getenv("CODEX_SWITCH_API_TOKEN")
	if apiToken == "" {
		return nil, fmt.Errorf("CODEX_SWITCH_API_TOKEN is required")
	}
	if len(apiToken) < 16 {
		return nil, fmt.Errorf("CODEX_SWITCH_API_TOKEN must be at least 16 characters")
	}

	listenAddr := os.Getenv("CODEX_SWITCH_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8799"
	}

	var corsOrigins []string
	if v := os.Getenv("CODEX_SWITCH_CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	return &Config{
		APIToken:    apiToken,
		ListenAddr:  listenAddr,
		CORSOrigins: corsOrigins,
	}, nil
}
