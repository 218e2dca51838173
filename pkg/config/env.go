package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order; earlier files win for duplicate keys.
var envFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads environment variables from .env files in the working
// directory. Variables already present in the environment are never
// overridden, so real environment always wins over file contents.
//
// Missing files are fine; any other read error is logged and skipped.
func LoadEnvFiles() {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			slog.Warn("Failed to load env file", "file", file, "error", err)
		}
	}
}

// AuthTokenFromEnv returns the agent auth token from the environment.
// AGENTSTREAM_AUTH_TOKEN takes precedence over the generic AUTH_TOKEN.
func AuthTokenFromEnv() string {
	if token := os.Getenv("AGENTSTREAM_AUTH_TOKEN"); token != "" {
		return token
	}
	return os.Getenv("AUTH_TOKEN")
}
