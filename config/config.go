// Package config reads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the server binary needs at startup.
type Config struct {
	Addr         string   // listen address, e.g. ":8080"
	DatabasePath string   // SQLite path; ":memory:" for ephemeral
	CORSOrigins  []string // allowed browser origins
}

// Load reads configuration. Precedence: environment variables, then the
// .env file, then defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr:         get("ADDR", ":8080"),
		DatabasePath: get("DATABASE_PATH", "questlog.db"),
		CORSOrigins:  splitList(get("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
	}
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
