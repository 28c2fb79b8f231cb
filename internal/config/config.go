// Package config loads and holds all crypto-store configuration.
// Settings are layered: defaults → cryptostore-config.json → environment
// variables (env vars win).
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
)

// Config holds the full crypto-store configuration.
type Config struct {
	DatabaseURL string `json:"databaseUrl"`
	Dialect     string `json:"dialect"` // "postgres" or "sqlite3"

	AdminPort  int    `json:"adminPort"`
	AdminToken string `json:"adminToken"`

	LogLevel string `json:"logLevel"`

	// Passphrase unlocks the store's at-rest encryption cipher. Empty means
	// UnlockUnencrypted must be called explicitly; there is no implicit
	// fallback from a missing passphrase.
	Passphrase string `json:"-"`

	GroupSessionCacheCapacity int `json:"groupSessionCacheCapacity"`
}

// Load returns config with defaults overridden by cryptostore-config.json
// and env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "cryptostore-config.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		DatabaseURL:               "cryptostore.db",
		Dialect:                   "sqlite3",
		AdminPort:                 8090,
		LogLevel:                  "info",
		GroupSessionCacheCapacity: 4096,
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G703: path is a controlled config file path, not user input
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
	} else {
		log.Printf("[CONFIG] Loaded %s", path)
	}
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("CRYPTOSTORE_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CRYPTOSTORE_DIALECT"); v != "" {
		cfg.Dialect = v
	}
	if v := os.Getenv("CRYPTOSTORE_ADMIN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AdminPort = n
		}
	}
	if v := os.Getenv("CRYPTOSTORE_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CRYPTOSTORE_PASSPHRASE"); v != "" {
		cfg.Passphrase = v
	}
	if v := os.Getenv("CRYPTOSTORE_GROUP_SESSION_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GroupSessionCacheCapacity = n
		}
	}
}
