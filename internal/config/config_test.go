package config

import (
	"encoding/json"
	"os"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.DatabaseURL != "cryptostore.db" {
		t.Errorf("DatabaseURL: got %s, want cryptostore.db", cfg.DatabaseURL)
	}
	if cfg.Dialect != "sqlite3" {
		t.Errorf("Dialect: got %s, want sqlite3", cfg.Dialect)
	}
	if cfg.AdminPort != 8090 {
		t.Errorf("AdminPort: got %d, want 8090", cfg.AdminPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
	if cfg.GroupSessionCacheCapacity != 4096 {
		t.Errorf("GroupSessionCacheCapacity: got %d, want 4096", cfg.GroupSessionCacheCapacity)
	}
}

func TestLoadEnv_DatabaseURL(t *testing.T) {
	t.Setenv("CRYPTOSTORE_DATABASE_URL", "postgres://localhost/cryptostore")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.DatabaseURL != "postgres://localhost/cryptostore" {
		t.Errorf("DatabaseURL: got %s", cfg.DatabaseURL)
	}
}

func TestLoadEnv_Dialect(t *testing.T) {
	t.Setenv("CRYPTOSTORE_DIALECT", "postgres")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Dialect != "postgres" {
		t.Errorf("Dialect: got %s", cfg.Dialect)
	}
}

func TestLoadEnv_AdminPort(t *testing.T) {
	t.Setenv("CRYPTOSTORE_ADMIN_PORT", "9090")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.AdminPort != 9090 {
		t.Errorf("AdminPort: got %d, want 9090", cfg.AdminPort)
	}
}

func TestLoadEnv_AdminToken(t *testing.T) {
	t.Setenv("CRYPTOSTORE_ADMIN_TOKEN", "secret-token")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.AdminToken != "secret-token" {
		t.Errorf("AdminToken: got %s", cfg.AdminToken)
	}
}

func TestLoadEnv_LogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel: got %s", cfg.LogLevel)
	}
}

func TestLoadEnv_Passphrase(t *testing.T) {
	t.Setenv("CRYPTOSTORE_PASSPHRASE", "hunter2")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.Passphrase != "hunter2" {
		t.Errorf("Passphrase: got %s", cfg.Passphrase)
	}
}

func TestLoadEnv_GroupSessionCacheCapacity(t *testing.T) {
	t.Setenv("CRYPTOSTORE_GROUP_SESSION_CACHE_CAPACITY", "1024")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.GroupSessionCacheCapacity != 1024 {
		t.Errorf("GroupSessionCacheCapacity: got %d, want 1024", cfg.GroupSessionCacheCapacity)
	}
}

func TestLoadEnv_GroupSessionCacheCapacity_Zero_Ignored(t *testing.T) {
	t.Setenv("CRYPTOSTORE_GROUP_SESSION_CACHE_CAPACITY", "0")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.GroupSessionCacheCapacity != 4096 {
		t.Errorf("GroupSessionCacheCapacity: got %d, want 4096 (zero should be ignored)", cfg.GroupSessionCacheCapacity)
	}
}

func TestLoadEnv_InvalidPort_Ignored(t *testing.T) {
	t.Setenv("CRYPTOSTORE_ADMIN_PORT", "not-a-number")
	cfg := defaults()
	loadEnv(cfg)
	if cfg.AdminPort != 8090 {
		t.Errorf("AdminPort: got %d, want 8090 (invalid env should be ignored)", cfg.AdminPort)
	}
}

func TestLoadFile_ValidJSON(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	if err != nil {
		t.Fatal(err)
	}

	data, marshalErr := json.Marshal(map[string]any{
		"databaseUrl": "sqlite3://override.db",
		"dialect":     "sqlite3",
		"adminPort":   9999,
	})
	if marshalErr != nil {
		t.Fatal(marshalErr)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())

	if cfg.DatabaseURL != "sqlite3://override.db" {
		t.Errorf("DatabaseURL: got %s", cfg.DatabaseURL)
	}
	if cfg.AdminPort != 9999 {
		t.Errorf("AdminPort: got %d, want 9999", cfg.AdminPort)
	}
}

func TestLoadFile_Missing_IsNoOp(t *testing.T) {
	cfg := defaults()
	loadFile(cfg, "/nonexistent/path/config.json")
	if cfg.AdminPort != 8090 {
		t.Errorf("AdminPort changed unexpectedly: %d", cfg.AdminPort)
	}
}

func TestLoadFile_InvalidJSON_PreservesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-bad-*.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{this is not json}"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	cfg := defaults()
	loadFile(cfg, f.Name())
	if cfg.AdminPort != 8090 {
		t.Errorf("AdminPort changed on bad JSON: %d", cfg.AdminPort)
	}
}

func TestLoad_ReturnsNonNil(t *testing.T) {
	cfg := Load()
	if cfg == nil {
		t.Fatal("Load() returned nil")
	}
	if cfg.AdminPort <= 0 {
		t.Errorf("AdminPort should be positive, got %d", cfg.AdminPort)
	}
}
